package kvsession

// Version is the release version reported by the CLI and HTTP API.
const Version = "0.1.0"
