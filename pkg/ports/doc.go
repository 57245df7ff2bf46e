/*
Package ports defines the driven ports (interfaces) of kvsession.

These interfaces decouple the session adapter from concrete backends, allowing the
same storage logic to run against memcached, redis, the filesystem or memory.

# Key Interfaces

  - KVClient: the minimal key-value contract required of a backend (set, get, touch, delete).
  - SessionDataStorage: the capability consumed by a session-management layer.

Both come with contract suites (RunKVClientContract, RunSessionDataStorageContract) that
every implementation runs from its own tests.
*/
package ports
