// Package redis provides a key-value backend and a distributed locker on Redis.
//
// It is an alternative to memcached for deployments that already run Redis.
// TTLs map to native key expiry, so Touch is a single EXPIRE round trip.
package redis
