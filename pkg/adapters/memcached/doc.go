/*
Package memcached builds a ports.KVClient backed by a memcached cluster.

The protocol selector picks the wire client: BINARY (the default) uses
github.com/memcachier/mc/v3, which also performs SASL PLAIN authentication when a
username is configured; TEXT uses github.com/bradfitz/gomemcache and does not support
credentials.

Settings are validated before any connection is attempted, so an unknown protocol or a
malformed host list fails fast with domain.ErrConfiguration:

	client, err := memcached.New(memcached.Config{
		Hosts:    []string{"cache-1:11211", "cache-2:11211"},
		Protocol: memcached.ProtocolBinary,
		Username: "app",
		Password: os.Getenv("MEMCACHED_PASSWORD"),
	})

Neither wire client is context aware: the context is checked before each call, and
socket deadlines come from Config.Timeout.
*/
package memcached
