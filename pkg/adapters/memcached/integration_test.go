package memcached_test

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/aretw0/kvsession/pkg/adapters/memcached"
	"github.com/aretw0/kvsession/pkg/ports"
	"github.com/aretw0/kvsession/pkg/session"
	"github.com/stretchr/testify/require"
)

// memcachedAddr returns a live server address or skips the test.
func memcachedAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("MEMCACHED_ADDR")
	if addr == "" {
		addr = "127.0.0.1:11211"
	}
	conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("memcached not available at %s: %v", addr, err)
	}
	_ = conn.Close()
	return addr
}

func TestMemcached_Integration(t *testing.T) {
	addr := memcachedAddr(t)

	for _, protocol := range []memcached.Protocol{memcached.ProtocolBinary, memcached.ProtocolText} {
		t.Run(string(protocol), func(t *testing.T) {
			client, err := memcached.New(memcached.Config{Hosts: []string{addr}, Protocol: protocol})
			require.NoError(t, err)
			defer client.Close()

			ports.RunKVClientContract(t, client)
			ports.RunSessionDataStorageContract(t, session.New(client, session.WithIdleTime(time.Minute)))
		})
	}
}
