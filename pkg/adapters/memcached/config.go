package memcached

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/kvsession/pkg/domain"
)

const (
	// DefaultPort is memcached's standard port, appended to hosts given without one.
	DefaultPort = "11211"

	// DefaultHost is used when the host list is empty.
	DefaultHost = "localhost:" + DefaultPort

	// DefaultTimeout bounds each socket operation.
	DefaultTimeout = 500 * time.Millisecond
)

// Protocol selects the memcached wire protocol.
type Protocol string

const (
	ProtocolBinary Protocol = "BINARY"
	ProtocolText   Protocol = "TEXT"
)

// Authentication mechanisms accepted in Config.AuthMechanisms.
const (
	MechanismPlain   = "PLAIN"
	MechanismCRAMMD5 = "CRAM-MD5"
)

// Config holds memcached connection settings.
type Config struct {
	// Hosts lists "host:port" addresses. Empty means DefaultHost.
	Hosts []string

	// Protocol defaults to ProtocolBinary.
	Protocol Protocol

	// Username enables SASL authentication (binary protocol only).
	Username string
	Password string

	// AuthMechanisms restricts the SASL mechanisms offered. Empty means PLAIN.
	AuthMechanisms []string

	// Timeout bounds connects and socket operations. Default: DefaultTimeout.
	Timeout time.Duration

	// MaxIdleConns caps pooled connections per server. 0 keeps the client default.
	MaxIdleConns int
}

// ParseProtocol parses a protocol name case-insensitively. Empty means ProtocolBinary.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToUpper(strings.TrimSpace(s))) {
	case "", ProtocolBinary:
		return ProtocolBinary, nil
	case ProtocolText:
		return ProtocolText, nil
	default:
		return "", fmt.Errorf("%w: unknown memcached protocol %q (want BINARY or TEXT)", domain.ErrConfiguration, s)
	}
}

// ParseHosts splits a whitespace or comma separated list of "host:port" addresses,
// e.g. "host1:11211 host2:11211" or "host1:11211, host2:11211".
// Hosts without a port get DefaultPort.
func ParseHosts(s string) ([]string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return []string{DefaultHost}, nil
	}

	hosts := make([]string, 0, len(fields))
	for _, f := range fields {
		addr, err := normalizeHost(f)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, addr)
	}
	return hosts, nil
}

func normalizeHost(addr string) (string, error) {
	switch {
	case strings.HasPrefix(addr, "[") && strings.HasSuffix(addr, "]"):
		// [::1] without a port.
		addr = net.JoinHostPort(addr[1:len(addr)-1], DefaultPort)
	case strings.Count(addr, ":") > 1 && net.ParseIP(addr) != nil:
		// Bare IPv6 literal.
		addr = net.JoinHostPort(addr, DefaultPort)
	case !strings.Contains(addr, ":"):
		addr = net.JoinHostPort(addr, DefaultPort)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: invalid memcached host %q: %v", domain.ErrConfiguration, addr, err)
	}
	if host == "" {
		return "", fmt.Errorf("%w: invalid memcached host %q: empty host", domain.ErrConfiguration, addr)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("%w: invalid memcached host %q: bad port", domain.ErrConfiguration, addr)
	}
	return net.JoinHostPort(host, port), nil
}

// ParseAuthMechanisms normalizes and validates SASL mechanism names.
func ParseAuthMechanisms(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		m := strings.ToUpper(strings.TrimSpace(n))
		if m == "" || seen[m] {
			continue
		}
		if m != MechanismPlain && m != MechanismCRAMMD5 {
			return nil, fmt.Errorf("%w: unknown auth mechanism %q", domain.ErrConfiguration, n)
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

// normalize validates the config and fills in defaults.
func (c Config) normalize() (Config, error) {
	var err error

	if c.Protocol, err = ParseProtocol(string(c.Protocol)); err != nil {
		return c, err
	}
	if c.Hosts, err = ParseHosts(strings.Join(c.Hosts, ",")); err != nil {
		return c, err
	}
	if c.AuthMechanisms, err = ParseAuthMechanisms(c.AuthMechanisms); err != nil {
		return c, err
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxIdleConns < 0 {
		return c, fmt.Errorf("%w: negative MaxIdleConns", domain.ErrConfiguration)
	}

	if strings.TrimSpace(c.Username) == "" {
		c.Username, c.Password = "", ""
		return c, nil
	}

	if c.Protocol == ProtocolText {
		return c, fmt.Errorf("%w: memcached authentication requires the BINARY protocol", domain.ErrConfiguration)
	}
	if len(c.AuthMechanisms) == 0 {
		c.AuthMechanisms = []string{MechanismPlain}
	}
	if !slices.Contains(c.AuthMechanisms, MechanismPlain) {
		return c, fmt.Errorf("%w: binary client supports only the PLAIN mechanism, got %v", domain.ErrConfiguration, c.AuthMechanisms)
	}
	return c, nil
}
