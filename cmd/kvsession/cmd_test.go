package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/kvsession"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against a file backend rooted in a temp directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("KVSESSION_BACKEND", "file")
	t.Setenv("KVSESSION_FILE_DIR", dir+"/data")
	t.Setenv("KVSESSION_LOG_LEVEL", "error")
}

func TestSessionCommands(t *testing.T) {
	setup(t)

	out, err := run(t, "session", "create", "-q", "user=alice", "visits=1")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, "session", "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"user": "alice"`)
	assert.Contains(t, out, `"visits": 1`)

	out, err = run(t, "session", "set", id, "user=", "cart=[\"a\"]")
	require.NoError(t, err)
	assert.NotContains(t, out, "alice")
	assert.Contains(t, out, `"cart"`)

	out, err = run(t, "session", "rm", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed session")

	_, err = run(t, "session", "get", id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionSet_Missing(t *testing.T) {
	setup(t)
	_, err := run(t, "session", "set", "nope", "a=1")
	assert.Error(t, err)
}

func TestBackendFlagValidation(t *testing.T) {
	setup(t)
	_, err := run(t, "--backend", "etcd", "session", "create")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestConfigCommand(t *testing.T) {
	setup(t)
	t.Setenv("MEMCACHED_PASSWORD", "hunter2")

	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: file")
	assert.NotContains(t, out, "hunter2", "secrets are never printed")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "kvsession version "+kvsession.Version+"\n", out)
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		value any
	}{
		{"a=1", "a", float64(1)},
		{"a=true", "a", true},
		{"a=hello", "a", "hello"},
		{`a="quoted"`, "a", "quoted"},
		{"a=", "a", nil},
		{"a=x=y", "a", "x=y"},
	}
	for _, tt := range tests {
		name, value, err := parseAssignment(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.value, value, tt.in)
	}

	_, _, err := parseAssignment("novalue")
	assert.Error(t, err)
	_, _, err = parseAssignment("=1")
	assert.Error(t, err)
}
