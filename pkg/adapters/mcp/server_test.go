package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/kvsession/pkg/adapters/memory"
	"github.com/aretw0/kvsession/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(session.NewManager(session.New(memory.New())), "test")
}

func TestTools_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	created, err := s.handleCreate(ctx, req, map[string]interface{}{"attributes": `{"user":"alice"}`})
	require.NoError(t, err)
	require.NotNil(t, created.Session)
	id := created.Session.ID
	assert.Equal(t, "alice", created.Session.Attributes["user"])

	got, err := s.handleGet(ctx, req, map[string]interface{}{"session_id": id})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, int64(1800), got.Session.MaxInactiveInterval)

	put, err := s.handlePut(ctx, req, map[string]interface{}{"session_id": id, "name": "count", "value": "3"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), put.Session.Attributes["count"])

	put, err = s.handlePut(ctx, req, map[string]interface{}{"session_id": id, "name": "mood", "value": "happy"})
	require.NoError(t, err)
	assert.Equal(t, "happy", put.Session.Attributes["mood"], "non-JSON values are kept as strings")

	require.NoError(t, s.sessions.Delete(ctx, id))
	got, err = s.handleGet(ctx, req, map[string]interface{}{"session_id": id})
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.Nil(t, got.Session)
}

func TestTools_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleCreate(ctx, req, map[string]interface{}{"attributes": `[1,2]`})
	assert.Error(t, err)

	_, err = s.handleGet(ctx, req, map[string]interface{}{})
	assert.Error(t, err)

	_, err = s.handlePut(ctx, req, map[string]interface{}{"session_id": "missing", "name": "x", "value": "1"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestTools_Registered(t *testing.T) {
	s := newTestServer(t)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.MCPServer().HandleMessage(context.Background(), msg)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"create_session", "get_session", "put_attribute", "delete_session"} {
		assert.Contains(t, string(out), name)
	}
}
