// Package mcp exposes session operations as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/kvsession/internal/logging"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Sessions is the session API the tools drive. *session.Manager implements it.
type Sessions interface {
	Create() *domain.SessionData
	Get(ctx context.Context, id string) (*domain.SessionData, bool, error)
	Save(ctx context.Context, data *domain.SessionData) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fn func(*domain.SessionData) error) (*domain.SessionData, error)
}

// SessionView is the tool-facing shape of a session.
type SessionView struct {
	ID                  string         `json:"id" jsonschema_description:"Session identifier"`
	Attributes          map[string]any `json:"attributes" jsonschema_description:"Session attributes"`
	CreationTime        time.Time      `json:"creationTime"`
	LastAccessedTime    time.Time      `json:"lastAccessedTime"`
	MaxInactiveInterval int64          `json:"maxInactiveInterval" jsonschema_description:"Idle timeout in seconds"`
}

// SessionResponse is returned by the session tools.
type SessionResponse struct {
	Found   bool         `json:"found" jsonschema_description:"Whether the session exists"`
	Session *SessionView `json:"session,omitempty"`
}

func viewOf(d *domain.SessionData) *SessionView {
	if d == nil {
		return nil
	}
	return &SessionView{
		ID:                  d.ID(),
		Attributes:          d.Attributes(),
		CreationTime:        d.CreationTime,
		LastAccessedTime:    d.LastAccessedTime,
		MaxInactiveInterval: int64(d.MaxInactiveInterval / time.Second),
	}
}

// Server exposes session storage as an MCP Server.
type Server struct {
	sessions  Sessions
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, version string, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		mcpServer: server.NewMCPServer("kvsession-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	// TOOL: create_session
	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create and persist a new session. Returns its ID."),
		mcp.WithString("attributes", mcp.Description("JSON object of initial attributes (optional)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreate))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Load a session by ID. Reading renews its idle timeout."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	// TOOL: put_attribute
	s.mcpServer.AddTool(mcp.NewTool("put_attribute",
		mcp.WithDescription("Set one attribute on an existing session. A null value removes it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Attribute name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Attribute value as JSON")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handlePut))

	// TOOL: delete_session
	s.mcpServer.AddTool(mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a session. Deleting a missing session succeeds."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, _ := request.GetArguments()["session_id"].(string)
		if id == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		if err := s.sessions.Delete(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("deleted %s", id)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	attrs := map[string]any{}
	if raw, ok := args["attributes"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			return SessionResponse{}, fmt.Errorf("attributes must be a JSON object: %w", err)
		}
	}

	data := s.sessions.Create()
	for k, v := range attrs {
		data.Put(k, v)
	}
	if err := s.sessions.Save(ctx, data); err != nil {
		s.logger.Error("MCP create_session failed", "err", err)
		return SessionResponse{}, fmt.Errorf("save failed: %w", err)
	}
	return SessionResponse{Found: true, Session: viewOf(data)}, nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return SessionResponse{}, errors.New("session_id is required")
	}

	data, found, err := s.sessions.Get(ctx, id)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("get failed: %w", err)
	}
	return SessionResponse{Found: found, Session: viewOf(data)}, nil
}

func (s *Server) handlePut(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, _ := args["session_id"].(string)
	name, _ := args["name"].(string)
	raw, _ := args["value"].(string)
	if id == "" || name == "" {
		return SessionResponse{}, errors.New("session_id and name are required")
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Bare words are stored as strings.
		value = raw
	}

	data, err := s.sessions.Update(ctx, id, func(d *domain.SessionData) error {
		d.Put(name, value)
		return nil
	})
	if err != nil {
		return SessionResponse{}, fmt.Errorf("update failed: %w", err)
	}
	return SessionResponse{Found: true, Session: viewOf(data)}, nil
}
