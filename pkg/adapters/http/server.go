// Package http exposes session storage over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/kvsession/internal/logging"
	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/aretw0/kvsession/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Sessions is the session API the handler drives. *session.Manager implements it.
type Sessions interface {
	Create() *domain.SessionData
	Get(ctx context.Context, id string) (*domain.SessionData, bool, error)
	Save(ctx context.Context, data *domain.SessionData) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fn func(*domain.SessionData) error) (*domain.SessionData, error)
}

// Server serves the session API.
type Server struct {
	Sessions Sessions

	ping     func(ctx context.Context) error
	gatherer prometheus.Gatherer
	version  string
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithPing sets the health probe used by /healthz.
func WithPing(ping func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.ping = ping
	}
}

// WithGatherer sets the registry served on /metrics (default: prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the session API.
func NewHandler(sessions Sessions, opts ...Option) http.Handler {
	server := &Server{
		Sessions: sessions,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.Health)
	r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", server.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", server.GetSession)
			r.Delete("/", server.DeleteSession)
			r.Put("/attributes/{name}", server.PutAttribute)
			r.Delete("/attributes/{name}", server.RemoveAttribute)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSessionRequest is the optional body of POST /sessions.
type CreateSessionRequest struct {
	Attributes map[string]any `json:"attributes"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if err := decodeBody(r, &body, true); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("CreateSession: Invalid request body", "err", err)
		return
	}

	data := s.Sessions.Create()
	for name, v := range body.Attributes {
		data.Put(name, v)
	}
	if err := s.Sessions.Save(r.Context(), data); err != nil {
		s.fail(w, "CreateSession", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, data)
}

// GetSession handles GET /sessions/{id}. Reading renews the idle timeout.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, found, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	if !found {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutAttribute handles PUT /sessions/{id}/attributes/{name}. The body is any JSON value;
// null removes the attribute.
func (s *Server) PutAttribute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var value any
	if err := decodeBody(r, &value, false); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PutAttribute: Invalid request body", "err", err)
		return
	}

	s.update(w, r, "PutAttribute", func(d *domain.SessionData) error {
		d.Put(name, value)
		return nil
	})
}

// RemoveAttribute handles DELETE /sessions/{id}/attributes/{name}.
func (s *Server) RemoveAttribute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.update(w, r, "RemoveAttribute", func(d *domain.SessionData) error {
		d.Remove(name)
		return nil
	})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, op string, fn func(*domain.SessionData) error) {
	data, err := s.Sessions.Update(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		s.fail(w, op, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendConnectivity):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	}
	http.Error(w, http.StatusText(status), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
