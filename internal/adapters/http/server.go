// Package http exposes the heartbeat and status endpoints.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/bft-labs/powerwatch/internal/domain"
	"github.com/bft-labs/powerwatch/internal/ports"
)

// APIKeyHeader is the header alternative to the api_key query parameter.
const APIKeyHeader = "X-Api-Key"

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Service is the part of the application the HTTP layer drives.
type Service interface {
	RecordHeartbeat(ctx context.Context)
	CurrentStatus(ctx context.Context) domain.Status
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// Server serves GET /ping, /status, /healthz and optionally /metrics.
type Server struct {
	addr    string
	svc     Service
	logger  ports.Logger
	metrics http.Handler
	apiKey  atomic.Pointer[string]

	srv *http.Server
	ln  net.Listener
}

// NewServer creates a server listening on addr once Start is called.
func NewServer(addr, apiKey string, svc Service, opts ...Option) *Server {
	s := &Server{addr: addr, svc: svc, logger: ports.NopLogger{}}
	s.SetAPIKey(apiKey)
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// SetAPIKey replaces the shared secret required by /ping.
func (s *Server) SetAPIKey(key string) {
	s.apiKey.Store(&key)
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("http server listening", ports.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", ports.Err(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("rejected unauthorized ping", ports.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	s.svc.RecordHeartbeat(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.CurrentStatus(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorized checks the api_key query parameter or the X-Api-Key header.
// An empty configured key rejects every request.
func (s *Server) authorized(r *http.Request) bool {
	want := *s.apiKey.Load()
	if want == "" {
		return false
	}
	got := r.URL.Query().Get("api_key")
	if got == "" {
		got = r.Header.Get(APIKeyHeader)
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
