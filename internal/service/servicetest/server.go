// Package servicetest provides an in-process fake of the PL/SQL lint
// server for tests.
package servicetest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/oraclelint/internal/service"
)

// Server is a fake lint server listening on a random local port.
type Server struct {
	srv *httptest.Server

	mu          sync.Mutex
	version     string
	lintBody    *string
	diagnostics []service.Diagnostic
	requests    []service.LintRequest
	requestIDs  []string
	hits        map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by /version.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithDiagnostics sets the diagnostics returned by /lint-file.
func WithDiagnostics(d ...service.Diagnostic) Option {
	return func(s *Server) { s.diagnostics = d }
}

// WithLintBody makes /lint-file answer with a raw body.
func WithLintBody(body string) Option {
	return func(s *Server) { s.lintBody = &body }
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		version: service.SupportedVersion,
		hits:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Get(service.PathCheckAlive, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("alive"))
	})
	r.Get(service.PathVersion, s.handleVersion)
	r.Post(service.PathLintFile, s.handleLint)
	r.Get(service.PathShutdown, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("shutting down"))
	})

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	_, port, err := net.SplitHostPort(s.srv.Listener.Addr().String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// Close stops the server. Subsequent requests are refused.
func (s *Server) Close() {
	s.srv.Close()
}

// Hits returns how many requests were made to path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// LintRequests returns the decoded /lint-file requests received so far.
func (s *Server) LintRequests() []service.LintRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.LintRequest(nil), s.requests...)
}

// RequestIDs returns the X-Request-Id headers of the lint requests.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

// SetVersion changes the version reported by /version.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// SetLintBody makes /lint-file answer with a raw body.
func (s *Server) SetLintBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lintBody = &body
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(version)
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	var req service.LintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.requestIDs = append(s.requestIDs, r.Header.Get("X-Request-Id"))
	body := s.lintBody
	diags := s.diagnostics
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if body != nil {
		_, _ = w.Write([]byte(*body))
		return
	}
	if diags == nil {
		diags = []service.Diagnostic{}
	}
	_ = json.NewEncoder(w).Encode(diags)
}
