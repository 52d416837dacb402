// Package nanohubmcp implements a Model Context Protocol server over HTTP.
// It dispatches JSON-RPC 2.0 requests to registered tool, resource, and
// prompt handlers, streams every response to connected SSE and streamable
// HTTP clients, and exposes the tools as plain REST endpoints with an
// OpenAPI description.
package nanohubmcp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MCPServer exposes registered handlers over the MCP wire protocol. Create
// one with NewServer, register handlers, then Run it or mount Router into an
// existing server.
type MCPServer struct {
	name       string
	version    string
	pathPrefix string
	log        zerolog.Logger

	router *chi.Mux
	hub    *clientHub
	docs   *docCache

	mu            sync.RWMutex
	tools         map[string]*toolRegistration
	toolOrder     []string
	resources     map[string]*resourceRegistration
	resourceOrder []string
	prompts       map[string]*promptRegistration
	promptOrder   []string
}

// ServerOption configures a server at construction.
type ServerOption func(*MCPServer)

// WithPathPrefix accepts routes behind a reverse-proxy prefix such as
// "/weber/1234". The prefix is stripped from incoming paths when present and
// never added to outgoing data, so the same server works proxied and direct.
func WithPathPrefix(prefix string) ServerOption {
	return func(s *MCPServer) { s.pathPrefix = strings.TrimRight(prefix, "/") }
}

// WithLogger replaces the server's logger.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *MCPServer) { s.log = log }
}

// NewServer constructs a server. An empty version defaults to "1.0.0".
func NewServer(name, version string, opts ...ServerOption) *MCPServer {
	if version == "" {
		version = "1.0.0"
	}
	s := &MCPServer{
		name:      name,
		version:   version,
		log:       zerolog.New(os.Stderr).With().Timestamp().Str("server", name).Logger(),
		docs:      newDocCache(),
		tools:     make(map[string]*toolRegistration),
		resources: make(map[string]*resourceRegistration),
		prompts:   make(map[string]*promptRegistration),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newClientHub(s.log)
	s.router = s.buildRouter()
	return s
}

// Name returns the server name.
func (s *MCPServer) Name() string { return s.name }

// Version returns the server version.
func (s *MCPServer) Version() string { return s.version }

// Router exposes the root HTTP handler for the server.
func (s *MCPServer) Router() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then closes streaming clients
// and shuts the listener down gracefully.
func (s *MCPServer) Run(ctx context.Context, addr string) error {
	tools, resources, prompts := s.counts()
	s.log.Info().
		Str("addr", addr).
		Str("version", s.version).
		Int("tools", tools).
		Int("resources", resources).
		Int("prompts", prompts).
		Msg("MCP server listening")
	s.log.Info().
		Str("sse", "http://"+addr+"/sse").
		Str("mcp", "http://"+addr+"/mcp").
		Str("openapi", "http://"+addr+"/openapi.json").
		Str("discovery", "http://"+addr+"/.well-known/mcp.json").
		Msg("endpoints ready")

	srv := &http.Server{Addr: addr, Handler: s.router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.hub.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
