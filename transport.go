package nanohubmcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/denphi/nanohub-mcp/internal/jsonrpc"
)

const docCacheTTL = 60 * time.Second

// buildRouter wires the HTTP surface: middleware, the streaming endpoints,
// JSON-RPC POST handling, direct REST tool calls, and discovery documents.
// Unmatched GETs answer with the status document and unmatched POSTs are
// treated as JSON-RPC, matching the permissive routing MCP clients expect.
func (s *MCPServer) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.pathPrefix != "" {
		r.Use(stripPathPrefix(s.pathPrefix))
	}
	r.Use(corsHeaders)

	r.Get("/sse", s.handleSSE)
	r.Get("/sse/", s.handleSSE)
	r.Get("/mcp", s.handleStreamableGet)
	r.Get("/mcp/", s.handleStreamableGet)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/", s.handleRPC)
		r.Post("/mcp", s.handleRPC)
		r.Post("/tools/*", s.handleDirectToolCall)
		r.Get("/openapi.json", s.handleOpenAPI)
		r.Get("/.well-known/mcp.json", s.handleDiscovery)
		r.Get("/", s.handleStatus)
	})

	r.NotFound(s.handleUnmatched)
	r.MethodNotAllowed(s.handleUnmatched)
	return r
}

// corsHeaders applies the permissive CORS policy every response carries and
// short-circuits preflight requests.
func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// stripPathPrefix removes the configured reverse-proxy prefix so routes match
// the same paths with or without it.
func stripPathPrefix(prefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := strings.CutPrefix(r.URL.Path, prefix); ok {
				if !strings.HasPrefix(p, "/") {
					p = "/" + p
				}
				r2 := new(http.Request)
				*r2 = *r
				r2.URL = new(url.URL)
				*r2.URL = *r.URL
				r2.URL.Path = p
				if rp, ok := strings.CutPrefix(r.URL.RawPath, prefix); ok && r.URL.RawPath != "" {
					if !strings.HasPrefix(rp, "/") {
						rp = "/" + rp
					}
					r2.URL.RawPath = rp
				}
				r = r2
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// handleRPC serves JSON-RPC over POST: dispatch, broadcast the response to
// all streaming clients, then answer the caller synchronously. Notifications
// get a bare acknowledgment.
func (s *MCPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("rpc request")

	resp := s.dispatch(&req)
	if resp == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.hub.broadcast(string(body))
	writeRawJSON(w, http.StatusOK, body)
}

// handleDirectToolCall serves REST-style invocation of a single tool: the
// body is the arguments object and the reply is the bare result. Tool
// failures become plain HTTP errors here rather than isError envelopes.
func (s *MCPServer) handleDirectToolCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	reg, ok := s.toolByName(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Tool not found: " + name})
		return
	}

	value, err := s.invoke(reg.handler, nil, args)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if isMapLike(value) {
		writeJSON(w, http.StatusOK, value)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": fmt.Sprint(value)})
}

// handleSSE serves the classic SSE transport: an open event, then every
// broadcast envelope as a message event.
func (s *MCPServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, "open", "{}", false)
}

// handleStreamableGet serves the GET half of the streamable HTTP transport:
// an endpoint event naming the POST target, then broadcast message events.
func (s *MCPServer) handleStreamableGet(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, "endpoint", "/mcp", true)
}

// streamEvents runs one streaming connection until the client goes away or
// the hub shuts down. The configured path prefix is never re-added to
// event data; proxies rewrite outgoing paths themselves.
func (s *MCPServer) streamEvents(w http.ResponseWriter, r *http.Request, initialEvent, initialData string, withSession bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := s.hub.add()
	defer s.hub.remove(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	if withSession {
		w.Header().Set("Mcp-Session-Id", client.id)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", initialEvent, initialData); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case msg := <-client.events:
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.hub.done():
			return
		}
	}
}

// handleStatus reports server identity, registry counts, and endpoints.
func (s *MCPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeRawJSON(w, http.StatusOK, s.cachedDoc("status", s.statusDocument))
}

func (s *MCPServer) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeRawJSON(w, http.StatusOK, s.cachedDoc("openapi", s.openAPIDocument))
}

func (s *MCPServer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeRawJSON(w, http.StatusOK, s.cachedDoc("discovery", s.discoveryDocument))
}

// handleUnmatched keeps the permissive routing contract for paths no route
// claims: GET answers with the status document, POST is JSON-RPC.
func (s *MCPServer) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStatus(w, r)
	case http.MethodPost:
		s.handleRPC(w, r)
	default:
		http.NotFound(w, r)
	}
}

// cachedDoc returns the rendered document under name, building and caching
// it on miss. Registration invalidates the cache, so staleness never
// outlives the registry contents.
func (s *MCPServer) cachedDoc(name string, build func() any) []byte {
	if body, ok := s.docs.get(name); ok {
		return body
	}
	body, err := json.Marshal(build())
	if err != nil {
		s.log.Error().Err(err).Str("doc", name).Msg("document encode failed")
		return []byte("{}")
	}
	s.docs.set(name, body, docCacheTTL)
	return body
}

func (s *MCPServer) statusDocument() any {
	tools, resources, prompts := s.counts()
	return map[string]any{
		"name":      s.name,
		"version":   s.version,
		"status":    "running",
		"tools":     tools,
		"resources": resources,
		"prompts":   prompts,
		"endpoints": map[string]string{
			"sse":     "/sse",
			"mcp":     "/mcp",
			"openapi": "/openapi.json",
		},
	}
}

// discoveryDocument renders the well-known manifest advertising both
// transports.
func (s *MCPServer) discoveryDocument() any {
	return map[string]any{
		"mcpVersion":   protocolVersion,
		"serverInfo":   ServerInfo{Name: s.name, Version: s.version},
		"capabilities": s.capabilities(),
		"transports": []map[string]string{
			{"type": "sse", "endpoint": "/sse"},
			{"type": "streamable-http", "endpoint": "/mcp"},
		},
	}
}

// openAPIDocument renders the REST surface: the JSON-RPC endpoint plus one
// POST path per registered tool, carrying the tool's input schema as the
// request body schema.
func (s *MCPServer) openAPIDocument() any {
	paths := map[string]any{
		"/mcp": map[string]any{
			"get": map[string]any{
				"operationId": "mcp_sse",
				"summary":     "MCP Streamable HTTP SSE endpoint",
				"responses": map[string]any{
					"200": map[string]any{"description": "SSE stream"},
				},
			},
			"post": map[string]any{
				"operationId": "mcp_message",
				"summary":     "Send MCP JSON-RPC message",
				"requestBody": map[string]any{
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{"type": "object"},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "JSON-RPC response"},
				},
			},
		},
	}
	for _, tool := range s.listTools() {
		paths["/tools/"+tool.Name] = map[string]any{
			"post": map[string]any{
				"operationId": tool.Name,
				"summary":     tool.Description,
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": tool.InputSchema,
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{
						"description": "Tool result",
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"type": "object"},
							},
						},
					},
				},
			},
		}
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       s.name,
			"version":     s.version,
			"description": "MCP Server exposing tools as OpenAPI endpoints",
		},
		"paths": paths,
	}
}
