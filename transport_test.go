package nanohubmcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, s *MCPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func postRPC(t *testing.T, s *MCPServer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, s, http.MethodPost, path, body)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m), "body: %s", rr.Body.String())
	return m
}

// startStream opens a streaming connection in the background and waits for
// the client to register with the hub.
func startStream(t *testing.T, s *MCPServer, path string) (*httptest.ResponseRecorder, context.CancelFunc, chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Router().ServeHTTP(rr, req)
	}()
	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 5*time.Millisecond)
	return rr, cancel, done
}

// waitDrained blocks until every streaming client's queue is empty, meaning
// pending events reached the response writers.
func waitDrained(t *testing.T, s *MCPServer) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.hub.mu.RLock()
		defer s.hub.mu.RUnlock()
		for _, c := range s.hub.clients {
			if len(c.events) > 0 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestStatusDocument(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	doc := decodeBody(t, rr)
	assert.Equal(t, "test-calculator", doc["name"])
	assert.Equal(t, "running", doc["status"])
	assert.EqualValues(t, 2, doc["tools"])
	assert.EqualValues(t, 1, doc["resources"])
	assert.EqualValues(t, 1, doc["prompts"])
	endpoints := doc["endpoints"].(map[string]any)
	assert.Equal(t, "/sse", endpoints["sse"])
	assert.Equal(t, "/mcp", endpoints["mcp"])
}

func TestUnknownGetAnswersWithStatus(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodGet, "/no/such/path", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "running", decodeBody(t, rr)["status"])
}

func TestGetOnToolPathAnswersWithStatus(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodGet, "/tools/add", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "running", decodeBody(t, rr)["status"])
}

func TestRPCOverRootAndMCPPaths(t *testing.T) {
	s := newCalculatorServer(t)
	for _, path := range []string{"/", "/mcp", "/anything/else"} {
		rr := postRPC(t, s, path, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		require.Equal(t, http.StatusOK, rr.Code, "path %s", path)
		body := decodeBody(t, rr)
		assert.Equal(t, "2.0", body["jsonrpc"])
		assert.Equal(t, map[string]any{}, body["result"])
	}
}

func TestRPCToolCallOverHTTP(t *testing.T) {
	s := newCalculatorServer(t)
	rr := postRPC(t, s, "/",
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	result := decodeBody(t, rr)["result"].(map[string]any)
	assert.Equal(t, false, result["isError"])
	content := result["content"].([]any)
	text := content[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "5")
}

func TestNotificationAccepted(t *testing.T) {
	s := newCalculatorServer(t)
	rr := postRPC(t, s, "/", `{"jsonrpc":"2.0","method":"initialized"}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "accepted", decodeBody(t, rr)["status"])
}

func TestNotificationNotBroadcast(t *testing.T) {
	s := newCalculatorServer(t)
	client := s.hub.add()
	defer s.hub.remove(client)

	rr := postRPC(t, s, "/", `{"jsonrpc":"2.0","method":"initialized"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, client.events)
}

func TestResponsesBroadcastBeforeReply(t *testing.T) {
	s := newCalculatorServer(t)
	client := s.hub.add()
	defer s.hub.remove(client)

	rr := postRPC(t, s, "/", `{"jsonrpc":"2.0","id":41,"method":"ping"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	// The envelope was queued for the streaming client before the POST
	// returned, byte for byte the same as the synchronous reply.
	require.Len(t, client.events, 1)
	assert.Equal(t, strings.TrimSpace(rr.Body.String()), <-client.events)
}

func TestInvalidJSONReturns500(t *testing.T) {
	s := newCalculatorServer(t)
	rr := postRPC(t, s, "/", `{not json`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "invalid JSON")
}

func TestDirectToolCall(t *testing.T) {
	s := newCalculatorServer(t)
	rr := postRPC(t, s, "/tools/add", `{"a":7,"b":3}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["result"], "10")
}

func TestDirectToolCallUnknownTool(t *testing.T) {
	s := newCalculatorServer(t)
	rr := postRPC(t, s, "/tools/nonexistent", `{}`)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "nonexistent")
}

func TestDirectToolCallFailureReturns500(t *testing.T) {
	s := newCalculatorServer(t)
	rr := postRPC(t, s, "/tools/divide", `{"a":1,"b":0}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "zero")
}

func TestDirectToolCallMapResultPassesThrough(t *testing.T) {
	s := newCalculatorServer(t)
	require.NoError(t, s.AddTool("report", "", func() map[string]any {
		return map[string]any{"status": "ok"}
	}))

	rr := postRPC(t, s, "/tools/report", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestOpenAPIDocument(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodGet, "/openapi.json", "")

	require.Equal(t, http.StatusOK, rr.Code)
	doc := decodeBody(t, rr)
	assert.Equal(t, "3.1.0", doc["openapi"])
	info := doc["info"].(map[string]any)
	assert.Equal(t, "test-calculator", info["title"])

	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/mcp")
	assert.Contains(t, paths, "/tools/add")
	assert.Contains(t, paths, "/tools/divide")

	addPath := paths["/tools/add"].(map[string]any)["post"].(map[string]any)
	assert.Equal(t, "add", addPath["operationId"])
	schema := addPath["requestBody"].(map[string]any)["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
}

func TestDiscoveryDocument(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodGet, "/.well-known/mcp.json", "")

	require.Equal(t, http.StatusOK, rr.Code)
	doc := decodeBody(t, rr)
	assert.Equal(t, "2024-11-05", doc["mcpVersion"])

	transports := doc["transports"].([]any)
	require.Len(t, transports, 2)
	types := []string{
		transports[0].(map[string]any)["type"].(string),
		transports[1].(map[string]any)["type"].(string),
	}
	assert.ElementsMatch(t, []string{"sse", "streamable-http"}, types)
}

func TestCORSPreflight(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodOptions, "/mcp", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Mcp-Session-Id")
}

func TestCORSHeaderOnEveryResponse(t *testing.T) {
	s := newCalculatorServer(t)
	rr := doRequest(t, s, http.MethodGet, "/", "")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSSEStreamOpenEventAndBroadcast(t *testing.T) {
	s := newCalculatorServer(t)
	rr, cancel, done := startStream(t, s, "/sse")

	resp := postRPC(t, s, "/", `{"jsonrpc":"2.0","id":99,"method":"ping"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	waitDrained(t, s)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))

	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: open\ndata: {}\n\n"), "body: %q", body)
	assert.Contains(t, body, "event: message\n")
	assert.Contains(t, body, `"id":99`)

	require.Eventually(t, func() bool { return s.hub.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStreamableGetSendsEndpointEvent(t *testing.T) {
	s := newCalculatorServer(t)
	rr, cancel, done := startStream(t, s, "/mcp")

	cancel()
	<-done

	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: endpoint\ndata: /mcp\n\n"), "body: %q", body)
	assert.NotEmpty(t, rr.Header().Get("Mcp-Session-Id"))
}

func TestStreamRoutesAcceptTrailingSlash(t *testing.T) {
	s := newCalculatorServer(t)
	rr, cancel, done := startStream(t, s, "/sse/")

	cancel()
	<-done
	assert.Contains(t, rr.Body.String(), "event: open")
}

func TestHubShutdownEndsStreams(t *testing.T) {
	s := newCalculatorServer(t)
	_, _, done := startStream(t, s, "/sse")

	s.hub.close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end on hub shutdown")
	}
}

func TestPathPrefixStripping(t *testing.T) {
	s := NewServer("prefixed", "1.0.0",
		WithLogger(zerolog.Nop()),
		WithPathPrefix("/weber/abc123"))
	require.NoError(t, s.AddTool("echo", "", func(v string) string { return v }, WithParamNames("v")))

	rr := postRPC(t, s, "/weber/abc123/tools/echo", `{"v":"hi"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hi", decodeBody(t, rr)["result"])

	// The same route works without the prefix.
	rr = postRPC(t, s, "/tools/echo", `{"v":"direct"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "direct", decodeBody(t, rr)["result"])

	rr = doRequest(t, s, http.MethodGet, "/weber/abc123/openapi.json", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "3.1.0", decodeBody(t, rr)["openapi"])
}

func TestPrefixNeverAddedToEndpointEvent(t *testing.T) {
	s := NewServer("prefixed", "1.0.0",
		WithLogger(zerolog.Nop()),
		WithPathPrefix("/weber/abc123"))

	rr, cancel, done := startStream(t, s, "/weber/abc123/mcp")
	cancel()
	<-done

	assert.Contains(t, rr.Body.String(), "data: /mcp\n")
	assert.NotContains(t, rr.Body.String(), "data: /weber")
}
