package nanohubmcp

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/denphi/nanohub-mcp/internal/jsonrpc"
)

// Context gives a handler access to the running server: leveled logging that
// is captured per invocation and mirrored to the server log, and progress
// reporting broadcast to streaming clients. Handlers opt in by declaring a
// leading *Context parameter.
type Context struct {
	server    *MCPServer
	requestID any

	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is one message captured during a handler invocation.
type LogEntry struct {
	Level   string
	Message string
	Data    map[string]any
}

func newContext(s *MCPServer, requestID any) *Context {
	return &Context{server: s, requestID: requestID}
}

// Server returns the server this invocation runs on.
func (c *Context) Server() *MCPServer { return c.server }

// RequestID returns the id of the request that triggered this invocation, or
// nil for notifications and direct REST calls.
func (c *Context) RequestID() any { return c.requestID }

// Debug logs a debug message.
func (c *Context) Debug(message string, data ...map[string]any) { c.log("debug", message, data) }

// Info logs an info message.
func (c *Context) Info(message string, data ...map[string]any) { c.log("info", message, data) }

// Warning logs a warning message.
func (c *Context) Warning(message string, data ...map[string]any) { c.log("warning", message, data) }

// Error logs an error message.
func (c *Context) Error(message string, data ...map[string]any) { c.log("error", message, data) }

func (c *Context) log(level, message string, data []map[string]any) {
	var fields map[string]any
	if len(data) > 0 {
		fields = data[0]
	}
	c.mu.Lock()
	c.entries = append(c.entries, LogEntry{Level: level, Message: message, Data: fields})
	c.mu.Unlock()

	ev := c.server.log.WithLevel(zerologLevel(level))
	if fields != nil {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

func zerologLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logs returns the messages captured so far, oldest first.
func (c *Context) Logs() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ReportProgress broadcasts a notifications/progress envelope for
// long-running work, tagged with the originating request id. total and
// message are omitted when zero.
func (c *Context) ReportProgress(progress, total float64, message string) {
	info := map[string]any{"progress": progress}
	if total > 0 {
		info["total"] = total
	}
	if message != "" {
		info["message"] = message
	}
	c.Info(fmt.Sprintf("Progress: %v", info))

	params := map[string]any{"requestId": c.requestID}
	for k, v := range info {
		params[k] = v
	}
	c.server.broadcastMessage(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  "notifications/progress",
		"params":  params,
	})
}
