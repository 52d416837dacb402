package nanohubmcp

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareServer() *MCPServer {
	return NewServer("registry-test", "1.0.0", WithLogger(zerolog.Nop()))
}

func TestAddToolRejectsBadHandlers(t *testing.T) {
	s := newBareServer()

	assert.Error(t, s.AddTool("x", "", 42))
	assert.Error(t, s.AddTool("x", "", "not a func"))
	assert.Error(t, s.AddTool("", "", func() string { return "" }))
	assert.Error(t, s.AddTool("x", "", func(args ...string) string { return "" }))
	assert.Error(t, s.AddTool("x", "", func() {}))
	assert.Error(t, s.AddTool("x", "", func() (int, int, int) { return 0, 0, 0 }))
	assert.Error(t, s.AddTool("x", "", func() (int, string) { return 0, "" }))

	// Name count must match the data parameter count.
	assert.Error(t, s.AddTool("x", "", func(a, b float64) float64 { return a }, WithParamNames("a")))
	assert.Error(t, s.AddTool("x", "", func(a float64) float64 { return a }))

	tools, _, _ := s.counts()
	assert.Zero(t, tools)
}

func TestAddToolAcceptsValidShapes(t *testing.T) {
	s := newBareServer()

	require.NoError(t, s.AddTool("plain", "", func() string { return "ok" }))
	require.NoError(t, s.AddTool("with_error", "", func() (string, error) { return "ok", nil }))
	require.NoError(t, s.AddTool("with_args", "", func(a, b float64) float64 { return a + b }, WithParamNames("a", "b")))
	require.NoError(t, s.AddTool("with_ctx", "", func(ctx *Context, a float64) float64 { return a }, WithParamNames("a")))
	require.NoError(t, s.AddTool("ctx_only", "", func(ctx *Context) string { return "ok" }))

	tools, _, _ := s.counts()
	assert.Equal(t, 5, tools)
}

func TestContextParameterDetectedByType(t *testing.T) {
	s := newBareServer()
	require.NoError(t, s.AddTool("with_ctx", "", func(ctx *Context, a float64) float64 { return a }, WithParamNames("a")))
	require.NoError(t, s.AddTool("without_ctx", "", func(a float64) float64 { return a }, WithParamNames("a")))

	withCtx, ok := s.toolByName("with_ctx")
	require.True(t, ok)
	assert.True(t, withCtx.handler.wantsContext)

	withoutCtx, ok := s.toolByName("without_ctx")
	require.True(t, ok)
	assert.False(t, withoutCtx.handler.wantsContext)

	// The context parameter is not part of the schema.
	props := withCtx.def.InputSchema["properties"].(map[string]any)
	assert.Len(t, props, 1)
	assert.Contains(t, props, "a")
}

func TestDuplicateRegistrationKeepsListingPosition(t *testing.T) {
	s := newBareServer()
	require.NoError(t, s.AddTool("first", "one", func() string { return "" }))
	require.NoError(t, s.AddTool("second", "two", func() string { return "" }))
	require.NoError(t, s.AddTool("first", "replaced", func() string { return "" }))

	tools := s.listTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "first", tools[0].Name)
	assert.Equal(t, "replaced", tools[0].Description)
	assert.Equal(t, "second", tools[1].Name)
}

func TestListingsPreserveRegistrationOrder(t *testing.T) {
	s := newBareServer()
	names := []string{"zeta", "alpha", "mid", "beta"}
	for _, name := range names {
		require.NoError(t, s.AddTool(name, "", func() string { return "" }))
	}

	tools := s.listTools()
	require.Len(t, tools, len(names))
	for i, name := range names {
		assert.Equal(t, name, tools[i].Name)
	}
}

func TestAddResource(t *testing.T) {
	s := newBareServer()

	assert.Error(t, s.AddResource("", "x", "", func() string { return "" }))
	assert.Error(t, s.AddResource("data://x", "x", "",
		func(a float64) string { return "" }, WithParamNames("a")))

	require.NoError(t, s.AddResource("config://app/settings", "", "Settings.",
		func() map[string]any { return nil },
		WithMIMEType("application/json")))
	require.NoError(t, s.AddResource("data://items/{id}", "item", "One item.",
		func(ctx *Context) string { return "" }))

	resources := s.listResources()
	require.Len(t, resources, 2)
	assert.Equal(t, "config://app/settings", resources[0].Name)
	assert.Equal(t, "application/json", resources[0].MimeType)
	assert.False(t, resources[0].Template)
	assert.True(t, resources[1].Template)
}

func TestAddPromptDerivesArguments(t *testing.T) {
	s := newBareServer()
	require.NoError(t, s.AddPrompt("summarize", "Summarize text.",
		func(text, style string) string { return text + style },
		WithParamNames("text", "style"),
		WithDefaults(map[string]any{"style": "short"})))

	prompts := s.listPrompts()
	require.Len(t, prompts, 1)
	require.Len(t, prompts[0].Arguments, 2)
	assert.Equal(t, PromptArgument{Name: "text", Required: true}, prompts[0].Arguments[0])
	assert.Equal(t, PromptArgument{Name: "style", Required: false}, prompts[0].Arguments[1])
}

func TestWithInputSchemaOverridesInference(t *testing.T) {
	s := newBareServer()
	custom := map[string]any{
		"type":       "object",
		"properties": map[string]any{"q": map[string]any{"type": "string", "description": "query"}},
		"required":   []string{"q"},
	}
	require.NoError(t, s.AddTool("search", "", func(q string) string { return q },
		WithParamNames("q"), WithInputSchema(custom)))

	reg, ok := s.toolByName("search")
	require.True(t, ok)
	assert.Equal(t, custom, reg.def.InputSchema)
}

func TestToolTagsStayOffWire(t *testing.T) {
	s := newBareServer()
	require.NoError(t, s.AddTool("tagged", "", func() string { return "" }, WithTags("math", "advanced")))

	reg, ok := s.toolByName("tagged")
	require.True(t, ok)
	assert.Equal(t, []string{"math", "advanced"}, reg.def.Tags)
}

func TestRegisteredToolSchemaInference(t *testing.T) {
	s := newBareServer()
	require.NoError(t, s.AddTool("move", "", func(dest string, speed float64, wait bool) (string, error) {
		if wait {
			return "", errors.New("unsupported")
		}
		return dest, nil
	}, WithParamNames("dest", "speed", "wait"), WithDefaults(map[string]any{"wait": false})))

	reg, ok := s.toolByName("move")
	require.True(t, ok)
	schema := reg.def.InputSchema
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, props["dest"])
	assert.Equal(t, map[string]any{"type": "number"}, props["speed"])
	assert.Equal(t, map[string]any{"type": "boolean"}, props["wait"])
	assert.Equal(t, []string{"dest", "speed"}, schema["required"])
}
