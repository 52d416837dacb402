package nanohubmcp

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Option customizes a tool, resource, or prompt registration.
type Option func(*regConfig)

type regConfig struct {
	paramNames  []string
	typeComment string
	defaults    map[string]any
	tags        []string
	inputSchema map[string]any
	mimeType    string
}

// WithParamNames declares the JSON argument name for each handler parameter,
// in declaration order. The *Context parameter, if any, is not named.
func WithParamNames(names ...string) Option {
	return func(c *regConfig) { c.paramNames = names }
}

// WithTypeComment supplies a "(T1, T2) -> R" annotation used for schema
// inference when the parameter types alone are not informative.
func WithTypeComment(tc string) Option {
	return func(c *regConfig) { c.typeComment = tc }
}

// WithDefaults supplies per-parameter default values. A parameter with a
// default is optional; a nil default marks a parameter optional without
// contributing type information.
func WithDefaults(defaults map[string]any) Option {
	return func(c *regConfig) { c.defaults = defaults }
}

// WithTags attaches categorization tags to the definition.
func WithTags(tags ...string) Option {
	return func(c *regConfig) { c.tags = tags }
}

// WithInputSchema overrides schema inference with an explicit JSON schema.
func WithInputSchema(schema map[string]any) Option {
	return func(c *regConfig) { c.inputSchema = schema }
}

// WithMIMEType sets the MIME type advertised for a resource.
func WithMIMEType(mimeType string) Option {
	return func(c *regConfig) { c.mimeType = mimeType }
}

func applyOptions(opts []Option) *regConfig {
	cfg := &regConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// boundHandler is a registered callable prepared for invocation: the
// reflected function, the JSON name of each data parameter, per-parameter
// defaults, and whether a *Context is injected as the first argument.
type boundHandler struct {
	fn           reflect.Value
	paramNames   []string
	defaults     map[string]any
	wantsContext bool
	returnsError bool
}

type toolRegistration struct {
	def     Tool
	handler boundHandler
}

type resourceRegistration struct {
	def     Resource
	handler boundHandler
}

type promptRegistration struct {
	def     Prompt
	handler boundHandler
}

var (
	contextType = reflect.TypeOf((*Context)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// bindHandler validates a handler function and prepares it for dispatch. A
// handler takes an optional leading *Context followed by one parameter per
// entry of cfg.paramNames, and returns a value or a value and an error.
func bindHandler(handler any, cfg *regConfig) (boundHandler, error) {
	fn := reflect.ValueOf(handler)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return boundHandler{}, fmt.Errorf("handler must be a function, got %T", handler)
	}
	t := fn.Type()
	if t.IsVariadic() {
		return boundHandler{}, errors.New("variadic handlers are not supported")
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return boundHandler{}, errors.New("second return value must be error")
		}
	default:
		return boundHandler{}, errors.New("handler must return one value, or a value and an error")
	}

	wantsContext := t.NumIn() > 0 && t.In(0) == contextType
	dataParams := t.NumIn()
	if wantsContext {
		dataParams--
	}
	if len(cfg.paramNames) != dataParams {
		return boundHandler{}, fmt.Errorf("handler takes %d data parameter(s) but %d name(s) given", dataParams, len(cfg.paramNames))
	}

	return boundHandler{
		fn:           fn,
		paramNames:   cfg.paramNames,
		defaults:     cfg.defaults,
		wantsContext: wantsContext,
		returnsError: t.NumOut() == 2,
	}, nil
}

// dataParamTypes returns the reflected types of the data parameters, context
// excluded.
func (b boundHandler) dataParamTypes() []reflect.Type {
	t := b.fn.Type()
	start := 0
	if b.wantsContext {
		start = 1
	}
	types := make([]reflect.Type, 0, t.NumIn()-start)
	for i := start; i < t.NumIn(); i++ {
		types = append(types, t.In(i))
	}
	return types
}

// AddTool registers a tool handler under name. The input schema is inferred
// from the handler signature and options unless WithInputSchema overrides it.
// Registering an existing name replaces the earlier handler and keeps its
// listing position.
func (s *MCPServer) AddTool(name, description string, handler any, opts ...Option) error {
	if name == "" {
		return errors.New("tool name is empty")
	}
	cfg := applyOptions(opts)
	h, err := bindHandler(handler, cfg)
	if err != nil {
		return fmt.Errorf("tool %s: %w", name, err)
	}
	schema := cfg.inputSchema
	if schema == nil {
		schema = inferInputSchema(h.paramNames, h.dataParamTypes(), cfg.typeComment, cfg.defaults)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[name]; !exists {
		s.toolOrder = append(s.toolOrder, name)
	}
	s.tools[name] = &toolRegistration{
		def:     Tool{Name: name, Description: description, InputSchema: schema, Tags: cfg.tags},
		handler: h,
	}
	s.docs.invalidate()
	return nil
}

// AddResource registers a resource handler under uri. Resource handlers take
// no data parameters; an empty name defaults to the URI. Registering an
// existing URI replaces the earlier handler and keeps its listing position.
func (s *MCPServer) AddResource(uri, name, description string, handler any, opts ...Option) error {
	if uri == "" {
		return errors.New("resource uri is empty")
	}
	cfg := applyOptions(opts)
	h, err := bindHandler(handler, cfg)
	if err != nil {
		return fmt.Errorf("resource %s: %w", uri, err)
	}
	if len(h.paramNames) != 0 {
		return fmt.Errorf("resource %s: resource handlers take no data parameters", uri)
	}
	if name == "" {
		name = uri
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[uri]; !exists {
		s.resourceOrder = append(s.resourceOrder, uri)
	}
	s.resources[uri] = &resourceRegistration{
		def: Resource{
			URI:         uri,
			Name:        name,
			Description: description,
			MimeType:    cfg.mimeType,
			Template:    strings.Contains(uri, "{"),
		},
		handler: h,
	}
	s.docs.invalidate()
	return nil
}

// AddPrompt registers a prompt handler under name. Prompt arguments are
// derived from the parameter names and defaults. Registering an existing name
// replaces the earlier handler and keeps its listing position.
func (s *MCPServer) AddPrompt(name, description string, handler any, opts ...Option) error {
	if name == "" {
		return errors.New("prompt name is empty")
	}
	cfg := applyOptions(opts)
	h, err := bindHandler(handler, cfg)
	if err != nil {
		return fmt.Errorf("prompt %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.prompts[name]; !exists {
		s.promptOrder = append(s.promptOrder, name)
	}
	s.prompts[name] = &promptRegistration{
		def: Prompt{
			Name:        name,
			Description: description,
			Arguments:   promptArguments(h.paramNames, cfg.defaults),
		},
		handler: h,
	}
	s.docs.invalidate()
	return nil
}

func (s *MCPServer) toolByName(name string) (*toolRegistration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.tools[name]
	return reg, ok
}

func (s *MCPServer) resourceByURI(uri string) (*resourceRegistration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.resources[uri]
	return reg, ok
}

func (s *MCPServer) promptByName(name string) (*promptRegistration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.prompts[name]
	return reg, ok
}

// listTools returns tool definitions in registration order.
func (s *MCPServer) listTools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tool, 0, len(s.toolOrder))
	for _, name := range s.toolOrder {
		out = append(out, s.tools[name].def)
	}
	return out
}

// listResources returns resource definitions in registration order.
func (s *MCPServer) listResources() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Resource, 0, len(s.resourceOrder))
	for _, uri := range s.resourceOrder {
		out = append(out, s.resources[uri].def)
	}
	return out
}

// listPrompts returns prompt definitions in registration order.
func (s *MCPServer) listPrompts() []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Prompt, 0, len(s.promptOrder))
	for _, name := range s.promptOrder {
		out = append(out, s.prompts[name].def)
	}
	return out
}

func (s *MCPServer) counts() (tools, resources, prompts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tools), len(s.resources), len(s.prompts)
}
