package nanohubmcp

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/denphi/nanohub-mcp/internal/jsonrpc"
)

// protocolVersion is the MCP revision implemented by this server.
const protocolVersion = "2024-11-05"

// dispatch routes one decoded JSON-RPC request and returns the response
// envelope, or nil when the request is a notification and no reply is owed.
// Tool handler failures come back as successful envelopes with isError set;
// resource and prompt handler failures become internal JSON-RPC errors.
func (s *MCPServer) dispatch(req *jsonrpc.Request) (resp *jsonrpc.Response) {
	id := req.ID
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("method", req.Method).Msg("dispatch panic")
			if req.IsNotification() {
				resp = nil
			} else {
				resp = jsonrpc.NewError(id, jsonrpc.CodeInternalError, fmt.Sprintf("%v", r))
			}
		}
	}()

	params := req.ParamsMap()

	var result any
	var errCode int
	var errMsg string

	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      ServerInfo{Name: s.name, Version: s.version},
			"capabilities":    s.capabilities(),
		}

	case "initialized":
		// Acknowledgment notification by contract: no reply even when the
		// client supplied an id.
		return nil

	case "ping":
		result = map[string]any{}

	case "tools/list":
		result = map[string]any{"tools": s.listTools()}

	case "tools/call":
		name := stringParam(params, "name")
		reg, ok := s.toolByName(name)
		if !ok {
			errCode, errMsg = jsonrpc.CodeMethodNotFound, "Tool not found: "+name
			break
		}
		result = s.callTool(reg, id, mapParam(params, "arguments"))

	case "resources/list":
		result = map[string]any{"resources": s.listResources()}

	case "resources/read":
		uri := stringParam(params, "uri")
		reg, ok := s.resourceByURI(uri)
		if !ok {
			errCode, errMsg = jsonrpc.CodeMethodNotFound, "Resource not found: "+uri
			break
		}
		value, err := s.invoke(reg.handler, id, nil)
		if err != nil {
			errCode, errMsg = jsonrpc.CodeInternalError, err.Error()
			break
		}
		result = normalizeResourceResult(uri, value)

	case "prompts/list":
		result = map[string]any{"prompts": s.listPrompts()}

	case "prompts/get":
		name := stringParam(params, "name")
		reg, ok := s.promptByName(name)
		if !ok {
			errCode, errMsg = jsonrpc.CodeMethodNotFound, "Prompt not found: "+name
			break
		}
		value, err := s.invoke(reg.handler, id, mapParam(params, "arguments"))
		if err != nil {
			errCode, errMsg = jsonrpc.CodeInternalError, err.Error()
			break
		}
		result = normalizePromptResult(value)

	default:
		errCode, errMsg = jsonrpc.CodeMethodNotFound, "Method not found: "+req.Method
	}

	if req.IsNotification() {
		return nil
	}
	if errCode != 0 {
		return jsonrpc.NewError(id, errCode, errMsg)
	}
	return jsonrpc.NewResult(id, result)
}

// capabilities reports which request families this server serves, derived
// from registry population. Logging is always advertised.
func (s *MCPServer) capabilities() map[string]any {
	tools, resources, prompts := s.counts()
	caps := map[string]any{"logging": map[string]any{}}
	if tools > 0 {
		caps["tools"] = map[string]any{}
	}
	if resources > 0 {
		caps["resources"] = map[string]any{}
	}
	if prompts > 0 {
		caps["prompts"] = map[string]any{}
	}
	return caps
}

// callTool invokes a tool handler. Handler failures are data, not protocol
// errors.
func (s *MCPServer) callTool(reg *toolRegistration, requestID any, args map[string]any) any {
	value, err := s.invoke(reg.handler, requestID, args)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return normalizeToolResult(value)
}

// invoke calls a bound handler with arguments drawn from args by parameter
// name, injecting a fresh Context when the handler wants one. Panics inside
// the handler surface as errors.
func (s *MCPServer) invoke(h boundHandler, requestID any, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	t := h.fn.Type()
	in := make([]reflect.Value, 0, t.NumIn())
	pos := 0
	if h.wantsContext {
		in = append(in, reflect.ValueOf(newContext(s, requestID)))
		pos = 1
	}
	for i, name := range h.paramNames {
		paramType := t.In(pos + i)
		raw, ok := args[name]
		if !ok {
			d, hasDefault := h.defaults[name]
			switch {
			case hasDefault:
				raw = d
			case reservedParams[name]:
				in = append(in, reflect.Zero(paramType))
				continue
			default:
				return nil, fmt.Errorf("missing required argument: %s", name)
			}
		}
		v, convErr := convertArg(raw, paramType)
		if convErr != nil {
			return nil, fmt.Errorf("argument %s: %w", name, convErr)
		}
		in = append(in, v)
	}

	out := h.fn.Call(in)
	if h.returnsError {
		if errVal := out[1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
	}
	return out[0].Interface(), nil
}

// convertArg coerces a JSON-decoded argument or registered default to the
// handler's parameter type. Numeric kinds convert freely; composite targets
// round-trip through JSON.
func convertArg(raw any, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(target), nil
	}
	if target.Kind() == reflect.Pointer {
		elem, err := convertArg(raw, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(elem)
		return p, nil
	}
	v := reflect.ValueOf(raw)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if isNumericKind(v.Kind()) && isNumericKind(target.Kind()) {
		return v.Convert(target), nil
	}
	switch target.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		if b, err := json.Marshal(raw); err == nil {
			p := reflect.New(target)
			if json.Unmarshal(b, p.Interface()) == nil {
				return p.Elem(), nil
			}
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", raw, target)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// normalizeToolResult folds the allowed handler return shapes into the wire
// format: a ToolResult passes through, map and struct values are rendered as
// JSON text content, anything else is stringified.
func normalizeToolResult(value any) *ToolResult {
	switch v := value.(type) {
	case *ToolResult:
		if v.Content == nil {
			v.Content = []Content{}
		}
		return v
	case ToolResult:
		return normalizeToolResult(&v)
	}
	if isMapLike(value) {
		return TextResult(mustJSON(value))
	}
	return TextResult(fmt.Sprint(value))
}

// normalizeResourceResult folds resource handler returns into contents items
// addressed by the request URI.
func normalizeResourceResult(uri string, value any) *ResourceResult {
	switch v := value.(type) {
	case *ResourceResult:
		if v.Contents == nil {
			v.Contents = []ResourceContent{}
		}
		return v
	case ResourceResult:
		return normalizeResourceResult(uri, &v)
	}
	if isMapLike(value) {
		return &ResourceResult{Contents: []ResourceContent{{URI: uri, Text: mustJSON(value)}}}
	}
	return &ResourceResult{Contents: []ResourceContent{{URI: uri, Text: fmt.Sprint(value)}}}
}

// normalizePromptResult folds prompt handler returns: a PromptResult passes
// through, message slices become the messages list, anything else becomes a
// single user message.
func normalizePromptResult(value any) any {
	switch v := value.(type) {
	case *PromptResult:
		if v.Messages == nil {
			v.Messages = []Message{}
		}
		return v
	case PromptResult:
		return normalizePromptResult(&v)
	case []Message:
		return &PromptResult{Messages: v}
	}
	if value != nil && reflect.ValueOf(value).Kind() == reflect.Slice {
		// A prepared list of message objects travels as given.
		return map[string]any{"messages": value}
	}
	return &PromptResult{Messages: []Message{UserMessage(fmt.Sprint(value))}}
}

func isMapLike(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
}

// mustJSON renders v as JSON, falling back to fmt for values encoding/json
// cannot handle.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// stringParam reads a string member of a params object, tolerating absence
// and other types.
func stringParam(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// mapParam reads an object member of a params object; absent or mistyped
// members yield an empty map.
func mapParam(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}
