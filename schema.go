package nanohubmcp

import (
	"reflect"
	"strings"
)

// Parameters with these names are receivers or injected context, never part
// of the input schema.
var reservedParams = map[string]bool{
	"self":    true,
	"cls":     true,
	"ctx":     true,
	"context": true,
}

// inferInputSchema derives a JSON schema object for a handler's data
// parameters. paramTypes runs parallel to names. Each parameter takes its
// type from the strongest available source: the declared Go type, the
// matching entry of a type comment, the runtime type of a non-nil default,
// then "string". A parameter is required iff it has no default.
func inferInputSchema(names []string, paramTypes []reflect.Type, typeComment string, defaults map[string]any) map[string]any {
	props := map[string]any{}
	required := []string{}

	commentTypes, ok := parseTypeComment(typeComment)
	if !ok || len(commentTypes) != len(names) {
		commentTypes = nil
	}

	for i, name := range names {
		if reservedParams[name] {
			continue
		}
		jsType := ""
		if i < len(paramTypes) {
			jsType = typeFromGo(paramTypes[i])
		}
		if jsType == "" && commentTypes != nil {
			jsType = commentTypes[i]
		}
		if jsType == "" {
			if d, hasDefault := defaults[name]; hasDefault && d != nil {
				jsType = typeFromValue(d)
			}
		}
		if jsType == "" {
			jsType = "string"
		}
		props[name] = map[string]any{"type": jsType}
		if _, hasDefault := defaults[name]; !hasDefault {
			required = append(required, name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// typeFromGo maps a Go parameter type to a schema type. Empty means the type
// carries no schema information and weaker sources get a turn; interface
// parameters land here so handlers can stay loosely typed.
func typeFromGo(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Interface:
		return ""
	default:
		return "string"
	}
}

// parseTypeComment parses the "(T1, T2, ...) -> R" annotation format carried
// over from dynamically typed handler declarations. It returns one schema
// type per argument position; ok is false when the comment is absent or
// malformed.
func parseTypeComment(tc string) ([]string, bool) {
	tc = strings.TrimSpace(tc)
	if !strings.HasPrefix(tc, "(") {
		return nil, false
	}
	depth, end := 0, -1
	for i := 0; i < len(tc) && end < 0; i++ {
		switch tc[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 && tc[i] == ')' {
				end = i
			}
		}
	}
	if end < 0 {
		return nil, false
	}
	inner := strings.TrimSpace(tc[1:end])
	if inner == "" {
		return []string{}, true
	}
	parts := splitTopLevel(inner)
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		types = append(types, typeFromExpr(p))
	}
	return types, true
}

// splitTopLevel splits on commas outside any bracket pair, so nested generics
// like Dict[str, int] survive.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// typeFromExpr resolves a single type expression from a type comment.
// Optional unwraps, Union collapses when its branches agree, container
// generics map to array or object, and anything unrecognized is a string.
func typeFromExpr(expr string) string {
	expr = strings.TrimSpace(expr)
	if i := strings.Index(expr, "["); i >= 0 && strings.HasSuffix(expr, "]") {
		inner := expr[i+1 : len(expr)-1]
		switch strings.TrimSpace(expr[:i]) {
		case "Optional":
			return typeFromExpr(inner)
		case "Union":
			return unionType(splitTopLevel(inner))
		case "List", "Tuple", "Set", "Sequence", "Iterable", "list", "tuple", "set":
			return "array"
		case "Dict", "Mapping", "dict":
			return "object"
		default:
			return "string"
		}
	}
	switch strings.ToLower(expr) {
	case "str", "string":
		return "string"
	case "int", "integer", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return "integer"
	case "float", "number", "double", "float32", "float64":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "list", "array", "tuple", "set":
		return "array"
	case "dict", "object", "map", "mapping":
		return "object"
	default:
		return "string"
	}
}

// unionType collapses Union branches: agreement wins, disagreement falls back
// to string. None branches mark optionality and are ignored.
func unionType(branches []string) string {
	agreed := ""
	for _, b := range branches {
		b = strings.TrimSpace(b)
		if b == "None" || b == "NoneType" || b == "nil" || b == "null" {
			continue
		}
		t := typeFromExpr(b)
		if agreed == "" {
			agreed = t
		} else if agreed != t {
			return "string"
		}
	}
	if agreed == "" {
		return "string"
	}
	return agreed
}

// typeFromValue maps a default value's runtime type to a schema type.
func typeFromValue(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case string:
		return "string"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return "string"
}

// promptArguments derives prompt argument descriptors from parameter names;
// an argument is required iff it has no default.
func promptArguments(names []string, defaults map[string]any) []PromptArgument {
	var args []PromptArgument
	for _, name := range names {
		if reservedParams[name] {
			continue
		}
		_, hasDefault := defaults[name]
		args = append(args, PromptArgument{Name: name, Required: !hasDefault})
	}
	return args
}
