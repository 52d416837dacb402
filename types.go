package nanohubmcp

import (
	"encoding/base64"
	"fmt"
	"os"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content is one piece of tool-result or message content. The concrete types
// are TextContent and ImageContent.
type Content interface {
	content()
}

// TextContent is plain text content.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextContent) content() {}

// NewText returns text content.
func NewText(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// ImageContent is base64-encoded image content.
type ImageContent struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (ImageContent) content() {}

// NewImage returns image content from already base64-encoded data. An empty
// mimeType defaults to image/png.
func NewImage(data, mimeType string) ImageContent {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return ImageContent{Type: "image", Data: data, MimeType: mimeType}
}

// NewImageFromFile reads a file and base64-encodes it into image content.
func NewImageFromFile(path, mimeType string) (ImageContent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ImageContent{}, fmt.Errorf("read image %s: %w", path, err)
	}
	return NewImage(base64.StdEncoding.EncodeToString(b), mimeType), nil
}

// ToolResult is the structured result of a tool invocation. IsError marks the
// tool's own failures; these still travel as successful JSON-RPC responses.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// TextResult wraps plain text in a successful ToolResult.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{NewText(text)}}
}

// ErrorResult wraps an error message in a ToolResult flagged as failed.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{NewText(text)}, IsError: true}
}

// ResourceContent is one item returned from reading a resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	Text     string `json:"text"`
	Blob     string `json:"blob,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ResourceResult is the structured result of reading a resource.
type ResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// Message is one prompt message.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// NewMessage returns a text message with the given role.
func NewMessage(role, text string) Message {
	return Message{Role: role, Content: NewText(text)}
}

// UserMessage returns a user-role text message.
func UserMessage(text string) Message { return NewMessage(RoleUser, text) }

// AssistantMessage returns an assistant-role text message.
func AssistantMessage(text string) Message { return NewMessage(RoleAssistant, text) }

// PromptResult is the structured result of resolving a prompt.
type PromptResult struct {
	Messages    []Message `json:"messages"`
	Description string    `json:"description,omitempty"`
}

// Tool describes a registered tool. Tags categorize tools for callers of the
// registry; they are not part of the wire listing.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Tags        []string       `json:"-"`
}

// Resource describes a registered resource. Template marks URIs containing
// placeholder segments; it is not part of the wire listing.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Template    bool   `json:"-"`
}

// PromptArgument describes one prompt parameter.
type PromptArgument struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Prompt describes a registered prompt.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// ServerInfo identifies the server in initialize responses and discovery
// documents.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
