// Package protocol defines the client-facing wire format: Anthropic-style
// messages with typed content blocks and block-lifecycle streaming events.
// Inbound JSON is parsed into these types once, at the HTTP boundary; the
// rest of the gateway never probes raw maps.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Role values accepted on inbound messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Content block types.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// MessagesRequest is the inbound request body for /v1/messages.
type MessagesRequest struct {
	Model         string       `json:"model"`
	Messages      []Message    `json:"messages"`
	System        SystemPrompt `json:"system,omitempty"`
	Tools         []Tool       `json:"tools,omitempty"`
	MaxTokens     int          `json:"max_tokens"`
	Temperature   *float64     `json:"temperature,omitempty"`
	TopP          *float64     `json:"top_p,omitempty"`
	StopSequences []string     `json:"stop_sequences,omitempty"`
	Stream        bool         `json:"stream,omitempty"`
}

// Message is one conversation turn. Content may arrive as a plain string or
// as an ordered list of content blocks.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent holds either a plain-text string or a block list, matching
// whichever wire form the client sent.
type MessageContent struct {
	text   string
	blocks []ContentBlock
	isText bool
}

// TextContent builds plain-string message content.
func TextContent(text string) MessageContent {
	return MessageContent{text: text, isText: true}
}

// BlockContent builds structured message content.
func BlockContent(blocks ...ContentBlock) MessageContent {
	return MessageContent{blocks: blocks}
}

// IsText reports whether the wire form was a plain string.
func (c MessageContent) IsText() bool { return c.isText }

// Text returns the plain string form; empty for block content.
func (c MessageContent) Text() string { return c.text }

// Blocks returns the block list form; nil for plain-string content.
func (c MessageContent) Blocks() []ContentBlock { return c.blocks }

// PlainText flattens the content to a single string: the string itself, or
// the concatenated text of every text block.
func (c MessageContent) PlainText() string {
	if c.isText {
		return c.text
	}

	var out string
	for _, b := range c.blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}

	return out
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		c.isText = true
		c.blocks = nil

		return json.Unmarshal(data, &c.text)
	}

	c.isText = false

	return json.Unmarshal(data, &c.blocks)
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}

	return json.Marshal(c.blocks)
}

// ContentBlock is the tagged union over text, thinking, tool_use and
// tool_result blocks. Type selects which fields are meaningful.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// tool_result
	ToolUseID string             `json:"tool_use_id,omitempty"`
	Content   *ToolResultContent `json:"content,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ThinkingBlock builds a thinking content block.
func ThinkingBlock(thinking string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Thinking: thinking}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// MarshalJSON emits only the fields meaningful for the block's type. The
// primary field is always present, even when empty, so a text block
// round-trips as {"type":"text","text":""} rather than losing its payload
// key.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{b.Type, b.Text})
	case BlockThinking:
		return json.Marshal(struct {
			Type     string `json:"type"`
			Thinking string `json:"thinking"`
		}{b.Type, b.Thinking})
	case BlockToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}

		return json.Marshal(struct {
			Type  string `json:"type"`
			ID    string `json:"id"`
			Name  string `json:"name"`
			Input any    `json:"input"`
		}{b.Type, b.ID, b.Name, input})
	case BlockToolResult:
		return json.Marshal(struct {
			Type      string             `json:"type"`
			ToolUseID string             `json:"tool_use_id"`
			Content   *ToolResultContent `json:"content"`
		}{b.Type, b.ToolUseID, b.Content})
	}

	type plain ContentBlock

	return json.Marshal(plain(b))
}

// ToolResultContent is the content of a tool_result block: a plain string or
// a list of nested blocks.
type ToolResultContent struct {
	text   string
	parts  []ContentBlock
	isText bool
}

// ToolResultText builds plain-string tool result content.
func ToolResultText(text string) *ToolResultContent {
	return &ToolResultContent{text: text, isText: true}
}

// ToolResultParts builds structured tool result content.
func ToolResultParts(parts ...ContentBlock) *ToolResultContent {
	return &ToolResultContent{parts: parts}
}

// IsText reports whether the wire form was a plain string.
func (c *ToolResultContent) IsText() bool { return c != nil && c.isText }

// Text returns the plain string form.
func (c *ToolResultContent) Text() string {
	if c == nil {
		return ""
	}

	return c.text
}

// Parts returns the block-list form.
func (c *ToolResultContent) Parts() []ContentBlock {
	if c == nil {
		return nil
	}

	return c.parts
}

func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		c.isText = true
		c.parts = nil

		return json.Unmarshal(data, &c.text)
	}

	c.isText = false

	return json.Unmarshal(data, &c.parts)
}

func (c ToolResultContent) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}

	return json.Marshal(c.parts)
}

// Flatten renders the result content as a single string, joining nested
// blocks with newlines the way tool output is fed back to the upstream.
func (c *ToolResultContent) Flatten() string {
	if c == nil {
		return ""
	}

	if c.isText {
		return c.text
	}

	var out string

	for i, p := range c.parts {
		if i > 0 {
			out += "\n"
		}

		if p.Type == BlockText {
			out += p.Text
		} else {
			out += fmt.Sprintf("%v", p)
		}
	}

	return out
}

// SystemPrompt is the optional system field: a string or a list of text
// blocks.
type SystemPrompt struct {
	text   string
	blocks []ContentBlock
	isText bool
	set    bool
}

// SystemText builds a plain-string system prompt.
func SystemText(text string) SystemPrompt {
	return SystemPrompt{text: text, isText: true, set: true}
}

// SystemBlocks builds a block-list system prompt.
func SystemBlocks(blocks ...ContentBlock) SystemPrompt {
	return SystemPrompt{blocks: blocks, set: true}
}

// IsZero reports whether the field was absent from the request.
func (s SystemPrompt) IsZero() bool { return !s.set }

// IsText reports whether the wire form was a plain string.
func (s SystemPrompt) IsText() bool { return s.isText }

// Text returns the plain string form.
func (s SystemPrompt) Text() string { return s.text }

// Blocks returns the block-list form.
func (s SystemPrompt) Blocks() []ContentBlock { return s.blocks }

func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	s.set = true

	if len(data) > 0 && data[0] == '"' {
		s.isText = true

		return json.Unmarshal(data, &s.text)
	}

	s.isText = false

	return json.Unmarshal(data, &s.blocks)
}

func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}

	if s.isText {
		return json.Marshal(s.text)
	}

	return json.Marshal(s.blocks)
}

// Tool is one inbound tool declaration.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// MessagesResponse is the non-streaming response body for /v1/messages.
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// Usage reports token accounting in the client protocol's field names. The
// upstream has no prompt-cache concept, so the cache counters are always 0.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// TokenCountRequest is the inbound body for /v1/messages/count_tokens.
type TokenCountRequest struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	System   SystemPrompt `json:"system,omitempty"`
	Tools    []Tool       `json:"tools,omitempty"`
}

// TokenCountResponse is the count_tokens response body.
type TokenCountResponse struct {
	InputTokens int `json:"input_tokens"`
}

// ErrorResponse is the client protocol's error envelope.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error type and human-readable message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorResponse builds the standard error envelope.
func NewErrorResponse(errType, message string) ErrorResponse {
	return ErrorResponse{
		Type: "error",
		Error: ErrorDetail{
			Type:    errType,
			Message: message,
		},
	}
}
