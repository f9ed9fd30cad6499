// Package upstream implements the client for the OpenAI-style chat
// completions API exposed by NVIDIA NIM, including SSE stream decoding and
// upstream error classification.
package upstream

import "encoding/json"

// ChatRequest is the upstream request body.
type ChatRequest struct {
	Model         string         `json:"model"`
	Messages      []ChatMessage  `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Tools         []ChatTool     `json:"tools,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	// ChatTemplateKwargs enables the model's extended thinking mode; NIM
	// merges this into the chat template on its side.
	ChatTemplateKwargs map[string]any `json:"chat_template_kwargs,omitempty"`
}

// StreamOptions requests a terminal usage chunk on streaming calls.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is one upstream message with flat string content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a completed upstream function call.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries a function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool is one tool declaration in the upstream's function-calling schema.
type ChatTool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ChatResponse is a completed (non-streaming) upstream response.
type ChatResponse struct {
	ID      string     `json:"id"`
	Model   string     `json:"model"`
	Choices []Choice   `json:"choices"`
	Usage   *ChatUsage `json:"usage,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// ResponseMessage is the assistant message of a completed response. The
// model's reasoning may surface through ReasoningContent, through itemized
// ReasoningDetails, or inline in Content as <think> spans.
type ResponseMessage struct {
	Role             string            `json:"role,omitempty"`
	Content          ContentValue      `json:"content,omitempty"`
	ReasoningContent string            `json:"reasoning_content,omitempty"`
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
	ToolCalls        []ToolCall        `json:"tool_calls,omitempty"`
}

// ReasoningDetail is one itemized reasoning entry.
type ReasoningDetail struct {
	Text string `json:"text"`
}

// ContentValue tolerates both wire forms of response content: a plain string
// or a list of typed parts.
type ContentValue struct {
	text   string
	parts  []ContentPart
	isText bool
}

// ContentPart is one entry of list-form response content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextValue builds string-form content.
func TextValue(text string) ContentValue {
	return ContentValue{text: text, isText: true}
}

// PartsValue builds list-form content.
func PartsValue(parts ...ContentPart) ContentValue {
	return ContentValue{parts: parts}
}

// IsText reports whether the wire form was a plain string.
func (c ContentValue) IsText() bool { return c.isText }

// Text returns the string form.
func (c ContentValue) Text() string { return c.text }

// Parts returns the list form.
func (c ContentValue) Parts() []ContentPart { return c.parts }

func (c *ContentValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ContentValue{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		c.isText = true

		return json.Unmarshal(data, &c.text)
	}

	c.isText = false

	return json.Unmarshal(data, &c.parts)
}

func (c ContentValue) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}

	return json.Marshal(c.parts)
}

// ChatUsage is the upstream token accounting.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// StreamChunk is one decoded streaming delta event.
type StreamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
	Usage   *ChatUsage     `json:"usage,omitempty"`
}

// StreamChoice is one choice of a streaming chunk.
type StreamChoice struct {
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental payload of a streaming chunk. Any combination of
// fields may be present.
type Delta struct {
	Content          string          `json:"content,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental fragment of a native function call. Name
// may stream across several fragments; Arguments is appended verbatim.
type ToolCallDelta struct {
	Index    *int              `json:"index,omitempty"`
	ID       string            `json:"id,omitempty"`
	Function FunctionCallDelta `json:"function"`
}

// FunctionCallDelta carries partial function-call data. Name is a pointer so
// an absent name is distinguishable from an empty fragment.
type FunctionCallDelta struct {
	Name      *string `json:"name,omitempty"`
	Arguments string  `json:"arguments,omitempty"`
}
