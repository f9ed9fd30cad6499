// Package convert translates between the client protocol's block-structured
// messages and the upstream's flat chat-completions shape, in both
// directions.
package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/findcloutintern/kimigate/internal/protocol"
	"github.com/findcloutintern/kimigate/internal/upstream"
)

// BuildChatRequest assembles the full upstream request body: converted
// messages with the system prompt prepended, tool declarations, sampling
// parameters, and the chat-template flag that enables the model's thinking
// mode.
func BuildChatRequest(req *protocol.MessagesRequest, model string, stream bool) *upstream.ChatRequest {
	messages := Messages(req.Messages)

	if sys, ok := SystemMessage(req.System); ok {
		messages = append([]upstream.ChatMessage{sys}, messages...)
	}

	out := &upstream.ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Tools:       Tools(req.Tools),
		Stream:      stream,
		ChatTemplateKwargs: map[string]any{
			"thinking": true,
		},
	}

	if stream {
		out.StreamOptions = &upstream.StreamOptions{IncludeUsage: true}
	}

	return out
}

// Messages converts the client conversation. Plain-string content passes
// through; block lists flatten by role, with tool_result blocks becoming
// separate tool-role messages.
func Messages(messages []protocol.Message) []upstream.ChatMessage {
	result := make([]upstream.ChatMessage, 0, len(messages))

	for _, msg := range messages {
		if msg.Content.IsText() {
			result = append(result, upstream.ChatMessage{Role: msg.Role, Content: msg.Content.Text()})

			continue
		}

		switch msg.Role {
		case protocol.RoleAssistant:
			result = append(result, convertAssistant(msg.Content.Blocks()))
		case protocol.RoleUser:
			result = append(result, convertUser(msg.Content.Blocks())...)
		}
	}

	return result
}

// convertAssistant flattens an assistant turn. Thinking blocks are restored
// as an inline <think> span so the model sees its prior reasoning; tool_use
// blocks become native tool calls.
func convertAssistant(blocks []protocol.ContentBlock) upstream.ChatMessage {
	var (
		textParts      []string
		reasoningParts []string
		toolCalls      []upstream.ToolCall
	)

	for _, block := range blocks {
		switch block.Type {
		case protocol.BlockText:
			textParts = append(textParts, block.Text)
		case protocol.BlockThinking:
			reasoningParts = append(reasoningParts, block.Thinking)
		case protocol.BlockToolUse:
			toolCalls = append(toolCalls, upstream.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: upstream.FunctionCall{
					Name:      block.Name,
					Arguments: marshalToolInput(block.Input),
				},
			})
		}
	}

	var segments []string
	if len(reasoningParts) > 0 {
		segments = append(segments, "<think>\n"+strings.Join(reasoningParts, "\n")+"\n</think>")
	}

	if len(textParts) > 0 {
		segments = append(segments, strings.Join(textParts, "\n"))
	}

	content := strings.Join(segments, "\n\n")
	if content == "" && len(toolCalls) == 0 {
		content = " "
	}

	return upstream.ChatMessage{
		Role:      protocol.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}
}

// convertUser splits a user turn: each tool_result becomes its own
// tool-role message, then any text blocks follow as one user message.
func convertUser(blocks []protocol.ContentBlock) []upstream.ChatMessage {
	var (
		result    []upstream.ChatMessage
		textParts []string
	)

	for _, block := range blocks {
		switch block.Type {
		case protocol.BlockText:
			textParts = append(textParts, block.Text)
		case protocol.BlockToolResult:
			result = append(result, upstream.ChatMessage{
				Role:       protocol.RoleTool,
				ToolCallID: block.ToolUseID,
				Content:    block.Content.Flatten(),
			})
		}
	}

	if len(textParts) > 0 {
		result = append(result, upstream.ChatMessage{
			Role:    protocol.RoleUser,
			Content: strings.Join(textParts, "\n"),
		})
	}

	return result
}

// SystemMessage converts the system prompt into a leading system-role
// message. Block-form prompts join with blank lines.
func SystemMessage(system protocol.SystemPrompt) (upstream.ChatMessage, bool) {
	if system.IsZero() {
		return upstream.ChatMessage{}, false
	}

	if system.IsText() {
		return upstream.ChatMessage{Role: protocol.RoleSystem, Content: system.Text()}, true
	}

	var parts []string

	for _, block := range system.Blocks() {
		if block.Type == protocol.BlockText {
			parts = append(parts, block.Text)
		}
	}

	if len(parts) == 0 {
		return upstream.ChatMessage{}, false
	}

	return upstream.ChatMessage{
		Role:    protocol.RoleSystem,
		Content: strings.TrimSpace(strings.Join(parts, "\n\n")),
	}, true
}

// Tools converts tool declarations into the upstream's function schema.
func Tools(tools []protocol.Tool) []upstream.ChatTool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]upstream.ChatTool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, upstream.ChatTool{
			Type: "function",
			Function: upstream.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	return result
}

func marshalToolInput(input any) string {
	if input == nil {
		return "{}"
	}

	if data, err := json.Marshal(input); err == nil {
		return string(data)
	}

	return fmt.Sprintf("%v", input)
}
