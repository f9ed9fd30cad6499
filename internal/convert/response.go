package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/findcloutintern/kimigate/internal/parse"
	"github.com/findcloutintern/kimigate/internal/protocol"
	"github.com/findcloutintern/kimigate/internal/upstream"
)

// Response translates a completed upstream response into the client
// protocol. Reasoning is recovered from whichever channel the upstream used;
// inline <think> spans are only extracted when no dedicated reasoning field
// was present.
func Response(resp *upstream.ChatResponse, model string) (*protocol.MessagesResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("upstream response has no choices")
	}

	choice := resp.Choices[0]
	message := choice.Message

	var content []protocol.ContentBlock

	reasoning := message.ReasoningContent
	if reasoning == "" && len(message.ReasoningDetails) > 0 {
		parts := make([]string, 0, len(message.ReasoningDetails))
		for _, detail := range message.ReasoningDetails {
			parts = append(parts, detail.Text)
		}

		reasoning = strings.Join(parts, "\n")
	}

	if reasoning != "" {
		content = append(content, protocol.ThinkingBlock(reasoning))
	}

	if message.Content.IsText() {
		raw := message.Content.Text()

		if reasoning == "" {
			think, rest := parse.ExtractThink(raw)
			if think != "" {
				content = append(content, protocol.ThinkingBlock(think))
			}

			raw = rest
		}

		if raw != "" {
			content = append(content, protocol.TextBlock(raw))
		}
	} else {
		for _, part := range message.Content.Parts() {
			if part.Type == "text" {
				content = append(content, protocol.TextBlock(part.Text))
			}
		}
	}

	for _, tc := range message.ToolCalls {
		content = append(content, protocol.ToolUseBlock(tc.ID, tc.Function.Name, parseToolArguments(tc.Function.Arguments)))
	}

	if len(content) == 0 {
		content = append(content, protocol.TextBlock(" "))
	}

	id := resp.ID
	if id == "" {
		id = protocol.NewMessageID()
	}

	var usage protocol.Usage
	if resp.Usage != nil {
		usage.InputTokens = resp.Usage.PromptTokens
		usage.OutputTokens = resp.Usage.CompletionTokens
	}

	return &protocol.MessagesResponse{
		ID:           id,
		Type:         "message",
		Role:         protocol.RoleAssistant,
		Model:        model,
		Content:      content,
		StopReason:   MapStopReason(choice.FinishReason),
		StopSequence: nil,
		Usage:        usage,
	}, nil
}

// parseToolArguments decodes the upstream's JSON argument string. Malformed
// JSON is passed through verbatim so the client still sees what the model
// produced.
func parseToolArguments(arguments string) any {
	var input any
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return arguments
	}

	return input
}
