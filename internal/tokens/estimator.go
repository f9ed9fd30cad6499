// Package tokens approximates token counts with the cl100k_base encoding.
// The counts back the count_tokens endpoint and the streamed output-token
// fallback; they are estimates, not the upstream's exact tokenization.
package tokens

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/findcloutintern/kimigate/internal/protocol"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})

	return encoder
}

// Count returns the token count of a string, falling back to a bytes/4
// heuristic if the encoding is unavailable.
func Count(text string) int {
	if enc := getEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}

	return len(text) / 4
}

// EstimateRequest approximates the input-token footprint of a request:
// system prompt, every message block (with small fixed overheads for tool
// use and tool results), tool declarations, and per-message framing.
func EstimateRequest(messages []protocol.Message, system protocol.SystemPrompt, tools []protocol.Tool) int {
	total := 0

	if !system.IsZero() {
		if system.IsText() {
			total += Count(system.Text())
		} else {
			for _, block := range system.Blocks() {
				total += Count(block.Text)
			}
		}
	}

	for _, msg := range messages {
		if msg.Content.IsText() {
			total += Count(msg.Content.Text())

			continue
		}

		for _, block := range msg.Content.Blocks() {
			switch block.Type {
			case protocol.BlockText:
				total += Count(block.Text)
			case protocol.BlockThinking:
				total += Count(block.Thinking)
			case protocol.BlockToolUse:
				total += Count(block.Name)
				total += Count(marshalString(block.Input))
				total += 10
			case protocol.BlockToolResult:
				if block.Content.IsText() {
					total += Count(block.Content.Text())
				} else {
					total += Count(marshalString(block.Content.Parts()))
				}

				total += 5
			}
		}
	}

	for _, tool := range tools {
		total += Count(tool.Name + tool.Description + marshalString(tool.InputSchema))
	}

	total += len(messages) * 3
	total += len(tools) * 5

	if total < 1 {
		return 1
	}

	return total
}

func marshalString(v any) string {
	if v == nil {
		return "{}"
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}

	return string(data)
}
