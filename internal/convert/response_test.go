package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findcloutintern/kimigate/internal/protocol"
	"github.com/findcloutintern/kimigate/internal/upstream"
)

const testModel = "moonshotai/kimi-k2.5"

func TestResponse_NoChoices(t *testing.T) {
	_, err := Response(&upstream.ChatResponse{}, testModel)
	require.Error(t, err)
}

func TestResponse_TextOnly(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		ID: "chatcmpl-1",
		Choices: []upstream.Choice{{
			Message:      upstream.ResponseMessage{Content: upstream.TextValue("hello")},
			FinishReason: "stop",
		}},
		Usage: &upstream.ChatUsage{PromptTokens: 12, CompletionTokens: 3},
	}, testModel)
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", out.ID)
	assert.Equal(t, "message", out.Type)
	assert.Equal(t, "assistant", out.Role)
	assert.Equal(t, testModel, out.Model)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, 12, out.Usage.InputTokens)
	assert.Equal(t, 3, out.Usage.OutputTokens)
	assert.Zero(t, out.Usage.CacheCreationInputTokens)
	assert.Zero(t, out.Usage.CacheReadInputTokens)

	require.Len(t, out.Content, 1)
	assert.Equal(t, protocol.TextBlock("hello"), out.Content[0])
}

func TestResponse_ReasoningContentField(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				ReasoningContent: "because",
				Content:          upstream.TextValue("answer"),
			},
			FinishReason: "stop",
		}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 2)
	assert.Equal(t, protocol.ThinkingBlock("because"), out.Content[0])
	assert.Equal(t, protocol.TextBlock("answer"), out.Content[1])
}

func TestResponse_ReasoningDetailsJoined(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				ReasoningDetails: []upstream.ReasoningDetail{{Text: "first"}, {Text: "second"}},
			},
		}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 1)
	assert.Equal(t, protocol.ThinkingBlock("first\nsecond"), out.Content[0])
}

func TestResponse_InlineThinkExtractedWhenNoReasoningField(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				Content: upstream.TextValue("<think>hidden</think>\n\nvisible"),
			},
		}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 2)
	assert.Equal(t, protocol.ThinkingBlock("hidden"), out.Content[0])
	assert.Equal(t, protocol.TextBlock("visible"), out.Content[1])
}

func TestResponse_InlineThinkIgnoredWhenReasoningFieldPresent(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				ReasoningContent: "real reasoning",
				Content:          upstream.TextValue("<think>stale</think>text"),
			},
		}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 2)
	assert.Equal(t, protocol.ThinkingBlock("real reasoning"), out.Content[0])
	// Tags stay in the text untouched.
	assert.Equal(t, protocol.TextBlock("<think>stale</think>text"), out.Content[1])
}

func TestResponse_ToolCalls(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				ToolCalls: []upstream.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: upstream.FunctionCall{
						Name:      "Read",
						Arguments: `{"file_path":"/tmp/a"}`,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}, testModel)
	require.NoError(t, err)

	assert.Equal(t, "tool_use", out.StopReason)
	require.Len(t, out.Content, 1)
	assert.Equal(t, protocol.BlockToolUse, out.Content[0].Type)
	assert.Equal(t, "call_1", out.Content[0].ID)
	assert.Equal(t, "Read", out.Content[0].Name)
	assert.Equal(t, map[string]any{"file_path": "/tmp/a"}, out.Content[0].Input)
}

func TestResponse_MalformedToolArgumentsKeptRaw(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				ToolCalls: []upstream.ToolCall{{
					ID:       "call_2",
					Function: upstream.FunctionCall{Name: "Bash", Arguments: `{"cmd": not json`},
				}},
			},
		}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 1)
	assert.Equal(t, `{"cmd": not json`, out.Content[0].Input)
}

func TestResponse_EmptyContentSynthesizesSpace(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{Message: upstream.ResponseMessage{}}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 1)
	assert.Equal(t, protocol.TextBlock(" "), out.Content[0])
	assert.Equal(t, "end_turn", out.StopReason)
}

func TestResponse_ListContent(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{
				Content: upstream.PartsValue(
					upstream.ContentPart{Type: "text", Text: "part one"},
					upstream.ContentPart{Type: "image", Text: "ignored"},
					upstream.ContentPart{Type: "text", Text: "part two"},
				),
			},
		}},
	}, testModel)
	require.NoError(t, err)

	require.Len(t, out.Content, 2)
	assert.Equal(t, protocol.TextBlock("part one"), out.Content[0])
	assert.Equal(t, protocol.TextBlock("part two"), out.Content[1])
}

func TestResponse_MissingIDGenerated(t *testing.T) {
	out, err := Response(&upstream.ChatResponse{
		Choices: []upstream.Choice{{
			Message: upstream.ResponseMessage{Content: upstream.TextValue("x")},
		}},
	}, testModel)
	require.NoError(t, err)
	assert.Contains(t, out.ID, "msg_")
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"stop", "end_turn"},
		{"length", "max_tokens"},
		{"tool_calls", "tool_use"},
		{"content_filter", "end_turn"},
		{"", "end_turn"},
		{"something_else", "end_turn"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStopReason(tt.in), "reason %q", tt.in)
	}
}
