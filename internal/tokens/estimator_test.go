package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/findcloutintern/kimigate/internal/protocol"
)

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(""))
	assert.Greater(t, Count("hello world"), 0)
	assert.Greater(t, Count("a much longer sentence with several words"), Count("short"))
}

func TestEstimateRequest_MinimumOne(t *testing.T) {
	got := EstimateRequest(nil, protocol.SystemPrompt{}, nil)
	assert.Equal(t, 1, got)
}

func TestEstimateRequest_PlainMessages(t *testing.T) {
	messages := []protocol.Message{
		{Role: protocol.RoleUser, Content: protocol.TextContent("hello there")},
		{Role: protocol.RoleAssistant, Content: protocol.TextContent("hi, how can I help?")},
	}

	got := EstimateRequest(messages, protocol.SystemPrompt{}, nil)

	want := Count("hello there") + Count("hi, how can I help?") + 2*3
	assert.Equal(t, want, got)
}

func TestEstimateRequest_SystemPrompt(t *testing.T) {
	messages := []protocol.Message{
		{Role: protocol.RoleUser, Content: protocol.TextContent("q")},
	}

	without := EstimateRequest(messages, protocol.SystemPrompt{}, nil)
	with := EstimateRequest(messages, protocol.SystemText("be concise and accurate"), nil)

	assert.Equal(t, without+Count("be concise and accurate"), with)
}

func TestEstimateRequest_ToolUseOverhead(t *testing.T) {
	input := map[string]any{"path": "/tmp/file"}
	messages := []protocol.Message{
		{Role: protocol.RoleAssistant, Content: protocol.BlockContent(
			protocol.ToolUseBlock("toolu_1", "read_file", input),
		)},
	}

	got := EstimateRequest(messages, protocol.SystemPrompt{}, nil)

	want := Count("read_file") + Count(`{"path":"/tmp/file"}`) + 10 + 3
	assert.Equal(t, want, got)
}

func TestEstimateRequest_ToolResultOverhead(t *testing.T) {
	messages := []protocol.Message{
		{Role: protocol.RoleUser, Content: protocol.BlockContent(
			protocol.ContentBlock{
				Type:      protocol.BlockToolResult,
				ToolUseID: "toolu_1",
				Content:   protocol.ToolResultText("file contents here"),
			},
		)},
	}

	got := EstimateRequest(messages, protocol.SystemPrompt{}, nil)

	want := Count("file contents here") + 5 + 3
	assert.Equal(t, want, got)
}

func TestEstimateRequest_ToolDeclarations(t *testing.T) {
	tools := []protocol.Tool{
		{
			Name:        "read_file",
			Description: "Reads a file from disk",
			InputSchema: map[string]any{"type": "object"},
		},
	}

	got := EstimateRequest(nil, protocol.SystemPrompt{}, tools)

	want := Count("read_file"+"Reads a file from disk"+`{"type":"object"}`) + 5
	assert.Equal(t, want, got)
}
