package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(chunks []Chunk) (text, thinking string) {
	for _, c := range chunks {
		if c.Kind == Thinking {
			thinking += c.Content
		} else {
			text += c.Content
		}
	}

	return text, thinking
}

func TestThinkParser_SingleFeed(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantText     string
		wantThinking string
	}{
		{
			name:     "plain text",
			input:    "hello world",
			wantText: "hello world",
		},
		{
			name:         "complete think span",
			input:        "<think>reasoning</think>answer",
			wantText:     "answer",
			wantThinking: "reasoning",
		},
		{
			name:         "text before and after",
			input:        "pre<think>mid</think>post",
			wantText:     "prepost",
			wantThinking: "mid",
		},
		{
			name:         "multiple spans",
			input:        "<think>a</think>x<think>b</think>y",
			wantText:     "xy",
			wantThinking: "ab",
		},
		{
			name:         "orphan close tag is a zero-width boundary",
			input:        "before</think>after",
			wantText:     "beforeafter",
			wantThinking: "",
		},
		{
			name:     "empty think span",
			input:    "<think></think>text",
			wantText: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewThinkParser()

			chunks := p.Feed(tt.input)
			if final := p.Flush(); final != nil {
				chunks = append(chunks, *final)
			}

			text, thinking := collect(chunks)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantThinking, thinking)
		})
	}
}

func TestThinkParser_SplitTags(t *testing.T) {
	// The same stream must classify identically no matter where it is cut.
	input := "intro <think>deep thought</think> outro"

	for cut := 0; cut <= len(input); cut++ {
		p := NewThinkParser()

		chunks := p.Feed(input[:cut])
		chunks = append(chunks, p.Feed(input[cut:])...)

		if final := p.Flush(); final != nil {
			chunks = append(chunks, *final)
		}

		text, thinking := collect(chunks)
		require.Equal(t, "intro  outro", text, "cut at %d", cut)
		require.Equal(t, "deep thought", thinking, "cut at %d", cut)
	}
}

func TestThinkParser_PartialTagHeldBack(t *testing.T) {
	p := NewThinkParser()

	chunks := p.Feed("abc<thi")
	text, _ := collect(chunks)
	assert.Equal(t, "abc", text)

	chunks = p.Feed("nk>inside</think>")
	_, thinking := collect(chunks)
	assert.Equal(t, "inside", thinking)
}

func TestThinkParser_AngleBracketNotATag(t *testing.T) {
	p := NewThinkParser()

	var chunks []Chunk
	chunks = append(chunks, p.Feed("a < b and a <tag>")...)
	if final := p.Flush(); final != nil {
		chunks = append(chunks, *final)
	}

	text, thinking := collect(chunks)
	assert.Equal(t, "a < b and a <tag>", text)
	assert.Empty(t, thinking)
}

func TestThinkParser_FlushUnterminatedThink(t *testing.T) {
	p := NewThinkParser()

	p.Feed("<think>never closed")

	final := p.Flush()
	require.NotNil(t, final)
	assert.Equal(t, Thinking, final.Kind)

	// Nothing retained after flush.
	assert.Nil(t, p.Flush())
}

func TestExtractThink(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantThinking  string
		wantRemaining string
	}{
		{
			name:          "no span returns input untouched",
			input:         "  plain text  ",
			wantThinking:  "",
			wantRemaining: "  plain text  ",
		},
		{
			name:          "single span",
			input:         "<think>why</think>\n\nanswer",
			wantThinking:  "why",
			wantRemaining: "answer",
		},
		{
			name:          "multiple spans join with newline",
			input:         "<think>a</think>x<think>b</think>y",
			wantThinking:  "a\nb",
			wantRemaining: "xy",
		},
		{
			name:          "unterminated span is left in place",
			input:         "text <think>dangling",
			wantThinking:  "",
			wantRemaining: "text <think>dangling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thinking, remaining := ExtractThink(tt.input)
			assert.Equal(t, tt.wantThinking, thinking)
			assert.Equal(t, tt.wantRemaining, remaining)
		})
	}
}

func TestExtractThink_LargeInput(t *testing.T) {
	body := strings.Repeat("reasoning ", 1000)
	thinking, remaining := ExtractThink("<think>" + body + "</think>done")

	assert.Equal(t, body, thinking)
	assert.Equal(t, "done", remaining)
}
