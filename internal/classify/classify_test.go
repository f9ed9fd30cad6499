package classify

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findcloutintern/kimigate/internal/protocol"
)

func allOn() Options {
	return Options{
		FastPrefixDetection:    true,
		SkipQuotaCheck:         true,
		SkipTitleGeneration:    true,
		SkipSuggestionMode:     true,
		SkipFilepathExtraction: true,
	}
}

func newTestClassifier(opts Options) *Classifier {
	return NewClassifier("moonshotai/kimi-k2.5", opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func userText(text string) protocol.Message {
	return protocol.Message{Role: protocol.RoleUser, Content: protocol.TextContent(text)}
}

func TestIntercept_QuotaCheck(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 1,
		Messages:  []protocol.Message{userText("checking quota for you")},
	})

	require.NotNil(t, resp)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "Quota check passed.", resp.Content[0].Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestIntercept_QuotaCheckRequiresMaxTokensOne(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 100,
		Messages:  []protocol.Message{userText("what is my quota")},
	})
	assert.Nil(t, resp)
}

func TestIntercept_TitleGeneration(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 512,
		Messages: []protocol.Message{
			userText("Please write a 5-10 word title for this conversation"),
		},
	})

	require.NotNil(t, resp)
	assert.Equal(t, "Conversation", resp.Content[0].Text)
	assert.Equal(t, 100, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestIntercept_SuggestionMode(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 512,
		Messages:  []protocol.Message{userText("[SUGGESTION MODE: on] something")},
	})

	require.NotNil(t, resp)
	assert.Equal(t, "", resp.Content[0].Text)
	assert.Equal(t, 1, resp.Usage.OutputTokens)
}

func TestIntercept_PrefixDetection(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 512,
		Messages: []protocol.Message{
			userText("<policy_spec>rules here</policy_spec>\n\nCommand: git push origin main"),
		},
	})

	require.NotNil(t, resp)
	assert.Equal(t, "git push", resp.Content[0].Text)
	assert.Equal(t, 100, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestIntercept_Disabled(t *testing.T) {
	c := newTestClassifier(Options{})

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 1,
		Messages:  []protocol.Message{userText("quota")},
	})
	assert.Nil(t, resp)
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"simple command", "ls -la", "ls"},
		{"two word tool", "git commit -m msg", "git commit"},
		{"two word tool with flag subcommand", "git --version", "git"},
		{"npm subcommand", "npm install lodash", "npm install"},
		{"env assignment skipped", "FOO=bar make build", "make"},
		{"only assignments", "FOO=bar", "none"},
		{"empty command", "", "none"},
		{"backtick injection", "echo `whoami`", "command_injection_detected"},
		{"subshell injection", "echo $(whoami)", "command_injection_detected"},
		{"unbalanced quote falls back to first word", `echo "unterminated`, "echo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPrefix(tt.command))
		})
	}
}

func TestIntercept_FilepathExtraction(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 512,
		Messages: []protocol.Message{
			userText("Extract the filepaths used.\nCommand: cat /etc/hosts /tmp/x.txt\nOutput: some file contents"),
		},
	})

	require.NotNil(t, resp)
	assert.Equal(t, "<filepaths>\n/etc/hosts\n/tmp/x.txt\n</filepaths>", resp.Content[0].Text)
	assert.Equal(t, 10, resp.Usage.OutputTokens)
}

func TestIntercept_FilepathExtractionNeedsNoTools(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 512,
		Messages: []protocol.Message{
			userText("Extract the filepaths used.\nCommand: cat /etc/hosts\nOutput: x"),
		},
		Tools: []protocol.Tool{{Name: "Read"}},
	})
	assert.Nil(t, resp)
}

func TestExtractFilepaths(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"listing command yields none", "ls -la /tmp", emptyFilepaths},
		{"reading command yields paths", "cat a.txt b.txt", "<filepaths>\na.txt\nb.txt\n</filepaths>"},
		{"flags skipped", "head -n5 notes.md", "<filepaths>\nnotes.md\n</filepaths>"},
		{"full path binary", "/usr/bin/cat x", "<filepaths>\nx\n</filepaths>"},
		{"unknown command yields none", "grep foo bar.txt", emptyFilepaths},
		{"reading with no args", "cat", emptyFilepaths},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractFilepaths(tt.command, ""))
		})
	}
}

func TestIntercept_BlockContentAlsoMatches(t *testing.T) {
	c := newTestClassifier(allOn())

	resp := c.Intercept(&protocol.MessagesRequest{
		MaxTokens: 1,
		Messages: []protocol.Message{{
			Role: protocol.RoleUser,
			Content: protocol.BlockContent(
				protocol.TextBlock("please check the QUOTA now"),
			),
		}},
	})
	require.NotNil(t, resp)
	assert.Equal(t, "Quota check passed.", resp.Content[0].Text)
}
