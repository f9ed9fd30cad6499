// Package classify short-circuits a handful of cheap auxiliary prompts that
// agent clients fire constantly: quota probes, title generation, suggestion
// mode, command-prefix policy checks and filepath extraction. Each gets a
// deterministic canned response instead of an upstream round trip.
package classify

import (
	"log/slog"
	"strings"

	"github.com/google/shlex"

	"github.com/findcloutintern/kimigate/internal/protocol"
)

// Options selects which interceptions are active.
type Options struct {
	FastPrefixDetection    bool
	SkipQuotaCheck         bool
	SkipTitleGeneration    bool
	SkipSuggestionMode     bool
	SkipFilepathExtraction bool
}

// Classifier inspects inbound requests and answers the recognized auxiliary
// prompts locally.
type Classifier struct {
	model  string
	opts   Options
	logger *slog.Logger
}

// NewClassifier builds a classifier answering in the given model's name.
func NewClassifier(model string, opts Options, logger *slog.Logger) *Classifier {
	return &Classifier{model: model, opts: opts, logger: logger}
}

// Intercept returns a canned response for a recognized auxiliary prompt,
// nil when the request should go upstream.
func (c *Classifier) Intercept(req *protocol.MessagesRequest) *protocol.MessagesResponse {
	if c.opts.FastPrefixDetection {
		if ok, command := isPrefixDetection(req); ok {
			return c.canned(extractPrefix(command), 100, 5)
		}
	}

	if c.opts.SkipQuotaCheck && isQuotaCheck(req) {
		c.logger.Info("skipped quota check")

		return c.canned("Quota check passed.", 10, 5)
	}

	if c.opts.SkipTitleGeneration && isTitleGeneration(req) {
		c.logger.Info("skipped title generation")

		return c.canned("Conversation", 100, 5)
	}

	if c.opts.SkipSuggestionMode && isSuggestionMode(req) {
		c.logger.Info("skipped suggestion mode")

		return c.canned("", 100, 1)
	}

	if c.opts.SkipFilepathExtraction {
		if ok, command, output := isFilepathExtraction(req); ok {
			c.logger.Info("mocked filepath extraction")

			return c.canned(extractFilepaths(command, output), 100, 10)
		}
	}

	return nil
}

func (c *Classifier) canned(text string, inputTokens, outputTokens int) *protocol.MessagesResponse {
	return &protocol.MessagesResponse{
		ID:         protocol.NewMessageID(),
		Type:       "message",
		Role:       protocol.RoleAssistant,
		Model:      c.model,
		Content:    []protocol.ContentBlock{protocol.TextBlock(text)},
		StopReason: "end_turn",
		Usage: protocol.Usage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		},
	}
}

// flatText concatenates the plain string or every text block of a message.
func flatText(msg protocol.Message) string {
	if msg.Content.IsText() {
		return msg.Content.Text()
	}

	var out strings.Builder
	for _, block := range msg.Content.Blocks() {
		out.WriteString(block.Text)
	}

	return out.String()
}

func isQuotaCheck(req *protocol.MessagesRequest) bool {
	if req.MaxTokens != 1 || len(req.Messages) != 1 {
		return false
	}

	msg := req.Messages[0]
	if msg.Role != protocol.RoleUser {
		return false
	}

	return strings.Contains(strings.ToLower(flatText(msg)), "quota")
}

func isTitleGeneration(req *protocol.MessagesRequest) bool {
	if len(req.Messages) == 0 {
		return false
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != protocol.RoleUser {
		return false
	}

	return strings.Contains(strings.ToLower(flatText(last)), "write a 5-10 word title")
}

func isSuggestionMode(req *protocol.MessagesRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role != protocol.RoleUser {
			continue
		}

		if strings.Contains(flatText(msg), "[SUGGESTION MODE:") {
			return true
		}
	}

	return false
}

// isPrefixDetection recognizes the command-prefix policy prompt: a single
// user message carrying a policy spec and a trailing "Command:" line.
func isPrefixDetection(req *protocol.MessagesRequest) (bool, string) {
	if len(req.Messages) != 1 || req.Messages[0].Role != protocol.RoleUser {
		return false, ""
	}

	content := flatText(req.Messages[0])
	if !strings.Contains(content, "<policy_spec>") || !strings.Contains(content, "Command:") {
		return false, ""
	}

	start := strings.LastIndex(content, "Command:") + len("Command:")

	return true, strings.TrimSpace(content[start:])
}

var twoWordCommands = map[string]bool{
	"git":     true,
	"npm":     true,
	"docker":  true,
	"kubectl": true,
	"cargo":   true,
	"go":      true,
	"pip":     true,
	"yarn":    true,
}

// extractPrefix reduces a shell command to its permission prefix: the
// command word, or the command plus subcommand for tools whose subcommand
// carries the meaning. Substitution syntax is refused outright.
func extractPrefix(command string) string {
	if strings.Contains(command, "`") || strings.Contains(command, "$(") {
		return "command_injection_detected"
	}

	parts, err := shlex.Split(command)
	if err != nil {
		if fields := strings.Fields(command); len(fields) > 0 {
			return fields[0]
		}

		return "none"
	}

	if len(parts) == 0 {
		return "none"
	}

	// Skip leading VAR=value assignments.
	start := 0

	for i, part := range parts {
		if strings.Contains(part, "=") && !strings.HasPrefix(part, "-") {
			start = i + 1
		} else {
			break
		}
	}

	if start >= len(parts) {
		return "none"
	}

	cmdParts := parts[start:]
	first := cmdParts[0]

	if twoWordCommands[first] && len(cmdParts) > 1 {
		if second := cmdParts[1]; !strings.HasPrefix(second, "-") {
			return first + " " + second
		}

		return first
	}

	return first
}

// isFilepathExtraction recognizes the "which filepaths did this command
// touch" prompt: a single tool-less user message with Command: and Output:
// sections.
func isFilepathExtraction(req *protocol.MessagesRequest) (bool, string, string) {
	if len(req.Messages) != 1 || req.Messages[0].Role != protocol.RoleUser || len(req.Tools) > 0 {
		return false, "", ""
	}

	content := flatText(req.Messages[0])

	if !strings.Contains(content, "Command:") || !strings.Contains(content, "Output:") {
		return false, "", ""
	}

	if !strings.Contains(strings.ToLower(content), "filepaths") {
		return false, "", ""
	}

	cmdStart := strings.Index(content, "Command:") + len("Command:")

	outputMarker := strings.Index(content[cmdStart:], "Output:")
	if outputMarker == -1 {
		return false, "", ""
	}

	outputMarker += cmdStart

	command := strings.TrimSpace(content[cmdStart:outputMarker])
	output := strings.TrimSpace(content[outputMarker+len("Output:"):])

	for _, marker := range []string{"<", "\n\n"} {
		if i := strings.Index(output, marker); i != -1 {
			output = strings.TrimSpace(output[:i])
		}
	}

	return true, command, output
}

var (
	listingCommands = map[string]bool{
		"ls": true, "dir": true, "find": true, "tree": true,
		"pwd": true, "cd": true, "mkdir": true, "rmdir": true, "rm": true,
	}
	readingCommands = map[string]bool{
		"cat": true, "head": true, "tail": true, "less": true,
		"more": true, "bat": true, "type": true,
	}
)

const emptyFilepaths = "<filepaths>\n</filepaths>"

// extractFilepaths answers the filepath prompt without a model call. Only
// file-reading commands yield paths; their non-flag arguments are the
// answer.
func extractFilepaths(command, output string) string {
	parts, err := shlex.Split(command)
	if err != nil || len(parts) == 0 {
		return emptyFilepaths
	}

	base := parts[0]
	if i := strings.LastIndex(base, "/"); i != -1 {
		base = base[i+1:]
	}

	if i := strings.LastIndex(base, "\\"); i != -1 {
		base = base[i+1:]
	}

	base = strings.ToLower(base)

	if listingCommands[base] {
		return emptyFilepaths
	}

	if readingCommands[base] {
		var paths []string

		for _, p := range parts[1:] {
			if !strings.HasPrefix(p, "-") {
				paths = append(paths, p)
			}
		}

		if len(paths) > 0 {
			return "<filepaths>\n" + strings.Join(paths, "\n") + "\n</filepaths>"
		}

		return emptyFilepaths
	}

	return emptyFilepaths
}
