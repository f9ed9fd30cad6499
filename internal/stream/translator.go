package stream

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/findcloutintern/kimigate/internal/convert"
	"github.com/findcloutintern/kimigate/internal/parse"
	"github.com/findcloutintern/kimigate/internal/upstream"
)

// RateLimitNotice is surfaced as the first content block when admission was
// delayed by an upstream-imposed cool-down.
const RateLimitNotice = "⏱️ rate limit active, resuming now..."

// Translator converts decoded upstream chunks into client-protocol events.
// One Translator serves one request; feed every chunk in arrival order, then
// call Finish exactly once.
type Translator struct {
	emitter *Emitter
	logger  *slog.Logger

	think *parse.ThinkParser
	tools *parse.ToolParser

	finishReason string
	usage        *upstream.ChatUsage
	errored      bool
}

// NewTranslator builds a translator over the given emitter.
func NewTranslator(emitter *Emitter, logger *slog.Logger) *Translator {
	return &Translator{
		emitter: emitter,
		logger:  logger,
		think:   parse.NewThinkParser(),
		tools:   parse.NewToolParser(),
	}
}

// Start opens the message. When admission was delayed, a notice block
// follows message_start so the client sees why the stream stalled.
func (t *Translator) Start(forcedWait bool) {
	t.emitter.MessageStart()

	if forcedWait {
		t.emitter.EmitTextBlock(RateLimitNotice)
	}
}

// Feed translates one upstream chunk.
func (t *Translator) Feed(chunk *upstream.StreamChunk) {
	if chunk.Usage != nil {
		t.usage = chunk.Usage
	}

	if len(chunk.Choices) == 0 {
		return
	}

	choice := chunk.Choices[0]

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		t.finishReason = *choice.FinishReason
	}

	if choice.Delta.ReasoningContent != "" {
		t.emitter.EnsureThinking()
		t.emitter.EmitThinking(choice.Delta.ReasoningContent)
	}

	if choice.Delta.Content != "" {
		for _, part := range t.think.Feed(choice.Delta.Content) {
			t.feedPart(part)
		}
	}

	if len(choice.Delta.ToolCalls) > 0 {
		t.emitter.CloseContent()

		for _, tc := range choice.Delta.ToolCalls {
			t.processToolCall(tc)
		}
	}
}

func (t *Translator) feedPart(part parse.Chunk) {
	if part.Kind == parse.Thinking {
		t.emitter.EnsureThinking()
		t.emitter.EmitThinking(part.Content)

		return
	}

	filtered, detected := t.tools.Feed(part.Content)

	if filtered != "" {
		t.emitter.EnsureText()
		t.emitter.EmitText(filtered)
	}

	for _, call := range detected {
		t.emitDetected(call)
	}
}

func (t *Translator) emitDetected(call parse.ToolCall) {
	t.emitter.CloseContent()
	t.emitter.EmitDetectedTool(call.ID, call.Name, marshalInput(call.Input))
}

// processToolCall merges one native tool-call fragment. Names may stream
// across fragments; the block opens as soon as a name or id plus usable
// content is available, falling back to a placeholder name when arguments
// arrive before any name.
func (t *Translator) processToolCall(tc upstream.ToolCallDelta) {
	blocks := t.emitter.blocks

	tcIndex := len(blocks.toolIndices)
	if tc.Index != nil {
		tcIndex = *tc.Index
	}

	if tc.Function.Name != nil {
		blocks.toolNames[tcIndex] += *tc.Function.Name
	}

	if !blocks.toolStarted[tcIndex] && (blocks.toolNames[tcIndex] != "" || tc.ID != "") {
		t.emitter.StartTool(tcIndex, orNewToolID(tc.ID), blocks.toolNames[tcIndex])
		blocks.toolStarted[tcIndex] = true
	}

	if tc.Function.Arguments != "" {
		if !blocks.toolStarted[tcIndex] {
			name := blocks.toolNames[tcIndex]
			if name == "" {
				name = "tool_call"
			}

			t.emitter.StartTool(tcIndex, orNewToolID(tc.ID), name)
			blocks.toolStarted[tcIndex] = true
		}

		t.emitter.EmitTool(tcIndex, tc.Function.Arguments)
	}
}

// Fail reports an upstream failure inside the stream. The message envelope
// is already open, so the error surfaces as a text block and the stream
// still terminates normally.
func (t *Translator) Fail(err error) {
	t.logger.Error("stream error", "error", err)
	t.errored = true
	t.emitter.CloseContent()
	t.emitter.EmitTextBlock(err.Error())
}

// Finish flushes the parsers, guarantees at least one content block, closes
// everything and writes the terminal accounting frames.
func (t *Translator) Finish() {
	if remaining := t.think.Flush(); remaining != nil {
		if remaining.Kind == parse.Thinking {
			t.emitter.EnsureThinking()
			t.emitter.EmitThinking(remaining.Content)
		} else {
			t.emitter.EnsureText()
			t.emitter.EmitText(remaining.Content)
		}
	}

	for _, call := range t.tools.Flush() {
		t.emitDetected(call)
	}

	// Some clients drop a message with no content blocks at all.
	if !t.errored && t.emitter.blocks.textIndex == -1 && len(t.emitter.blocks.toolIndices) == 0 {
		t.emitter.EnsureText()
		t.emitter.EmitText(" ")
	}

	t.emitter.CloseAll()

	outputTokens := t.emitter.EstimateOutputTokens()
	if t.usage != nil {
		outputTokens = t.usage.CompletionTokens
	}

	t.emitter.MessageDelta(convert.MapStopReason(t.finishReason), outputTokens)
	t.emitter.MessageStop()
	t.emitter.Done()
}

func marshalInput(input map[string]string) string {
	data, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}

	return string(data)
}

func orNewToolID(id string) string {
	if id != "" {
		return id
	}

	return "tool_" + uuid.NewString()
}
