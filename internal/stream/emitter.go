package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/findcloutintern/kimigate/internal/tokens"
)

// Emitter writes client-protocol SSE frames. Write failures are sticky: the
// first error is retained and every later emit becomes a no-op, so a client
// disconnect quietly drains the rest of the upstream stream.
type Emitter struct {
	w     io.Writer
	flush func()

	messageID   string
	model       string
	inputTokens int

	blocks *blockManager

	text      strings.Builder
	reasoning strings.Builder

	err error
}

// NewEmitter builds an emitter for one response stream. flush may be nil
// when the writer needs no explicit flushing.
func NewEmitter(w io.Writer, flush func(), messageID, model string, inputTokens int) *Emitter {
	return &Emitter{
		w:           w,
		flush:       flush,
		messageID:   messageID,
		model:       model,
		inputTokens: inputTokens,
		blocks:      newBlockManager(),
	}
}

// Err returns the first write error, nil while the client is still reading.
func (e *Emitter) Err() error { return e.err }

func (e *Emitter) write(frame string) {
	if e.err != nil {
		return
	}

	if _, err := io.WriteString(e.w, frame); err != nil {
		e.err = err

		return
	}

	if e.flush != nil {
		e.flush()
	}
}

func (e *Emitter) event(name string, data map[string]any) {
	payload, err := json.Marshal(data)
	if err != nil {
		if e.err == nil {
			e.err = err
		}

		return
	}

	e.write(fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload))
}

// MessageStart opens the message envelope. output_tokens starts at 1; the
// real count arrives in the terminal message_delta.
func (e *Emitter) MessageStart() {
	e.event("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            e.messageID,
			"type":          "message",
			"role":          "assistant",
			"content":       []any{},
			"model":         e.model,
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]any{
				"input_tokens":  e.inputTokens,
				"output_tokens": 1,
			},
		},
	})
}

// MessageDelta carries the stop reason and the final output-token count.
func (e *Emitter) MessageDelta(stopReason string, outputTokens int) {
	e.event("message_delta", map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nil,
		},
		"usage": map[string]any{"output_tokens": outputTokens},
	})
}

// MessageStop closes the message envelope.
func (e *Emitter) MessageStop() {
	e.event("message_stop", map[string]any{"type": "message_stop"})
}

// Done writes the raw stream terminator.
func (e *Emitter) Done() {
	e.write("[DONE]\n\n")
}

func (e *Emitter) blockStart(index int, block map[string]any) {
	e.event("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         index,
		"content_block": block,
	})
}

func (e *Emitter) blockDelta(index int, delta map[string]any) {
	e.event("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": index,
		"delta": delta,
	})
}

func (e *Emitter) blockStop(index int) {
	e.event("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": index,
	})
}

func (e *Emitter) startThinking() {
	e.blocks.thinkingIndex = e.blocks.allocate()
	e.blocks.thinkingStarted = true
	e.blockStart(e.blocks.thinkingIndex, map[string]any{"type": "thinking", "thinking": ""})
}

// EmitThinking appends a thinking delta to the open thinking block.
func (e *Emitter) EmitThinking(content string) {
	e.reasoning.WriteString(content)
	e.blockDelta(e.blocks.thinkingIndex, map[string]any{"type": "thinking_delta", "thinking": content})
}

func (e *Emitter) stopThinking() {
	e.blocks.thinkingStarted = false
	e.blockStop(e.blocks.thinkingIndex)
}

func (e *Emitter) startText() {
	e.blocks.textIndex = e.blocks.allocate()
	e.blocks.textStarted = true
	e.blockStart(e.blocks.textIndex, map[string]any{"type": "text", "text": ""})
}

// EmitText appends a text delta to the open text block.
func (e *Emitter) EmitText(content string) {
	e.text.WriteString(content)
	e.blockDelta(e.blocks.textIndex, map[string]any{"type": "text_delta", "text": content})
}

func (e *Emitter) stopText() {
	e.blocks.textStarted = false
	e.blockStop(e.blocks.textIndex)
}

// StartTool opens a tool_use block for a native tool call, keyed by the
// upstream's tool-call index.
func (e *Emitter) StartTool(toolIndex int, toolID, name string) {
	blockIdx := e.blocks.allocate()
	e.blocks.toolIndices[toolIndex] = blockIdx
	e.blocks.toolContents[toolIndex] = ""
	e.blockStart(blockIdx, map[string]any{
		"type":  "tool_use",
		"id":    toolID,
		"name":  name,
		"input": map[string]any{},
	})
}

// EmitTool streams a fragment of the tool's JSON arguments.
func (e *Emitter) EmitTool(toolIndex int, partialJSON string) {
	e.blocks.toolContents[toolIndex] += partialJSON
	e.blockDelta(e.blocks.toolIndices[toolIndex], map[string]any{
		"type":         "input_json_delta",
		"partial_json": partialJSON,
	})
}

// EnsureThinking switches the stream into a thinking block, closing an open
// text block first.
func (e *Emitter) EnsureThinking() {
	if e.blocks.textStarted {
		e.stopText()
	}

	if !e.blocks.thinkingStarted {
		e.startThinking()
	}
}

// EnsureText switches the stream into a text block, closing an open
// thinking block first.
func (e *Emitter) EnsureText() {
	if e.blocks.thinkingStarted {
		e.stopThinking()
	}

	if !e.blocks.textStarted {
		e.startText()
	}
}

// CloseContent closes any open thinking or text block. Tool blocks stay
// open until CloseAll.
func (e *Emitter) CloseContent() {
	if e.blocks.thinkingStarted {
		e.stopThinking()
	}

	if e.blocks.textStarted {
		e.stopText()
	}
}

// CloseAll closes every block still open, tool blocks included. Tool blocks
// stop in ascending block-index order.
func (e *Emitter) CloseAll() {
	e.CloseContent()

	indices := make([]int, 0, len(e.blocks.toolIndices))
	for _, blockIdx := range e.blocks.toolIndices {
		indices = append(indices, blockIdx)
	}

	sort.Ints(indices)

	for _, blockIdx := range indices {
		e.blockStop(blockIdx)
	}
}

// EmitTextBlock writes a complete, self-contained text block at a fresh
// index. Used for rate-limit notices and in-stream error reports.
func (e *Emitter) EmitTextBlock(message string) {
	idx := e.blocks.allocate()
	e.blockStart(idx, map[string]any{"type": "text", "text": ""})
	e.blockDelta(idx, map[string]any{"type": "text_delta", "text": message})
	e.blockStop(idx)
}

// EmitDetectedTool writes a complete tool_use block for a call recovered
// from inline markup. The block does not join the native tool index map, so
// it closes immediately and does not count toward the empty-stream check.
func (e *Emitter) EmitDetectedTool(toolID, name, inputJSON string) {
	idx := e.blocks.allocate()
	e.blockStart(idx, map[string]any{
		"type":  "tool_use",
		"id":    toolID,
		"name":  name,
		"input": map[string]any{},
	})
	e.blockDelta(idx, map[string]any{"type": "input_json_delta", "partial_json": inputJSON})
	e.blockStop(idx)
}

// EstimateOutputTokens approximates output tokens from everything emitted,
// used when the upstream sends no usage chunk.
func (e *Emitter) EstimateOutputTokens() int {
	total := tokens.Count(e.text.String()) + tokens.Count(e.reasoning.String())

	for toolIndex, content := range e.blocks.toolContents {
		total += tokens.Count(e.blocks.toolNames[toolIndex]) + tokens.Count(content) + 10
	}

	return total
}
