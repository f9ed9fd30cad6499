package parse

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// The model sometimes emits tool invocations inline in visible text instead
// of using native function calling:
//
//	● <function=Read><parameter=file_path>/tmp/a.txt</parameter>
//
// ToolParser strips that markup out of the text flow and recovers the calls.
const (
	toolMarker    = "●"
	functionOpen  = "<function="
	parameterOpen = "<parameter="
	parameterEnd  = "</parameter>"

	// How far past a marker we look for a well-formed function tag before
	// deciding the marker was ordinary prose.
	functionProbeLimit = 100
)

type toolState int

const (
	stateText toolState = iota
	stateMatchingFunction
	stateParsingParameters
)

// ToolCall is one recovered inline tool invocation.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]string
}

// ToolParser incrementally extracts inline tool-call markup from visible
// text. Feed returns the text with markup removed plus any calls completed
// by the new input.
type ToolParser struct {
	state  toolState
	buf    string
	toolID string
	name   string
	params map[string]string
}

// NewToolParser returns a parser in the TEXT state.
func NewToolParser() *ToolParser {
	return &ToolParser{params: make(map[string]string)}
}

// Feed consumes a fragment of visible text.
func (p *ToolParser) Feed(text string) (string, []ToolCall) {
	p.buf += text

	var (
		filtered strings.Builder
		detected []ToolCall
	)

	for {
		if p.state == stateText {
			idx := strings.Index(p.buf, toolMarker)
			if idx == -1 {
				filtered.WriteString(p.buf)
				p.buf = ""

				break
			}

			filtered.WriteString(p.buf[:idx])
			p.buf = p.buf[idx:]
			p.state = stateMatchingFunction
		}

		if p.state == stateMatchingFunction {
			name, end, ok := matchFunction(p.buf)
			if ok {
				p.name = name
				p.toolID = newToolID()
				p.params = make(map[string]string)
				p.buf = p.buf[end:]
				p.state = stateParsingParameters
			} else if len(p.buf) > functionProbeLimit {
				// No function tag materialized; the marker was prose.
				// Release one rune and rescan.
				_, size := utf8.DecodeRuneInString(p.buf)
				filtered.WriteString(p.buf[:size])
				p.buf = p.buf[size:]
				p.state = stateText

				continue
			} else {
				break
			}
		}

		if p.state == stateParsingParameters {
			p.consumeParameters(&filtered)

			finished := false

			if idx := strings.Index(p.buf, toolMarker); idx != -1 {
				if idx > 0 {
					filtered.WriteString(p.buf[:idx])
					p.buf = p.buf[idx:]
				}

				finished = true
			} else if len(p.buf) > 0 && !strings.HasPrefix(strings.TrimLeft(p.buf, " \t\r\n"), "<") {
				if !strings.Contains(p.buf, parameterOpen) {
					filtered.WriteString(p.buf)
					p.buf = ""
					finished = true
				}
			}

			if !finished {
				break
			}

			detected = append(detected, p.take())
			p.state = stateText
		}
	}

	return filtered.String(), detected
}

// consumeParameters records every complete parameter pair at the front of
// the buffer. Unmatched text before a pair is forwarded as filtered output;
// normally there is none.
func (p *ToolParser) consumeParameters(filtered *strings.Builder) {
	for {
		i := strings.Index(p.buf, parameterOpen)
		if i == -1 {
			return
		}

		rest := p.buf[i+len(parameterOpen):]

		j := strings.IndexByte(rest, '>')
		if j <= 0 {
			return
		}

		value := rest[j+1:]

		k := strings.Index(value, parameterEnd)
		if k == -1 {
			return
		}

		if pre := p.buf[:i]; pre != "" {
			filtered.WriteString(pre)
		}

		p.params[strings.TrimSpace(rest[:j])] = strings.TrimSpace(value[:k])
		p.buf = value[k+len(parameterEnd):]
	}
}

// Flush completes any call still being parsed at stream end. A dangling
// unterminated parameter keeps its partial value.
func (p *ToolParser) Flush() []ToolCall {
	if p.state != stateParsingParameters {
		return nil
	}

	if i := strings.Index(p.buf, parameterOpen); i != -1 {
		rest := p.buf[i+len(parameterOpen):]
		if j := strings.IndexByte(rest, '>'); j > 0 {
			p.params[strings.TrimSpace(rest[:j])] = strings.TrimSpace(rest[j+1:])
		}
	}

	call := p.take()
	p.state = stateText
	p.buf = ""

	return []ToolCall{call}
}

func (p *ToolParser) take() ToolCall {
	return ToolCall{ID: p.toolID, Name: p.name, Input: p.params}
}

// matchFunction looks for a marker immediately followed (modulo whitespace)
// by a complete <function=Name> tag anywhere in buf. It returns the function
// name and the offset just past the tag. Text before a successful match is
// markup noise and is dropped with it.
func matchFunction(buf string) (name string, end int, ok bool) {
	for idx := 0; ; {
		rel := strings.Index(buf[idx:], toolMarker)
		if rel == -1 {
			return "", 0, false
		}

		at := idx + rel
		if n, e, matched := matchFunctionAt(buf, at); matched {
			return n, e, true
		}

		idx = at + len(toolMarker)
	}
}

func matchFunctionAt(buf string, at int) (string, int, bool) {
	i := at + len(toolMarker)
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t' || buf[i] == '\r' || buf[i] == '\n') {
		i++
	}

	if !strings.HasPrefix(buf[i:], functionOpen) {
		return "", 0, false
	}

	i += len(functionOpen)

	j := strings.IndexByte(buf[i:], '>')
	if j <= 0 {
		return "", 0, false
	}

	return strings.TrimSpace(buf[i : i+j]), i + j + 1, true
}

func newToolID() string {
	u := uuid.New()

	return "toolu_" + hex.EncodeToString(u[:4])
}
