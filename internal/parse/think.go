// Package parse contains the incremental parsers that recover structure from
// the upstream's flat text stream: <think> reasoning spans and inline
// function-call markup. Both are explicit state machines over a bounded
// look-back buffer; neither ever retains more than a partial tag, so memory
// stays constant no matter how the upstream fragments delivery.
package parse

import "strings"

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// ChunkKind classifies ThinkParser output.
type ChunkKind int

const (
	// Text is visible assistant text.
	Text ChunkKind = iota
	// Thinking is reasoning text delimited by think tags.
	Thinking
)

// Chunk is one classified span of streamed content.
type Chunk struct {
	Kind    ChunkKind
	Content string
}

// ThinkParser splits a streamed text flow into text and thinking spans. Tags
// may arrive split across any number of Feed calls; a tag never leaks into
// the emitted content.
type ThinkParser struct {
	buf     string
	inThink bool
}

// NewThinkParser returns a parser in the OUTSIDE state.
func NewThinkParser() *ThinkParser {
	return &ThinkParser{}
}

// Feed appends content and returns every span that can be classified without
// more input. The retained tail is at most one byte short of a full tag.
func (p *ThinkParser) Feed(content string) []Chunk {
	p.buf += content

	var out []Chunk

	for p.buf != "" {
		var c *Chunk
		if p.inThink {
			c = p.parseInside()
		} else {
			c = p.parseOutside()
		}

		if c == nil {
			break
		}

		out = append(out, *c)
	}

	return out
}

func (p *ThinkParser) parseOutside() *Chunk {
	start := strings.Index(p.buf, thinkOpenTag)
	orphan := strings.Index(p.buf, thinkCloseTag)

	// An unmatched close tag before any open tag is a zero-width boundary:
	// emit what precedes it, drop the tag itself.
	if orphan != -1 && (start == -1 || orphan < start) {
		pre := p.buf[:orphan]
		p.buf = p.buf[orphan+len(thinkCloseTag):]

		if pre != "" {
			return &Chunk{Kind: Text, Content: pre}
		}

		return p.parseOutside()
	}

	if start == -1 {
		if last := strings.LastIndex(p.buf, "<"); last != -1 {
			tail := p.buf[last:]
			if len(tail) < len(thinkOpenTag) && strings.HasPrefix(thinkOpenTag, tail) {
				emit := p.buf[:last]
				p.buf = p.buf[last:]

				if emit != "" {
					return &Chunk{Kind: Text, Content: emit}
				}

				return nil
			}
		}

		emit := p.buf
		p.buf = ""

		if emit != "" {
			return &Chunk{Kind: Text, Content: emit}
		}

		return nil
	}

	pre := p.buf[:start]
	p.buf = p.buf[start+len(thinkOpenTag):]
	p.inThink = true

	if pre != "" {
		return &Chunk{Kind: Text, Content: pre}
	}

	return p.parseInside()
}

func (p *ThinkParser) parseInside() *Chunk {
	end := strings.Index(p.buf, thinkCloseTag)

	if end == -1 {
		if last := strings.LastIndex(p.buf, "<"); last != -1 && len(p.buf)-last < len(thinkCloseTag) {
			tail := p.buf[last:]
			if strings.HasPrefix(thinkCloseTag, tail) {
				emit := p.buf[:last]
				p.buf = p.buf[last:]

				if emit != "" {
					return &Chunk{Kind: Thinking, Content: emit}
				}

				return nil
			}
		}

		emit := p.buf
		p.buf = ""

		if emit != "" {
			return &Chunk{Kind: Thinking, Content: emit}
		}

		return nil
	}

	thinking := p.buf[:end]
	p.buf = p.buf[end+len(thinkCloseTag):]
	p.inThink = false

	if thinking != "" {
		return &Chunk{Kind: Thinking, Content: thinking}
	}

	return p.parseOutside()
}

// Flush drains the retained buffer at stream end. An unterminated think span
// is emitted as thinking to end of stream.
func (p *ThinkParser) Flush() *Chunk {
	if p.buf == "" {
		return nil
	}

	kind := Text
	if p.inThink {
		kind = Thinking
	}

	content := p.buf
	p.buf = ""

	return &Chunk{Kind: kind, Content: content}
}

// ExtractThink pulls every complete <think>...</think> span out of a whole
// string. Spans concatenate with a newline separator; the remainder is the
// input with the spans removed, trimmed. When no complete span exists the
// input is returned untouched.
func ExtractThink(text string) (thinking, remaining string) {
	var (
		spans []string
		rest  strings.Builder
	)

	work := text

	for {
		i := strings.Index(work, thinkOpenTag)
		if i == -1 {
			break
		}

		j := strings.Index(work[i+len(thinkOpenTag):], thinkCloseTag)
		if j == -1 {
			break
		}

		rest.WriteString(work[:i])
		spans = append(spans, work[i+len(thinkOpenTag):i+len(thinkOpenTag)+j])
		work = work[i+len(thinkOpenTag)+j+len(thinkCloseTag):]
	}

	if len(spans) == 0 {
		return "", text
	}

	rest.WriteString(work)

	return strings.Join(spans, "\n"), strings.TrimSpace(rest.String())
}
