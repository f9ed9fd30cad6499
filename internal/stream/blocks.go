// Package stream renders the client-facing streaming protocol: content
// blocks with a shared monotonically increasing index, lifecycle events per
// block, and a terminal usage accounting frame. The Translator drives it
// from decoded upstream chunks.
package stream

// blockManager tracks open content blocks. Thinking and text each have at
// most one open block; native tool calls are keyed by the upstream's
// tool-call index and stay open until the stream closes.
type blockManager struct {
	nextIndex       int
	thinkingIndex   int
	textIndex       int
	thinkingStarted bool
	textStarted     bool

	toolIndices  map[int]int
	toolContents map[int]string
	toolNames    map[int]string
	toolStarted  map[int]bool
}

func newBlockManager() *blockManager {
	return &blockManager{
		thinkingIndex: -1,
		textIndex:     -1,
		toolIndices:   make(map[int]int),
		toolContents:  make(map[int]string),
		toolNames:     make(map[int]string),
		toolStarted:   make(map[int]bool),
	}
}

// allocate hands out the next block index. Indices are shared across block
// kinds and never reused.
func (b *blockManager) allocate() int {
	idx := b.nextIndex
	b.nextIndex++

	return idx
}
