// Package chunker splits raw text into overlapping fixed-size windows for
// indexing. Chunking is purely positional: the window advances by
// size-overlap characters, so consecutive chunks from the same source share
// their trailing/leading overlap region.
package chunker

import (
	"fmt"
	"strings"
)

type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters once so every later Chunk call is
// infallible. Overlap must be strictly smaller than the chunk size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into windows of at most c.size characters. Each window
// after the first starts overlap characters before the end of its
// predecessor; the final window may be shorter. Empty input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}

	chunks := make([]string, 0, (len(text)+c.size-1)/c.size)
	start := 0
	for start < len(text) {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(text) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}
