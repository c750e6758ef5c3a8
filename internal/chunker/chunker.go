// Package chunker splits text into overlapping fixed-size character windows
// for embedding and vector indexing.
package chunker

import "strings"

// Default window parameters, tuned for short KB rows and log excerpts.
const (
	DefaultMaxChars = 1400
	DefaultOverlap  = 200
)

// Split cuts text into windows of at most maxChars characters, starting at
// offsets 0, step, 2*step, ... where step = max(1, maxChars-overlap).
// Each window is trimmed of surrounding whitespace; empty windows are
// dropped. Empty or whitespace-only input yields no chunks. The returned
// slice preserves document order.
func Split(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	step := maxChars - overlap
	if step < 1 {
		step = 1
	}

	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
