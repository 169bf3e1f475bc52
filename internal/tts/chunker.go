package tts

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"github.com/voxfree/voxfree/internal/ttypes"
)

// sentenceEnds are the punctuation marks that close a sentence.
var sentenceEnds = []rune{'.', '!', '?'}

// Chunk splits text into ordered pieces of at most maxSize characters.
//
// Cuts prefer the last sentence end inside the window, then the last
// whitespace, and finally a hard cut at maxSize for a single token longer
// than the window. Every piece is trimmed. Empty or whitespace-only input
// yields no chunks. Lengths are counted in runes.
func Chunk(text string, maxSize int) ([]ttypes.TextChunk, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	remaining := []rune(strings.TrimSpace(text))
	chunks := make([]ttypes.TextChunk, 0, len(remaining)/maxSize+1)

	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = appendChunk(chunks, remaining, maxSize)
			break
		}

		cut := findCut(remaining, maxSize)
		chunks = appendChunk(chunks, remaining[:cut], maxSize)
		remaining = trimLeftRunes(remaining[cut:])
	}

	return chunks, nil
}

// ChunkStrings is Chunk returning only the chunk contents.
func ChunkStrings(text string, maxSize int) ([]string, error) {
	chunks, err := Chunk(text, maxSize)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out, nil
}

// findCut returns the rune offset at which the first piece of text ends.
// text is longer than maxSize and starts with a non-space rune.
func findCut(text []rune, maxSize int) int {
	if i := lastSentenceEnd(text, maxSize); i >= 0 {
		return i + 1
	}
	if i := lastSpace(text, maxSize); i > 0 {
		return i
	}
	return hardCut(text, maxSize)
}

// lastSentenceEnd finds the last sentence-closing punctuation that fits in
// the window and is followed by whitespace.
func lastSentenceEnd(text []rune, maxSize int) int {
	for i := maxSize - 1; i >= 0; i-- {
		if !isSentenceEnd(text[i]) {
			continue
		}
		if i+1 < len(text) && unicode.IsSpace(text[i+1]) {
			return i
		}
	}
	return -1
}

// lastSpace finds the last whitespace at or before the window edge.
func lastSpace(text []rune, maxSize int) int {
	for i := maxSize; i > 0; i-- {
		if unicode.IsSpace(text[i]) {
			return i
		}
	}
	return -1
}

// hardCut cuts at maxSize, moving back to the previous grapheme cluster
// boundary so combined characters and emoji sequences stay intact.
func hardCut(text []rune, maxSize int) int {
	window := string(text[:maxSize+1])
	g := uniseg.NewGraphemes(window)

	cut, pos := 0, 0
	for g.Next() {
		next := pos + len(g.Runes())
		if next > maxSize {
			break
		}
		pos = next
		cut = pos
	}

	// a single cluster wider than the window
	if cut == 0 {
		return maxSize
	}
	return cut
}

func isSentenceEnd(r rune) bool {
	for _, end := range sentenceEnds {
		if r == end {
			return true
		}
	}
	return false
}

func appendChunk(chunks []ttypes.TextChunk, piece []rune, maxSize int) []ttypes.TextChunk {
	content := strings.TrimSpace(string(piece))
	if content == "" {
		return chunks
	}
	return append(chunks, ttypes.TextChunk{
		Index:     len(chunks),
		Content:   content,
		SizeBound: maxSize,
	})
}

func trimLeftRunes(r []rune) []rune {
	for len(r) > 0 && unicode.IsSpace(r[0]) {
		r = r[1:]
	}
	return r
}
