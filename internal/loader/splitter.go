package loader

import (
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// Splitter splits text into overlapping word-window chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter creates a splitter with the given window size and overlap, both
// in words. An overlap >= size degrades to a step of one word.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split returns the ordered chunks of text. Empty or whitespace-only text
// yields no chunks. Each chunk records its source and position.
func (s *Splitter) Split(text, source string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []models.Chunk
	for i := 0; i < len(words); i += step {
		end := i + s.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, models.Chunk{
			Text: strings.Join(words[i:end], " "),
			Metadata: map[string]interface{}{
				"source": source,
				"chunk":  len(chunks),
			},
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
