package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// FileLoader loads local files: extracts their text content and splits it
// with a word-window splitter. Handles bare paths and file:// URLs.
type FileLoader struct {
	extractor *Extractor
	splitter  *Splitter
}

// NewFileLoader creates a file loader with the given splitter.
func NewFileLoader(splitter *Splitter) *FileLoader {
	return &FileLoader{
		extractor: NewExtractor(),
		splitter:  splitter,
	}
}

// LoadAndSplit reads the file, extracts its text, and splits it into chunks.
// Each chunk carries {"source": path, "chunk": i} metadata. Unreadable files
// fail with an error wrapping ErrSourceUnavailable.
func (l *FileLoader) LoadAndSplit(_ context.Context, source string) ([]models.Chunk, error) {
	path := strings.TrimPrefix(source, "file://")
	text, err := l.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	return l.splitter.Split(text, path), nil
}
