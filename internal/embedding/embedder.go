// Package embedding provides text embedding behind a small interface, with an
// ONNX-backed implementation and a deterministic mock.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return
// one vector per input text, in input order, with a fixed dimension for the
// lifetime of the embedder, and must be deterministic for identical input
// within a process lifetime.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
