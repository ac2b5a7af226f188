// Package vector provides an immutable in-memory vector index with
// brute-force cosine similarity search.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/models"
)

// ErrInvalidTopK is returned when a query asks for fewer than one result.
var ErrInvalidTopK = errors.New("top_k must be at least 1")

// Index holds an ordered collection of chunks with their embeddings and
// L2-normalized forms. An Index is immutable after Build and safe for
// concurrent queries. There is no incremental insert or delete; a new
// ingestion builds a new Index.
type Index struct {
	chunks     []models.Chunk
	embeddings [][]float32
	normalized [][]float32
	dimensions int
}

// Build embeds all chunks in one batch and constructs an index over them.
// Building from zero chunks is valid: the resulting index is empty and every
// query against it returns no results. The embedder must return one vector
// per input text, in input order, with a constant dimension.
func Build(ctx context.Context, chunks []models.Chunk, embedder embedding.Embedder) (*Index, error) {
	idx := &Index{
		chunks:     make([]models.Chunk, len(chunks)),
		embeddings: make([][]float32, 0, len(chunks)),
		normalized: make([][]float32, 0, len(chunks)),
	}
	copy(idx.chunks, chunks)
	if len(chunks) == 0 {
		return idx, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	idx.dimensions = len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != idx.dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(vec), idx.dimensions)
		}
		row := make([]float32, idx.dimensions)
		copy(row, vec)
		idx.embeddings = append(idx.embeddings, row)
		idx.normalized = append(idx.normalized, normalize(row))
	}
	return idx, nil
}

// Query embeds the query text and returns the min(topK, Size()) chunks most
// similar to it by cosine similarity, ranked descending. Ties break by
// ascending insertion index, so results are reproducible for a deterministic
// embedder. A zero-vector query embedding scores 0 against everything.
func (idx *Index) Query(ctx context.Context, text string, embedder embedding.Embedder, topK int) ([]models.QueryResult, error) {
	if topK < 1 {
		return nil, ErrInvalidTopK
	}
	if len(idx.chunks) == 0 {
		return []models.QueryResult{}, nil
	}

	vectors, err := embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	if len(vectors[0]) != idx.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vectors[0]), idx.dimensions)
	}
	query := normalize(vectors[0])

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(idx.normalized))
	for i, row := range idx.normalized {
		scores[i] = scored{pos: i, score: dot(query, row)}
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if topK > len(scores) {
		topK = len(scores)
	}
	results := make([]models.QueryResult, topK)
	for i := 0; i < topK; i++ {
		ch := idx.chunks[scores[i].pos]
		results[i] = models.QueryResult{
			Text:     ch.Text,
			Score:    scores[i].score,
			Metadata: ch.Metadata,
		}
	}
	return results, nil
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int {
	return len(idx.chunks)
}

// Dimensions returns the embedding dimension, or 0 for an empty index.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}
