// Package models defines core data structures for chunks, manifests, and API requests.
package models

// Chunk is a contiguous span of a source document plus associated metadata.
// It is the atomic unit of embedding and retrieval. Chunks are immutable once
// produced by a loader; their order determines index row order.
type Chunk struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// QueryResult is a single similarity hit against a vector index.
type QueryResult struct {
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
