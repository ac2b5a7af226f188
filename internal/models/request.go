package models

import (
	"fmt"
	"strings"
)

// IngestRequest is the body of an ingestion submission.
type IngestRequest struct {
	DatasetID string `json:"dataset_id"`
	Source    string `json:"source"`
	Version   string `json:"version,omitempty"`
	Upsert    bool   `json:"upsert,omitempty"`
}

// Validate checks required fields. Dataset ids and version labels become
// path segments under the data and index roots, so they must not contain
// separators or dot-dot.
func (r *IngestRequest) Validate() error {
	if r.DatasetID == "" {
		return fmt.Errorf("dataset_id cannot be empty")
	}
	if err := validatePathSegment("dataset_id", r.DatasetID); err != nil {
		return err
	}
	if r.Version != "" {
		if err := validatePathSegment("version", r.Version); err != nil {
			return err
		}
	}
	if r.Source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	return nil
}

func validatePathSegment(field, value string) error {
	if value == "." || value == ".." ||
		strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return fmt.Errorf("%s contains path separators: %q", field, value)
	}
	return nil
}

// IngestResponse is returned by a successful submission. TaskID is the
// manifest entry id; processing continues in the background.
type IngestResponse struct {
	Message   string `json:"message"`
	DatasetID string `json:"dataset_id"`
	Version   string `json:"version"`
	TaskID    string `json:"task_id"`
}

// QueryRequest asks a built index for its top-k most similar chunks.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate ensures the query is non-empty and applies the default top_k.
func (r *QueryRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.TopK == 0 {
		r.TopK = 3
	}
	if r.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	return nil
}

// QueryResponse wraps the ranked results for a query.
type QueryResponse struct {
	Results []QueryResult `json:"results"`
}
