package models

import "testing"

func TestDatasetManifest_FindEntry(t *testing.T) {
	m := &DatasetManifest{
		DatasetID: "docs",
		Versions: []ManifestEntry{
			{Version: "v1", ID: "a"},
			{Version: "v1", ID: "b"},
			{Version: "v2", ID: "c"},
		},
	}
	e := m.FindEntry("v1", "b")
	if e == nil || e.ID != "b" {
		t.Fatalf("FindEntry(v1, b) = %v", e)
	}
	if m.FindEntry("v1", "missing") != nil {
		t.Error("expected nil for unknown id")
	}
	if m.FindEntry("v3", "a") != nil {
		t.Error("expected nil for unknown version")
	}
}

func TestDatasetManifest_RemoveVersion(t *testing.T) {
	m := &DatasetManifest{
		Versions: []ManifestEntry{
			{Version: "v1", ID: "a"},
			{Version: "v2", ID: "b"},
			{Version: "v1", ID: "c"},
		},
	}
	m.RemoveVersion("v1")
	if len(m.Versions) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Versions))
	}
	if m.Versions[0].Version != "v2" {
		t.Errorf("kept wrong entry: %s", m.Versions[0].Version)
	}
	if m.HasVersion("v1") {
		t.Error("v1 should be gone")
	}
}

func TestQueryRequest_Validate(t *testing.T) {
	r := &QueryRequest{Query: "hello"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.TopK != 3 {
		t.Errorf("default top_k = %d, want 3", r.TopK)
	}
	r = &QueryRequest{Query: "hello", TopK: -1}
	if err := r.Validate(); err == nil {
		t.Error("expected error for negative top_k")
	}
	r = &QueryRequest{}
	if err := r.Validate(); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestIngestRequest_Validate(t *testing.T) {
	r := &IngestRequest{DatasetID: "docs", Source: "a.txt"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (&IngestRequest{Source: "a.txt"}).Validate(); err == nil {
		t.Error("expected error for missing dataset_id")
	}
	if err := (&IngestRequest{DatasetID: "docs"}).Validate(); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestIngestRequest_ValidateRejectsPathSegments(t *testing.T) {
	bad := []IngestRequest{
		{DatasetID: "../../etc", Source: "a.txt"},
		{DatasetID: "docs/nested", Source: "a.txt"},
		{DatasetID: `docs\nested`, Source: "a.txt"},
		{DatasetID: "..", Source: "a.txt"},
		{DatasetID: "docs", Version: "../v1", Source: "a.txt"},
		{DatasetID: "docs", Version: "v1/..", Source: "a.txt"},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("expected rejection for dataset=%q version=%q", r.DatasetID, r.Version)
		}
	}
	ok := IngestRequest{DatasetID: "docs-2024_q1", Version: "v20240101T000000", Source: "a.txt"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid identifiers rejected: %v", err)
	}
}
