// Package integration provides end-to-end tests over the full HTTP pipeline.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/catalog"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/loader"
	"github.com/hyperjump/shirabe/internal/manifest"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/server"
)

type testStack struct {
	svc *manifest.Service
	srv *httptest.Server
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Backend:  "fs",
			DataDir:  filepath.Join(dir, "data"),
			IndexDir: filepath.Join(dir, "indexes"),
		},
		Embedding: config.EmbeddingConfig{Dimensions: 16},
		Ingest:    config.IngestConfig{ChunkSize: 5, ChunkOverlap: 0, MaxConcurrent: 2},
	}

	store := manifest.NewFSStore(cfg.Storage.DataDir)
	embedder := embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	cat := catalog.New()

	registry := loader.NewRegistry()
	registry.Register("file", loader.NewFileLoader(loader.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)))
	registry.RegisterUnsupported("s3", "s3 sources are not supported")

	svc := manifest.NewService(store, registry, embedder, cat, manifest.ServiceConfig{
		IndexRoot:     cfg.Storage.IndexDir,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
	}, zap.NewNop())

	srv := httptest.NewServer(server.NewServer(svc, cat, embedder, cfg, zap.NewNop()).Router())
	t.Cleanup(srv.Close)
	return &testStack{svc: svc, srv: srv}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestIntegration_IngestAndQuery(t *testing.T) {
	stack := newTestStack(t)

	docPath := filepath.Join(t.TempDir(), "doc.txt")
	content := "machine learning algorithms learn patterns " +
		"container orchestration automates cluster deployment " +
		"relational databases support structured queries well"
	if err := os.WriteFile(docPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, stack.srv.URL+"/api/v1/ingest", &models.IngestRequest{
		DatasetID: "docs",
		Source:    docPath,
		Version:   "v1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest status = %d, want 202", resp.StatusCode)
	}
	var accepted models.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Version != "v1" || accepted.TaskID == "" {
		t.Errorf("unexpected ingest response: %+v", accepted)
	}

	stack.svc.Wait()

	// Manifest shows the entry INDEXED with the chunk count.
	mResp, err := http.Get(stack.srv.URL + "/api/v1/datasets/docs/manifest")
	if err != nil {
		t.Fatal(err)
	}
	defer mResp.Body.Close()
	if mResp.StatusCode != http.StatusOK {
		t.Fatalf("manifest status = %d, want 200", mResp.StatusCode)
	}
	var m models.DatasetManifest
	if err := json.NewDecoder(mResp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if len(m.Versions) != 1 {
		t.Fatalf("manifest entries = %d, want 1", len(m.Versions))
	}
	entry := m.Versions[0]
	if entry.Status != models.StatusIndexed {
		t.Fatalf("status = %q, want %q (error=%q)", entry.Status, models.StatusIndexed, entry.Error)
	}
	if entry.ChunksIndexed != 3 {
		t.Errorf("chunks_indexed = %d, want 3", entry.ChunksIndexed)
	}
	if entry.IndexedAt == nil {
		t.Error("indexed_at not set")
	}

	// Query the built version.
	qResp := postJSON(t, stack.srv.URL+"/api/v1/datasets/docs/versions/v1/query", &models.QueryRequest{
		Query: "machine learning algorithms learn patterns",
		TopK:  2,
	})
	defer qResp.Body.Close()
	if qResp.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d, want 200", qResp.StatusCode)
	}
	var q models.QueryResponse
	if err := json.NewDecoder(qResp.Body).Decode(&q); err != nil {
		t.Fatal(err)
	}
	if len(q.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(q.Results))
	}
	if q.Results[0].Text != "machine learning algorithms learn patterns" {
		t.Errorf("top result = %q", q.Results[0].Text)
	}
	if q.Results[0].Score < q.Results[1].Score {
		t.Error("results not sorted by score")
	}
}

func TestIntegration_FailedIngestionRecorded(t *testing.T) {
	stack := newTestStack(t)

	resp := postJSON(t, stack.srv.URL+"/api/v1/ingest", &models.IngestRequest{
		DatasetID: "docs",
		Source:    filepath.Join(t.TempDir(), "missing.txt"),
		Version:   "v1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest status = %d, want 202", resp.StatusCode)
	}
	stack.svc.Wait()

	mResp, err := http.Get(stack.srv.URL + "/api/v1/datasets/docs/manifest")
	if err != nil {
		t.Fatal(err)
	}
	defer mResp.Body.Close()
	var m models.DatasetManifest
	if err := json.NewDecoder(mResp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if len(m.Versions) != 1 {
		t.Fatalf("manifest entries = %d, want 1", len(m.Versions))
	}
	if m.Versions[0].Status != models.StatusFailed {
		t.Errorf("status = %q, want %q", m.Versions[0].Status, models.StatusFailed)
	}
	if m.Versions[0].Error == "" {
		t.Error("failed entry has no error message")
	}

	// Querying the failed version returns 404.
	qResp := postJSON(t, stack.srv.URL+"/api/v1/datasets/docs/versions/v1/query", &models.QueryRequest{Query: "anything"})
	defer qResp.Body.Close()
	if qResp.StatusCode != http.StatusNotFound {
		t.Errorf("query status = %d, want 404", qResp.StatusCode)
	}
}

func TestIntegration_DuplicateVersionRejected(t *testing.T) {
	stack := newTestStack(t)

	docPath := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(docPath, []byte("one two three four five"), 0644); err != nil {
		t.Fatal(err)
	}

	first := postJSON(t, stack.srv.URL+"/api/v1/ingest", &models.IngestRequest{
		DatasetID: "docs", Source: docPath, Version: "v1",
	})
	first.Body.Close()
	if first.StatusCode != http.StatusAccepted {
		t.Fatalf("first ingest status = %d", first.StatusCode)
	}
	stack.svc.Wait()

	second := postJSON(t, stack.srv.URL+"/api/v1/ingest", &models.IngestRequest{
		DatasetID: "docs", Source: docPath, Version: "v1",
	})
	defer second.Body.Close()
	if second.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate ingest status = %d, want 400", second.StatusCode)
	}

	// With upsert the same version is accepted and replaces the entry.
	third := postJSON(t, stack.srv.URL+"/api/v1/ingest", &models.IngestRequest{
		DatasetID: "docs", Source: docPath, Version: "v1", Upsert: true,
	})
	defer third.Body.Close()
	if third.StatusCode != http.StatusAccepted {
		t.Errorf("upsert ingest status = %d, want 202", third.StatusCode)
	}
	stack.svc.Wait()

	mResp, err := http.Get(stack.srv.URL + "/api/v1/datasets/docs/manifest")
	if err != nil {
		t.Fatal(err)
	}
	defer mResp.Body.Close()
	var m models.DatasetManifest
	if err := json.NewDecoder(mResp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if len(m.Versions) != 1 {
		t.Errorf("manifest entries = %d, want 1 after upsert", len(m.Versions))
	}
}

func TestIntegration_ManifestSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	indexDir := filepath.Join(dir, "indexes")

	build := func() (*manifest.Service, *catalog.Catalog) {
		store := manifest.NewFSStore(dataDir)
		embedder := embedding.NewMockEmbedder(16)
		cat := catalog.New()
		registry := loader.NewRegistry()
		registry.Register("file", loader.NewFileLoader(loader.NewSplitter(5, 0)))
		return manifest.NewService(store, registry, embedder, cat, manifest.ServiceConfig{
			IndexRoot:     indexDir,
			MaxConcurrent: 2,
		}, zap.NewNop()), cat
	}

	docPath := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(docPath, []byte("alpha beta gamma delta epsilon"), 0644); err != nil {
		t.Fatal(err)
	}

	svc, _ := build()
	if _, err := svc.Submit(context.Background(), &models.IngestRequest{
		DatasetID: "docs", Source: docPath, Version: "v1",
	}); err != nil {
		t.Fatal(err)
	}
	svc.Wait()

	// A fresh process sees the persisted manifest and can reload the snapshot.
	svc2, cat2 := build()
	m := svc2.GetManifest(context.Background(), "docs")
	if len(m.Versions) != 1 || m.Versions[0].Status != models.StatusIndexed {
		t.Fatalf("restarted manifest = %+v", m.Versions)
	}
	if n := cat2.LoadSnapshots(indexDir, nil); n != 1 {
		t.Fatalf("reloaded %d snapshots, want 1", n)
	}
	idx, ok := cat2.Get("docs", "v1")
	if !ok {
		t.Fatal("docs/v1 missing after snapshot reload")
	}
	if idx.Size() != 1 {
		t.Errorf("reloaded index size = %d, want 1", idx.Size())
	}
}
