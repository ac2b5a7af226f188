package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/shirabe/internal/models"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	reqs []*models.IngestRequest
}

func (r *recordingSubmitter) Submit(ctx context.Context, req *models.IngestRequest) (*models.ManifestEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return &models.ManifestEntry{Version: req.Version, ID: "test-id"}, nil
}

func (r *recordingSubmitter) requests() []*models.IngestRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.IngestRequest(nil), r.reqs...)
}

func TestWatcher_SubmitsOnWrite(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w := New([]string{dir}, []string{".txt"}, "watched", sub, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "Release Notes.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sub.requests()) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	reqs := sub.requests()
	if len(reqs) == 0 {
		t.Fatal("expected at least one submission")
	}
	req := reqs[0]
	if req.DatasetID != "watched" {
		t.Errorf("DatasetID = %q, want %q", req.DatasetID, "watched")
	}
	if req.Source != path {
		t.Errorf("Source = %q, want %q", req.Source, path)
	}
	if !req.Upsert {
		t.Error("Upsert should be set so rewrites replace the earlier version")
	}
	if req.Version != "watch-release-notes" {
		t.Errorf("Version = %q, want %q", req.Version, "watch-release-notes")
	}
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := &recordingSubmitter{}
	w := New([]string{dir}, []string{".txt"}, "watched", sub, WithDebounce(30*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := len(sub.requests()); got != 0 {
		t.Errorf("expected no submissions for unmatched extension, got %d", got)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.md"), []byte("pre-existing"), 0644); err != nil {
		t.Fatal(err)
	}

	sub := &recordingSubmitter{}
	w := New([]string{dir}, []string{".md"}, "watched", sub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	reqs := sub.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(reqs))
	}
	if reqs[0].Version != "watch-old" {
		t.Errorf("Version = %q", reqs[0].Version)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestVersionFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/Report 2024.pdf", "watch-report-2024"},
		{"/data/notes.txt", "watch-notes"},
		{"/data/Ütf.md", "watch--tf"},
	}
	for _, tt := range tests {
		if got := versionFromPath(tt.path); got != tt.want {
			t.Errorf("versionFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
