package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/vector"
)

func buildIndex(t *testing.T, texts ...string) *vector.Index {
	t.Helper()
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Text: text}
	}
	idx, err := vector.Build(context.Background(), chunks, embedding.NewMockEmbedder(16))
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestCatalog_PutGet(t *testing.T) {
	c := New()
	v1 := buildIndex(t, "a", "b")
	v2 := buildIndex(t, "c")

	c.Put("docs", "v1", v1)
	c.Put("docs", "v2", v2)
	c.Put("other", "v1", v2)

	if got, ok := c.Get("docs", "v1"); !ok || got != v1 {
		t.Error("docs/v1 lookup failed")
	}
	if got, ok := c.Get("docs", "v2"); !ok || got != v2 {
		t.Error("docs/v2 lookup failed")
	}
	if _, ok := c.Get("docs", "v3"); ok {
		t.Error("unexpected hit for unknown version")
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCatalog_ReplaceAndRemove(t *testing.T) {
	c := New()
	old := buildIndex(t, "old")
	replacement := buildIndex(t, "new")

	c.Put("docs", "v1", old)
	c.Put("docs", "v1", replacement)
	if got, _ := c.Get("docs", "v1"); got != replacement {
		t.Error("Put did not replace the handle")
	}

	c.Remove("docs", "v1")
	if _, ok := c.Get("docs", "v1"); ok {
		t.Error("handle still present after Remove")
	}
	// The detached index remains usable.
	if old.Size() != 1 {
		t.Error("detached index corrupted")
	}
}

func TestCatalog_LoadSnapshots(t *testing.T) {
	root := t.TempDir()
	idx := buildIndex(t, "hello", "world")

	dir := filepath.Join(root, "docs", "v1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(filepath.Join(dir, "index.bin")); err != nil {
		t.Fatal(err)
	}
	// Corrupt snapshot in another version; must be skipped, not fatal.
	badDir := filepath.Join(root, "docs", "v2")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "index.bin"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New()
	var failed []string
	n := c.LoadSnapshots(root, func(path string, err error) {
		failed = append(failed, path)
	})
	if n != 1 {
		t.Errorf("loaded %d snapshots, want 1", n)
	}
	if len(failed) != 1 {
		t.Errorf("onError calls = %d, want 1", len(failed))
	}
	got, ok := c.Get("docs", "v1")
	if !ok {
		t.Fatal("docs/v1 not registered")
	}
	if got.Size() != 2 {
		t.Errorf("Size = %d, want 2", got.Size())
	}
}
