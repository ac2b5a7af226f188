package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractor_PlainText(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte("hello world\n"), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello world\n" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractor_InvalidUTF8(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte{0x68, 0x69, 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, "hi") {
		t.Errorf("text = %q", text)
	}
	if strings.ContainsRune(text, 0xff) {
		t.Error("invalid bytes not replaced")
	}
}

func TestExtractor_UnknownExtensionFallsBackToPlain(t *testing.T) {
	e := NewExtractor()
	text, err := e.ExtractBytes([]byte("log line"), ".log")
	if err != nil {
		t.Fatal(err)
	}
	if text != "log line" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractor_FileRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("# heading\nbody"), 0o600); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor()
	text, err := e.Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "heading") {
		t.Errorf("text = %q", text)
	}
}

func TestExtractor_MissingFile(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractor_BadDOCX(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error for malformed docx")
	}
}
