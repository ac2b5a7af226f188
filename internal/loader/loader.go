// Package loader turns a source reference into an ordered sequence of chunks:
// it resolves the source scheme, extracts text, and splits it into
// overlapping windows. Loaders are registered per scheme so new source kinds
// plug in without touching the ingestion worker.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// ErrSourceUnavailable is returned when a source cannot be read: missing
// file, extraction failure, or a scheme with no registered loader.
var ErrSourceUnavailable = errors.New("source unavailable")

// Loader loads a source and splits it into chunks. Implementations must fail
// with a descriptive error rather than return partial chunks on unreadable
// sources.
type Loader interface {
	LoadAndSplit(ctx context.Context, source string) ([]models.Chunk, error)
}

// Registry dispatches sources to loaders by URL scheme. Bare paths (no
// scheme) dispatch to the "file" loader.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// Register installs a loader for the given scheme (without "://").
func (r *Registry) Register(scheme string, l Loader) {
	r.loaders[scheme] = l
}

// RegisterUnsupported installs a loader that rejects every source of the
// given scheme with the reason. Used for schemes that are recognized but not
// yet handled, so callers get a descriptive failure instead of a file-open
// error on a URL.
func (r *Registry) RegisterUnsupported(scheme, reason string) {
	r.loaders[scheme] = unsupportedLoader{scheme: scheme, reason: reason}
}

// LoadAndSplit resolves the source's scheme and delegates to its loader.
func (r *Registry) LoadAndSplit(ctx context.Context, source string) ([]models.Chunk, error) {
	l, ok := r.loaders[Scheme(source)]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for scheme %q (source %q)", ErrSourceUnavailable, Scheme(source), source)
	}
	return l.LoadAndSplit(ctx, source)
}

// Scheme returns the URL scheme of source, or "file" for bare paths.
func Scheme(source string) string {
	if i := strings.Index(source, "://"); i > 0 {
		return strings.ToLower(source[:i])
	}
	return "file"
}

type unsupportedLoader struct {
	scheme string
	reason string
}

func (l unsupportedLoader) LoadAndSplit(_ context.Context, source string) ([]models.Chunk, error) {
	return nil, fmt.Errorf("%w: %s source %q: %s", ErrSourceUnavailable, l.scheme, source, l.reason)
}
