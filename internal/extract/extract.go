package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"profiler-service/internal/models"
)

var (
	// ErrUnsupported is returned for file extensions with no extractor.
	ErrUnsupported = fmt.Errorf("%w: unsupported file type", models.ErrSourceUnavailable)
	// ErrUnavailable is returned when an extractor's external tool is missing.
	ErrUnavailable = fmt.Errorf("%w: extractor not available", models.ErrSourceUnavailable)
)

// Extractor turns one file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Registry dispatches extraction on the lower-cased file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the text, PDF and Word extractors.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(".txt", ExtractorFunc(PlainText))
	r.Register(".pdf", NewPDF(nil))
	r.Register(".docx", ExtractorFunc(Docx))
	return r
}

// Register sets the extractor for an extension such as ".txt".
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return e.Extract(ctx, path)
}

// PlainText reads a UTF-8 text file, dropping invalid byte sequences.
func PlainText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", models.ErrFetchFailed, err)
		}
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
