package source

import (
	"context"

	"github.com/rshade/costlens/internal/ingest"
)

// File reads a local CSV, XLSX or JSON file on every fetch. The query
// bounds are applied after normalization by the caller.
type File struct {
	Path    string
	Options ingest.ReadOptions
}

// NewFile returns a file source; the format is detected from the extension
// when opts.Format is empty.
func NewFile(path string, opts ingest.ReadOptions) *File {
	return &File{Path: path, Options: opts}
}

// Name implements Source.
func (f *File) Name() string { return "file" }

// Fetch implements Source.
func (f *File) Fetch(ctx context.Context, _ Query) (ingest.RawTable, error) {
	t, err := ingest.ReadFile(ctx, f.Path, f.Options)
	if err != nil {
		return ingest.RawTable{}, fail(f.Name(), err)
	}
	return t, nil
}
