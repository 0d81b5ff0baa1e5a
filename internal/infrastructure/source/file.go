package source

import (
	"context"
	"fmt"
	"io"
	"os"
)

// StdinName is the source path that reads standard input.
const StdinName = "-"

// File reads a local JSON Lines file.
type File struct {
	Path string
}

func (f File) Name() string { return f.Path }

// Open opens the file for reading.
func (f File) Open(_ context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open listing file: %w", err)
	}
	return fh, nil
}

// Reader wraps an already open stream such as standard input. Closing the
// source does not close the stream.
type Reader struct {
	Label string
	R     io.Reader
}

func (r Reader) Name() string { return r.Label }

func (r Reader) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(r.R), nil
}
