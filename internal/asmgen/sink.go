package asmgen

import (
	"io"
	"os"
	"path/filepath"

	"lstconv/internal/diag"
	"lstconv/internal/output"
)

// Sinks opens the side outputs of extraction windows by name.
type Sinks interface {
	Create(name string) (io.WriteCloser, error)
	Append(name string) (io.WriteCloser, error)
}

// DirSinks keeps side outputs as cp437 files in a directory.
type DirSinks string

func (d DirSinks) Create(name string) (io.WriteCloser, error) {
	return d.open(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

func (d DirSinks) Append(name string) (io.WriteCloser, error) {
	return d.open(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
}

func (d DirSinks) open(name string, flag int) (io.WriteCloser, error) {
	path := filepath.Join(string(d), name)
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, diag.IOf("", "open extraction file: %v", err)
	}
	return output.NewEncoder(f), nil
}
