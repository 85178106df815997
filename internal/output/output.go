// Package output writes lstconv results to files.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"lstconv/internal/entity"
	"lstconv/internal/reconstruct"
)

// Inventory is the JSON summary of an entity-mode run.
type Inventory struct {
	Listing     string                `json:"listing"`
	Routines    []*entity.Routine     `json:"routines"`
	Variables   []*entity.Variable    `json:"variables"`
	Enums       []entity.Enum         `json:"enums,omitempty"`
	Ignored     int                   `json:"ignored"`
	DataSize    int                   `json:"data_size"`
	Stats       reconstruct.PortStats `json:"stats"`
	Unreachable []string              `json:"unreachable,omitempty"`
}

// WriteInventoryJSON writes inv to path.
func WriteInventoryJSON(path string, inv *Inventory) error {
	return writeJSON(path, inv)
}

// WriteDOT renders g as Graphviz DOT to path.
func WriteDOT(path string, g *lattice.Graph, title string) error {
	dot := render.DOT(g, title)
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// Create truncates path and returns a cp437 writer for it.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	return NewEncoder(f), nil
}

// Touch creates each path if missing and sets its modification time to now.
// Existing content is kept.
func Touch(paths ...string) error {
	now := time.Now()
	for _, path := range paths {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("output: touch %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("output: touch %s: %w", path, err)
		}
		if err := os.Chtimes(path, now, now); err != nil {
			return fmt.Errorf("output: touch %s: %w", path, err)
		}
	}
	return nil
}

// encoder writes cp437 to an underlying file.
type encoder struct {
	tw *transform.Writer
	c  io.Closer
}

// NewEncoder returns a writer that encodes to cp437 and closes wc on Close.
func NewEncoder(wc io.WriteCloser) io.WriteCloser {
	return &encoder{tw: transform.NewWriter(wc, charmap.CodePage437.NewEncoder()), c: wc}
}

func (e *encoder) Write(p []byte) (int, error) { return e.tw.Write(p) }

func (e *encoder) Close() error {
	err := e.tw.Close()
	if cerr := e.c.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
