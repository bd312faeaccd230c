// Package pipeline drives the sequential harvest: category by category,
// page by page, item by item, streaming transformed records to per-category
// output files.
package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/thepicksmart/wish-harvest/models"
)

// CategoryWriter appends import records to one category's output file as an
// incrementally built JSON array. While a run is in progress the file ends
// in a trailing comma — deliberately invalid JSON, so operators can tell an
// interrupted run from a finished one. Finalize terminates the array
// exactly once.
type CategoryWriter struct {
	path string

	mu        sync.Mutex
	file      *os.File
	appends   int
	finalized bool
}

// NewCategoryWriter creates or truncates `<label>.json` under dir and
// writes the opening bracket.
func NewCategoryWriter(dir, label string) (*CategoryWriter, error) {
	path := filepath.Join(dir, label+".json")
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	if _, err := f.WriteString("["); err != nil {
		f.Close()
		return nil, fmt.Errorf("write array opener: %w", err)
	}

	return &CategoryWriter{path: path, file: f}, nil
}

// Path returns the output file location.
func (w *CategoryWriter) Path() string {
	return w.path
}

// Append streams a batch of records to disk: the batch is marshalled, its
// enclosing brackets stripped, and the fragment written with a trailing
// comma. Empty batches are a no-op.
func (w *CategoryWriter) Append(records []models.OutputRecord) error {
	if len(records) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return fmt.Errorf("append after finalize on %s", w.path)
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	// Strip the slice's own brackets so the fragment splices into the
	// file-level array.
	fragment := encoded[1 : len(encoded)-1]

	if _, err := w.file.Write(fragment); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if _, err := w.file.WriteString(","); err != nil {
		return fmt.Errorf("write separator: %w", err)
	}

	w.appends++
	return nil
}

// Finalize terminates the array and closes the file. With at least one
// prior append the trailing comma is overwritten in place with the closing
// bracket; with none, the bracket is appended, leaving an empty array.
// Safe to call more than once; only the first call does work.
func (w *CategoryWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return nil
	}
	w.finalized = true

	if w.appends == 0 {
		if _, err := w.file.WriteString("]"); err != nil {
			w.file.Close()
			return fmt.Errorf("write array closer: %w", err)
		}
	} else {
		if _, err := w.file.Seek(-1, io.SeekEnd); err != nil {
			w.file.Close()
			return fmt.Errorf("seek to separator: %w", err)
		}
		if _, err := w.file.WriteString("]"); err != nil {
			w.file.Close()
			return fmt.Errorf("write array closer: %w", err)
		}
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

// Validate re-reads the finalized file and checks it parses as JSON.
func (w *CategoryWriter) Validate() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read output file: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("output file %s is not valid JSON", w.path)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
