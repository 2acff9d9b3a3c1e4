package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"elections-scraper/internal/results"
)

// Writer serializes a header and precinct rows as comma-separated UTF-8
// text, one record per line.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (tw *Writer) Write(schema results.PartySchema, rows []results.OutputRow) error {
	cw := csv.NewWriter(tw.w)

	if err := cw.Write(schema.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	width := len(results.FixedColumns) + len(schema)
	for i, row := range rows {
		fields := row.Fields()
		if len(fields) != width {
			return fmt.Errorf("row %d (%s) has %d fields, header has %d", i, row.Code, len(fields), width)
		}
		if err := cw.Write(fields); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// outputMode is the permission of a newly created output file.
const outputMode os.FileMode = 0o644

// WriteFile writes the table next to path and renames it into place, so an
// interrupted write never leaves a truncated file behind. An existing file
// keeps its permissions; a new one gets outputMode.
func WriteFile(path string, schema results.PartySchema, rows []results.OutputRow) error {
	mode := outputMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// No-op once the rename has succeeded.
	defer func() { _ = os.Remove(tmpName) }()

	if err := NewWriter(tmp).Write(schema, rows); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
