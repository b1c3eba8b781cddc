// Package export writes option batches to local files for offline analysis
// and reads them back for restores.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// Format names a file layout.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
)

// ErrUnsupportedFormat is returned for unknown formats.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ParseFormat accepts a format name case-insensitively. Empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatParquet, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// FormatFromPath infers the format from a file extension, falling back to def.
func FormatFromPath(path string, def Format) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return FormatCSV
	case "parquet":
		return FormatParquet
	case "json":
		return FormatJSON
	default:
		return def
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string { return string(f) }

// Write stores batch at path, creating parent directories.
func Write(path string, batch options.Batch, format Format) error {
	rows, err := batch.Rows()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create dir: %w", err)
		}
	}
	if format == FormatParquet {
		if err := parquet.WriteFile(path, rows); err != nil {
			return fmt.Errorf("export: write parquet %s: %w", path, err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()
	if err := encodeRows(f, rows, format); err != nil {
		return err
	}
	return f.Close()
}

// Encode writes batch to w. Parquet is supported too; the whole file is
// buffered by the parquet writer before w sees it.
func Encode(w io.Writer, batch options.Batch, format Format) error {
	rows, err := batch.Rows()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return encodeRows(w, rows, format)
}

func encodeRows(w io.Writer, rows []options.OptionRow, format Format) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("export: encode json: %w", err)
		}
		return nil
	case FormatParquet:
		if err := parquet.Write(w, rows); err != nil {
			return fmt.Errorf("export: encode parquet: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Read loads a batch previously written by Write.
func Read(path string, format Format) (options.Batch, error) {
	if format == FormatParquet {
		rows, err := parquet.ReadFile[options.OptionRow](path)
		if err != nil {
			return nil, fmt.Errorf("export: read parquet %s: %w", path, err)
		}
		return options.BatchFromRows(rows), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, format)
}

// Decode reads CSV or JSON rows from r.
func Decode(r io.Reader, format Format) (options.Batch, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatJSON:
		var rows []options.OptionRow
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return nil, fmt.Errorf("export: decode json: %w", err)
		}
		return options.BatchFromRows(rows), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
