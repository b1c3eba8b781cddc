// Package journal keeps an append-only, file-per-entry record of algorithm
// runs for later audit.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RunRecord captures one finished or failed algorithm run.
type RunRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	RunID        string         `json:"run_id"`
	Sequence     int            `json:"sequence"`
	Ticker       string         `json:"ticker"`
	Strategy     string         `json:"strategy"`
	Provider     string         `json:"provider,omitempty"`
	Interval     string         `json:"interval,omitempty"`
	From         time.Time      `json:"from,omitempty"`
	To           time.Time      `json:"to,omitempty"`
	Bars         int            `json:"bars"`
	Summary      map[string]any `json:"summary,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Writer persists run records to a directory as JSON files.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer, creating dir when missing.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the journal directory.
func (w *Writer) Dir() string { return w.dir }

// WriteRun writes rec to a timestamped JSON file and returns its path.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	w.seq++
	rec.Sequence = w.seq
	w.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	name := fmt.Sprintf("run_%s_%05d_%s.json", rec.Timestamp.UTC().Format("20060102_150405"), rec.Sequence, safeName(rec.RunID))
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadRuns loads every record in dir ordered by file name.
func ReadRuns(dir string) ([]RunRecord, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "run_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]RunRecord, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", filepath.Base(path), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func safeName(s string) string {
	if s == "" {
		return "run"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
