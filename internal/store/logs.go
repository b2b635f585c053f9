package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/i474232898/climatempo-relay/internal/common"
)

// LogWriter persists the buffered log lines to one file per calendar day.
type LogWriter struct {
	dir string
}

// NewLogWriter creates a LogWriter rooted at dir.
func NewLogWriter(dir string) *LogWriter {
	return &LogWriter{dir: dir}
}

// PathFor returns the log file path for the day of t.
func (w *LogWriter) PathFor(t time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("log_%s.txt", common.DayStamp(t)))
}

// Flush overwrites the day's log file with lines joined by newlines.
// The directory is created when missing.
func (w *LogWriter) Flush(now time.Time, lines []string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating log directory: %w", ErrPersistence, err)
	}

	path := w.PathFor(now)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrPersistence, path, err)
	}
	return nil
}
