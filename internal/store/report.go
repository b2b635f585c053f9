package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/i474232898/climatempo-relay/internal/common"
)

var (
	// ErrPersistence classifies report and log file read/write failures.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned when no report exists for a given day.
	ErrNotFound = errors.New("no report for date")
)

// ReportStore keeps one most-recent-first report file per calendar day.
// It is not safe for concurrent writers; callers serialize runs.
type ReportStore struct {
	dir string
}

// NewReportStore creates a ReportStore rooted at dir.
func NewReportStore(dir string) *ReportStore {
	return &ReportStore{dir: dir}
}

// PathFor returns the report file path for the day of t.
func (s *ReportStore) PathFor(t time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("relatorio-%s.txt", common.DayStamp(t)))
}

// AppendBlock writes block followed by the current content of path, so the
// newest block is always first. A missing file is treated as empty.
func (s *ReportStore) AppendBlock(path, block string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: reading %s: %w", ErrPersistence, path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating report directory: %w", ErrPersistence, err)
	}

	content := make([]byte, 0, len(block)+len(existing))
	content = append(content, block...)
	content = append(content, existing...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrPersistence, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s: %w", ErrPersistence, tmpPath, err)
	}
	return nil
}

// Read returns the report content for the day of t.
func (s *ReportStore) Read(t time.Time) (string, error) {
	path := s.PathFor(t)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", ErrPersistence, path, err)
	}
	return string(data), nil
}
