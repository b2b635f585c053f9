package logger

import "sync"

// Buffer is the ordered, append-only store of formatted log lines shared by
// every Logger of the process. It is created once at startup and flushed to
// disk after each job step; it is never reset.
type Buffer struct {
	mu    sync.RWMutex
	lines []string
	limit int // max retained lines (0 = unlimited)
}

// NewBuffer creates a Buffer. If limit is <= 0 the buffer grows without bound,
// otherwise the oldest lines are dropped once limit is exceeded.
func NewBuffer(limit int) *Buffer {
	if limit < 0 {
		limit = 0
	}
	return &Buffer{limit: limit}
}

// Append adds one line at the end of the buffer.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if b.limit > 0 && len(b.lines) > b.limit {
		over := len(b.lines) - b.limit
		b.lines = b.lines[over:]
	}
}

// Lines returns a copy of the buffered lines in insertion order.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}
