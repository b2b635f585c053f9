// Package logger provides the named console logger used across the job.
// Every line is printed immediately and also kept in a shared Buffer so it
// can be persisted to the day's log file.
package logger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// Placeholder is replaced left-to-right by the positional params of Log and Error.
	Placeholder = "{}"

	// DefaultName labels loggers built without a name.
	DefaultName = "anonymous"

	// timestampLayout renders as dd/mm/yy, HH:MM:SS in local time.
	timestampLayout = "02/01/06, 15:04:05"

	clearSequence = "\033[H\033[2J"
)

// sink is the state shared by a Logger and every logger derived from it.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	buf    *Buffer
	now    func() time.Time
}

// Logger writes timestamped, named lines to stdout/stderr and the shared Buffer.
type Logger struct {
	name string
	sink *sink
}

// New creates a Logger that records into buf and prints to os.Stdout/os.Stderr.
func New(name string, buf *Buffer) *Logger {
	if name == "" {
		name = DefaultName
	}
	if buf == nil {
		buf = NewBuffer(0)
	}
	return &Logger{
		name: name,
		sink: &sink{
			out:    os.Stdout,
			errOut: os.Stderr,
			buf:    buf,
			now:    time.Now,
		},
	}
}

// Named returns a Logger with a different label sharing this logger's buffer and outputs.
func (l *Logger) Named(name string) *Logger {
	if name == "" {
		name = DefaultName
	}
	return &Logger{name: name, sink: l.sink}
}

// SetOutput redirects console output. Nil writers are left unchanged.
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if out != nil {
		l.sink.out = out
	}
	if errOut != nil {
		l.sink.errOut = errOut
	}
}

// SetClock replaces the time source used for line timestamps.
func (l *Logger) SetClock(now func() time.Time) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if now != nil {
		l.sink.now = now
	}
}

// Name returns the logger label.
func (l *Logger) Name() string {
	return l.name
}

// Buffer returns the shared line buffer.
func (l *Logger) Buffer() *Buffer {
	return l.sink.buf
}

// Log formats msg with params, prints it to stdout and appends it to the buffer.
func (l *Logger) Log(msg string, params ...any) {
	l.emit(false, Format(msg, params...))
}

// Error is like Log but prints to stderr and appends the normalized err after the text.
func (l *Logger) Error(err error, msg string, params ...any) {
	text := Format(msg, params...)
	l.emit(true, text+"\n"+NormalizeError(err))
}

// Clear clears the terminal. The buffer is not affected.
func (l *Logger) Clear() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	fmt.Fprint(l.sink.out, clearSequence)
}

func (l *Logger) emit(toErr bool, text string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	line := fmt.Sprintf("> %s [%s] %s", l.sink.now().Format(timestampLayout), l.name, text)

	w := l.sink.out
	if toErr {
		w = l.sink.errOut
	}
	fmt.Fprintln(w, line)
	l.sink.buf.Append(line)
}

// Format substitutes each Placeholder in msg with the matching param.
// Placeholders without a param stay literal; extra params are ignored.
func Format(msg string, params ...any) string {
	blocks := strings.Split(msg, Placeholder)
	if len(blocks) == 1 {
		return msg
	}

	var sb strings.Builder
	sb.WriteString(blocks[0])
	for i, block := range blocks[1:] {
		if i < len(params) {
			sb.WriteString(formatParam(params[i]))
		} else {
			sb.WriteString(Placeholder)
		}
		sb.WriteString(block)
	}
	return sb.String()
}

func formatParam(v any) string {
	switch p := v.(type) {
	case string:
		return p
	case error, fmt.Stringer:
		// fmt recovers nil-receiver panics and prints <nil>.
		return fmt.Sprint(p)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// NormalizeError renders err and its wrapped causes, one per line.
func NormalizeError(err error) string {
	if err == nil {
		return "Error: <nil>"
	}

	var sb strings.Builder
	prev := fmt.Sprint(err)
	sb.WriteString("Error: ")
	sb.WriteString(prev)

	for cause := unwrap(err); cause != nil; cause = unwrap(cause) {
		if msg := fmt.Sprint(cause); msg != prev {
			sb.WriteString("\n    caused by: ")
			sb.WriteString(msg)
			prev = msg
		}
	}
	return sb.String()
}

// unwrap is errors.Unwrap that treats a panicking Unwrap (nil receiver) as the end of the chain.
func unwrap(err error) (cause error) {
	defer func() {
		if recover() != nil {
			cause = nil
		}
	}()
	return errors.Unwrap(err)
}
