package logview

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/crimson-sun/updash/internal/model"
)

const defaultBufSize = 64 * 1024

// TranscriptOption configures a Transcript.
type TranscriptOption func(*Transcript)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) TranscriptOption {
	return func(t *Transcript) { t.maxSize = bytes }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) TranscriptOption {
	return func(t *Transcript) { t.now = now }
}

// transcriptLine is one NDJSON record.
type transcriptLine struct {
	Time   time.Time `json:"time"`
	Text   string    `json:"text"`
	Notice bool      `json:"notice,omitempty"`
}

// Transcript keeps a durable copy of the log as NDJSON, one entry per line.
type Transcript struct {
	mu      sync.Mutex
	w       *bufio.Writer
	f       *os.File
	path    string
	maxSize int64
	written int64
	now     func() time.Time
}

// NewTranscript opens path for appending.
func NewTranscript(path string, opts ...TranscriptOption) (*Transcript, error) {
	t := &Transcript{path: path, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if err := t.openFile(); err != nil {
		return nil, err
	}
	return t, nil
}

// Append writes e. Failures are logged; the on-screen log is unaffected.
func (t *Transcript) Append(e model.LogEntry) {
	if err := t.write(e); err != nil {
		slog.Warn("transcript write failed", "path", t.path, "error", err)
	}
}

func (t *Transcript) write(e model.LogEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(transcriptLine{Time: t.now(), Text: e.Text, Notice: e.Notice})
	if err != nil {
		return fmt.Errorf("transcript: marshal: %w", err)
	}
	data = append(data, '\n')

	if t.maxSize > 0 && t.written > 0 && t.written+int64(len(data)) > t.maxSize {
		if err := t.rotate(); err != nil {
			return fmt.Errorf("transcript: rotate: %w", err)
		}
	}

	n, err := t.w.Write(data)
	t.written += int64(n)
	if err != nil {
		return fmt.Errorf("transcript: write: %w", err)
	}
	// Entries are rare; flush so the file is readable while running.
	return t.w.Flush()
}

// Close flushes and closes the file.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Flush(); err != nil {
		t.f.Close()
		return fmt.Errorf("transcript: flush: %w", err)
	}
	return t.f.Close()
}

func (t *Transcript) openFile() error {
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("transcript: open %s: %w", t.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("transcript: stat %s: %w", t.path, err)
	}
	t.f = f
	t.w = bufio.NewWriterSize(f, defaultBufSize)
	t.written = info.Size()
	return nil
}

// rotate renames the current file to {path}.1, shifting older ones up to .10.
func (t *Transcript) rotate() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	if err := t.f.Close(); err != nil {
		return err
	}
	for i := 9; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", t.path, i), fmt.Sprintf("%s.%d", t.path, i+1))
	}
	if err := os.Rename(t.path, t.path+".1"); err != nil {
		return err
	}
	t.written = 0
	return t.openFile()
}

// Sink is anything that accepts log entries.
type Sink interface {
	Append(e model.LogEntry)
}

// Tee copies every entry to each sink in order.
type Tee []Sink

func (t Tee) Append(e model.LogEntry) {
	for _, s := range t {
		s.Append(e)
	}
}
