package testutil

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
)

// DiscardLogger returns a logger that drops everything. Runs spawn
// goroutines that may log after a test returned, so tests never log to t.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LogBuffer collects JSON log lines for assertions.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// BufferLogger returns a debug-level JSON logger writing into a new buffer.
func BufferLogger() (*slog.Logger, *LogBuffer) {
	b := &LogBuffer{}
	l := slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, b
}
