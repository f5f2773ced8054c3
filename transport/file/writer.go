// Package file delivers formatted reports to an io.Writer: os.Stdout by
// default, or a size-rotated file. Each Send writes one JSON record followed by
// a newline, so the output is newline-delimited JSON.
//
// Pipeline position:
//
//	format/json → transport/file
package file

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transport interface
// ─────────────────────────────────────────────────────────────────────────────

// Transport is the output contract. Send delivers one pre-formatted report;
// Close flushes and releases resources.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls WriterTransport behaviour.
type Config struct {
	// Writer is the destination. nil defaults to os.Stdout.
	Writer io.Writer

	// Newline appended after each message. Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// WriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// WriterTransport implements Transport by writing each message to an io.Writer
// followed by a configurable newline. It is safe for concurrent use.
type WriterTransport struct {
	mu     sync.Mutex
	w      io.Writer
	nl     []byte
	closer io.Closer
	logger *slog.Logger
}

// New constructs a WriterTransport. A Writer that is also an io.Closer (for
// example a RotatingFile) is closed by Close; os.Stdout and os.Stderr never
// are.
func New(cfg Config, logger *slog.Logger) *WriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}
	return &WriterTransport{
		w:      w,
		nl:     []byte(nl),
		closer: ownedCloser(w),
		logger: logger,
	}
}

// Send writes data followed by the newline. The mutex keeps concurrent
// reports from interleaving.
func (t *WriterTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeLine(t.w, data, t.nl, t.logger, "report")
}

// Close closes the underlying writer when it is owned (see New).
func (t *WriterTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// ownedCloser returns w as an io.Closer unless it is a standard stream.
func ownedCloser(w io.Writer) io.Closer {
	if w == os.Stdout || w == os.Stderr {
		return nil
	}
	c, _ := w.(io.Closer)
	return c
}

// writeLine writes data and its terminator in a single Write, so a rotating
// writer sees the whole record at once.
func writeLine(w io.Writer, data, nl []byte, logger *slog.Logger, kind string) error {
	line := make([]byte, 0, len(data)+len(nl))
	line = append(append(line, data...), nl...)
	if _, err := w.Write(line); err != nil {
		logger.Error("transport/file: write failed", "kind", kind, "error", err.Error(), "bytes", len(data))
		return fmt.Errorf("transport/file: %s write: %w", kind, err)
	}
	logger.Debug("transport/file: sent message", "kind", kind, "bytes", len(data))
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
