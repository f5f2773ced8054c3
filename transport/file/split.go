package file

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// SplitConfig
// ─────────────────────────────────────────────────────────────────────────────

// SplitConfig controls SplitWriterTransport behaviour.
type SplitConfig struct {
	// ReportWriter receives reports in which every category succeeded.
	// nil defaults to os.Stdout.
	ReportWriter io.Writer

	// DegradedWriter receives reports with at least one failed category.
	// nil defaults to os.Stderr.
	DegradedWriter io.Writer

	// Newline appended after each message. Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// SplitWriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// SplitWriterTransport routes each report to one of two writers depending on
// whether any diagnostic category failed. It is safe for concurrent use.
//
// A failed category serialises as {"error": …, "kind": …}; scanning for the
// kind key detects it without decoding the report, in compact and indented
// output alike.
type SplitWriterTransport struct {
	reportMu   sync.Mutex
	degradedMu sync.Mutex
	reportW    io.Writer
	degradedW  io.Writer
	nl         []byte
	closers    []io.Closer
	logger     *slog.Logger
}

// degradedKey appears in a formatted report only inside a failed category.
// String values that contain the same text are escaped by the encoder.
var degradedKey = []byte(`"kind":`)

// NewSplit constructs a SplitWriterTransport. Owned writers (see New) are
// closed by Close.
func NewSplit(cfg SplitConfig, logger *slog.Logger) *SplitWriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	rw := cfg.ReportWriter
	if rw == nil {
		rw = os.Stdout
	}
	dw := cfg.DegradedWriter
	if dw == nil {
		dw = os.Stderr
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}

	st := &SplitWriterTransport{
		reportW:   rw,
		degradedW: dw,
		nl:        []byte(nl),
		logger:    logger,
	}
	for _, w := range []io.Writer{rw, dw} {
		if c := ownedCloser(w); c != nil {
			st.closers = append(st.closers, c)
		}
	}
	return st
}

// Send routes data by the presence of a failed category.
func (st *SplitWriterTransport) Send(data []byte) error {
	if IsDegraded(data) {
		st.degradedMu.Lock()
		defer st.degradedMu.Unlock()
		return writeLine(st.degradedW, data, st.nl, st.logger, "degraded")
	}
	st.reportMu.Lock()
	defer st.reportMu.Unlock()
	return writeLine(st.reportW, data, st.nl, st.logger, "report")
}

// Close closes the owned writers and returns the first error.
func (st *SplitWriterTransport) Close() error {
	var firstErr error
	for _, c := range st.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	st.closers = nil
	return firstErr
}

// IsDegraded reports whether a formatted report contains a failed category:
// the kind key followed, after optional whitespace, by a string value.
func IsDegraded(data []byte) bool {
	for {
		i := bytes.Index(data, degradedKey)
		if i < 0 {
			return false
		}
		data = bytes.TrimLeft(data[i+len(degradedKey):], " \t\r\n")
		if len(data) > 0 && data[0] == '"' {
			return true
		}
	}
}
