// Package json serialises diagnostic reports for output.
//
// Pipeline position:
//
//	poller.WorkerPool → format/json → transport/file
//
// The report types carry their own json tags and MarshalJSON methods, so
// formatting is a single marshal call with optional indentation.
package json

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
)

// ─────────────────────────────────────────────────────────────────────────────
// Formatter interface
// ─────────────────────────────────────────────────────────────────────────────

// Formatter serialises a diag.Report into a byte slice.
type Formatter interface {
	Format(report *diag.Report) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls JSONFormatter behaviour.
type Config struct {
	// PrettyPrint emits indented, human-readable JSON when true. Keep it off
	// when writing newline-delimited output.
	PrettyPrint bool

	// Indent is the indent string used when PrettyPrint=true.
	// Defaults to two spaces when empty.
	Indent string
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONFormatter
// ─────────────────────────────────────────────────────────────────────────────

// JSONFormatter implements Formatter with encoding/json. It is safe for
// concurrent use; all fields are immutable after construction.
type JSONFormatter struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a JSONFormatter. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) *JSONFormatter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.PrettyPrint && cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &JSONFormatter{cfg: cfg, logger: logger}
}

// Format serialises report to JSON:
//
//	{
//	  "id": "…", "host": "sw-01", "vendor": "cisco",
//	  "started_at": "2026-02-26T10:30:00Z", "duration_ms": 245,
//	  "sysinfo": { … } | {"error": "…", "kind": "transport"},
//	  "resources": …, "interfaces": { "<ifIndex>": { … } }, "interface_stats": …,
//	  "stp": …, "logs": …,
//	  "web_ui": { "enabled": false, "reachable": false }
//	}
func (f *JSONFormatter) Format(report *diag.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("format/json: report must not be nil")
	}

	var (
		data []byte
		err  error
	)
	if f.cfg.PrettyPrint {
		data, err = json.MarshalIndent(report, "", f.cfg.Indent)
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		f.logger.Error("format/json: marshal failed",
			"report_id", report.ID,
			"host", report.Host,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("format/json: marshal: %w", err)
	}

	f.logger.Debug("format/json: formatted report",
		"report_id", report.ID,
		"host", report.Host,
		"failures", report.Failures(),
		"bytes", len(data),
	)
	return data, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
