package diag

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/pkg/switchdiag/table"
)

// DefaultLogLimit is the number of log entries requested when no limit is set.
const DefaultLogLimit = 50

// ─────────────────────────────────────────────────────────────────────────────
// Result
// ─────────────────────────────────────────────────────────────────────────────

// Result holds the outcome of one diagnostic category: a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the category succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// resultError is the JSON shape of a failed category.
type resultError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// MarshalJSON emits the value on success and {"error": ..., "kind": ...} on
// failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(resultError{Error: r.Err.Error(), Kind: ErrorKind(r.Err)})
	}
	return json.Marshal(r.Value)
}

// ErrorKind classifies err for reports and logs: "transport", "application",
// "not_implemented" or "other".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case session.IsTransport(err):
		return "transport"
	case session.IsApplication(err):
		return "application"
	case errors.Is(err, ErrNotImplemented):
		return "not_implemented"
	default:
		return "other"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Report
// ─────────────────────────────────────────────────────────────────────────────

// Report is the composite diagnosis of one device.
type Report struct {
	ID         string    `json:"id"`
	Host       string    `json:"host"`
	Vendor     string    `json:"vendor"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`

	SysInfo        Result[*SysInfo]     `json:"sysinfo"`
	Resources      Result[*Resources]   `json:"resources"`
	Interfaces     Result[*table.Table] `json:"interfaces"`
	InterfaceStats Result[*table.Table] `json:"interface_stats"`
	STP            Result[*STPStatus]   `json:"stp"`
	Logs           Result[*LogSummary]  `json:"logs"`
	WebUI          WebUIStatus          `json:"web_ui"`
}

// Unreachable reports whether the device did not answer at all: the system
// group failed with a transport error.
func (r *Report) Unreachable() bool {
	return session.IsTransport(r.SysInfo.Err)
}

// Failures returns the number of categories that ended in an error.
func (r *Report) Failures() int {
	n := 0
	for _, err := range []error{
		r.SysInfo.Err, r.Resources.Err, r.Interfaces.Err,
		r.InterfaceStats.Err, r.STP.Err, r.Logs.Err,
	} {
		if err != nil {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Diagnose
// ─────────────────────────────────────────────────────────────────────────────

// Option configures Diagnose.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	logLimit int
	now      func() time.Time
}

// WithLogger sets the logger used to report failed categories.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLogLimit sets how many log entries are requested (default 50).
func WithLogLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.logLimit = n
		}
	}
}

// Diagnose runs every category of sw in sequence and returns the report. A
// failed category is recorded in its slot and logged; the remaining
// categories still run.
func Diagnose(ctx context.Context, sw Switch, opts ...Option) *Report {
	o := options{
		logger:   slog.New(slog.NewTextHandler(noopWriter{}, nil)),
		logLimit: DefaultLogLimit,
		now:      time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	logger := o.logger.With("host", sw.Host())

	start := o.now()
	r := &Report{
		ID:        uuid.NewString(),
		Host:      sw.Host(),
		Vendor:    sw.Vendor(),
		StartedAt: start.UTC(),
	}

	r.SysInfo = run(ctx, logger, "sysinfo", sw.SysInfo)
	r.Resources = run(ctx, logger, "resources", sw.Resources)
	r.Interfaces = run(ctx, logger, "interfaces", sw.Interfaces)
	r.InterfaceStats = run(ctx, logger, "interface_stats", sw.InterfaceStats)
	r.STP = run(ctx, logger, "stp", sw.STPStatus)
	r.Logs = run(ctx, logger, "logs", func(ctx context.Context) (*LogSummary, error) {
		return sw.LogSummary(ctx, o.logLimit)
	})
	r.WebUI = sw.WebUICheck(ctx)

	r.DurationMs = o.now().Sub(start).Milliseconds()
	logger.Debug("diag: report complete", "id", r.ID, "failures", r.Failures(), "duration_ms", r.DurationMs)
	return r
}

func run[T any](ctx context.Context, logger *slog.Logger, category string, fn func(context.Context) (T, error)) Result[T] {
	v, err := fn(ctx)
	if err != nil {
		logger.Warn("diag: category failed",
			"category", category,
			"kind", ErrorKind(err),
			"error", err.Error(),
		)
		var zero T
		return Result[T]{Value: zero, Err: err}
	}
	return Result[T]{Value: v}
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
