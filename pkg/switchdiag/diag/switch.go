// Package diag assembles per-device diagnostic reports.
//
// A Switch exposes one method per diagnostic category. Diagnose calls every
// category in turn and records each outcome in its own report slot, so a
// failing category never hides the others.
package diag

import (
	"context"
	"errors"
	"time"

	"github.com/vpbank/switchdiag/pkg/switchdiag/table"
	"github.com/vpbank/switchdiag/snmp/value"
)

// ErrNotImplemented is returned by alternate transports that are not wired up.
var ErrNotImplemented = errors.New("not implemented")

// Switch is the capability set a diagnosable device offers.
type Switch interface {
	Host() string
	Vendor() string

	SysInfo(ctx context.Context) (*SysInfo, error)
	Resources(ctx context.Context) (*Resources, error)
	Interfaces(ctx context.Context) (*table.Table, error)
	InterfaceStats(ctx context.Context) (*table.Table, error)
	STPStatus(ctx context.Context) (*STPStatus, error)
	LogSummary(ctx context.Context, limit int) (*LogSummary, error)
	WebUICheck(ctx context.Context) WebUIStatus
}

// ─────────────────────────────────────────────────────────────────────────────
// Category payloads
// ─────────────────────────────────────────────────────────────────────────────

// SysInfo is the SNMPv2-MIB system group.
type SysInfo struct {
	Name        value.Value `json:"name"`
	Descr       value.Value `json:"descr"`
	Uptime      value.Value `json:"uptime"`
	SysObjectID string      `json:"sysObjectID"`
	Contact     value.Value `json:"contact"`
	Location    value.Value `json:"location"`
}

// ProcessorLoad is one hrProcessorLoad row.
type ProcessorLoad struct {
	Index   string      `json:"index"`
	Percent value.Value `json:"percent"`
}

// Resources summarises CPU and memory from HOST-RESOURCES-MIB. Available is
// false when the agent does not implement the MIB.
type Resources struct {
	Available    bool            `json:"available"`
	CPU          []ProcessorLoad `json:"cpu,omitempty"`
	CPUAverage   *float64        `json:"cpu_average,omitempty"`
	MemorySizeKB value.Value     `json:"memory_size_kb"`
}

// STPStatus is the BRIDGE-MIB dot1dStp summary.
type STPStatus struct {
	RootBridge              value.Value  `json:"root_bridge"`
	Priority                value.Value  `json:"priority"`
	TopologyChanges         value.Value  `json:"topology_changes"`
	TimeSinceTopologyChange value.Value  `json:"time_since_topology_change"`
	RootCost                value.Value  `json:"root_cost"`
	RootPort                value.Value  `json:"root_port"`
	Ports                   *table.Table `json:"ports,omitempty"`
}

// LogEntry is one device log line.
type LogEntry struct {
	Time     time.Time `json:"time"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
}

// LogSummary is the most recent device log, as collected by an alternate
// transport.
type LogSummary struct {
	Entries []LogEntry `json:"entries"`
	Errors  int        `json:"errors"`
}

// WebUIStatus reports whether the management web UI answers.
type WebUIStatus struct {
	Enabled        bool    `json:"enabled"`
	Reachable      bool    `json:"reachable"`
	StatusCode     int     `json:"status_code,omitempty"`
	ResponseTimeMs float64 `json:"response_time_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Alternate transports
// ─────────────────────────────────────────────────────────────────────────────

// HTTPCheckResult is the outcome of a successful web UI request.
type HTTPCheckResult struct {
	StatusCode   int
	ResponseTime time.Duration
}

// HTTPChecker requests a path under a base URL.
type HTTPChecker interface {
	HTTPCheck(ctx context.Context, baseURL, path string) (*HTTPCheckResult, error)
}

// AltTransport collects what SNMP cannot: device logs and web UI
// reachability.
type AltTransport interface {
	HTTPChecker
	LogSummary(ctx context.Context, limit int) (*LogSummary, error)
}

// Unsupported is the AltTransport used when no SSH, Telnet or HTTP collector
// is configured. Every method returns ErrNotImplemented.
type Unsupported struct{}

func (Unsupported) HTTPCheck(context.Context, string, string) (*HTTPCheckResult, error) {
	return nil, ErrNotImplemented
}

func (Unsupported) LogSummary(context.Context, int) (*LogSummary, error) {
	return nil, ErrNotImplemented
}
