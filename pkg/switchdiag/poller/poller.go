package poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vpbank/switchdiag/models"
	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
)

// ─────────────────────────────────────────────────────────────────────────────
// DiagnoseJob
// ─────────────────────────────────────────────────────────────────────────────

// DiagnoseJob describes one full diagnosis of a device.
type DiagnoseJob struct {
	// Hostname is the key into LoadedConfig.Devices that identifies the target.
	Hostname string

	// Device carries the identity fields copied into log lines and reports.
	Device models.Device

	// DeviceConfig is the resolved configuration for the device.
	DeviceConfig config.DeviceConfig
}

// JobFor builds the job for a configured device.
func JobFor(hostname string, cfg config.DeviceConfig) DiagnoseJob {
	return DiagnoseJob{
		Hostname: hostname,
		Device: models.Device{
			Hostname:    hostname,
			IPAddress:   cfg.IP,
			SNMPVersion: cfg.Version,
			Vendor:      cfg.Vendor,
			WebURL:      cfg.WebURL,
		},
		DeviceConfig: cfg,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Diagnoser interface
// ─────────────────────────────────────────────────────────────────────────────

// Diagnoser runs one diagnosis job and returns the report.
type Diagnoser interface {
	Diagnose(ctx context.Context, job DiagnoseJob) (*diag.Report, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPDiagnoser
// ─────────────────────────────────────────────────────────────────────────────

// SNMPDiagnoser is the production Diagnoser backed by a ClientPool. Each job
// builds a GenericSwitch over a pooled query client.
type SNMPDiagnoser struct {
	pool   *ClientPool
	logger *slog.Logger
	alt    diag.AltTransport
}

// NewSNMPDiagnoser creates a diagnoser that obtains clients from pool. A nil
// alt leaves logs and the web UI check on diag.Unsupported.
func NewSNMPDiagnoser(pool *ClientPool, logger *slog.Logger, alt diag.AltTransport) *SNMPDiagnoser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SNMPDiagnoser{pool: pool, logger: logger, alt: alt}
}

// Diagnose acquires a client for the job's device, runs every diagnostic
// category and returns the client to the pool. The client is discarded
// instead when the device did not answer at all.
//
// The error is non-nil only when no client could be obtained; category
// failures are recorded inside the report.
func (p *SNMPDiagnoser) Diagnose(ctx context.Context, job DiagnoseJob) (*diag.Report, error) {
	client, err := p.pool.Get(ctx, job.Hostname, job.DeviceConfig)
	if err != nil {
		return nil, fmt.Errorf("pool get %s: %w", job.Hostname, err)
	}

	sw := diag.NewGenericSwitch(job.Hostname, client,
		diag.WithVendor(job.Device.Vendor),
		diag.WithWebURL(job.Device.WebURL),
		diag.WithAltTransport(p.alt),
	)
	report := diag.Diagnose(ctx, sw,
		diag.WithLogger(p.logger.With("device", job.Hostname)),
		diag.WithLogLimit(job.DeviceConfig.LogLimit),
	)

	if report.Unreachable() {
		p.pool.Discard(job.Hostname, client)
	} else {
		p.pool.Put(job.Hostname, client)
	}

	p.logger.Debug("diagnosis completed",
		"device", job.Hostname,
		"target", client.Target(),
		"failures", report.Failures(),
		"duration_ms", report.DurationMs,
	)
	return report, nil
}
