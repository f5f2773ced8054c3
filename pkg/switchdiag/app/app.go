// Package app wires the run-mode pipeline together and manages its lifecycle.
//
//	Scheduler → WorkerPool → [reportCh] → Formatter → [formattedCh] → Transport
//
// The device inventory is watched on disk and reloaded into the scheduler;
// Prometheus collectors are served on an optional HTTP endpoint.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	jsonformat "github.com/vpbank/switchdiag/format/json"
	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
	"github.com/vpbank/switchdiag/pkg/switchdiag/scheduler"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	filetransport "github.com/vpbank/switchdiag/transport/file"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for run mode. Zero-value fields fall
// back to documented defaults.
type Config struct {
	// ConfigPaths are the directories for YAML configuration files.
	// Use config.PathsFromEnv() to populate from environment variables.
	ConfigPaths config.Paths

	// Workers is the number of concurrent diagnosis goroutines. Default: 16.
	Workers int

	// BufferSize is the capacity of each inter-stage channel. Default: 256.
	BufferSize int

	// PoolOptions configures the query client pool. Session metrics are
	// appended to PoolOptions.SessionOptions by the app.
	PoolOptions poller.PoolOptions

	// AltTransport collects logs and checks the web UI. nil = diag.Unsupported.
	AltTransport diag.AltTransport

	// PrettyPrint enables indented JSON output.
	PrettyPrint bool

	// TransportWriter is the destination for healthy reports. nil = os.Stdout.
	TransportWriter io.Writer

	// DegradedWriter, when set, receives reports with a failed category
	// instead of TransportWriter.
	DegradedWriter io.Writer

	// WatchConfig reloads the inventory when files under ConfigPaths change.
	WatchConfig bool

	// ReloadDelay debounces bursts of file events. Default: 2s.
	ReloadDelay time.Duration

	// MetricsAddr is the listen address of the /metrics endpoint. Empty
	// disables the HTTP server; collectors are still registered.
	MetricsAddr string

	// Registry receives all collectors. nil = a fresh prometheus.Registry.
	Registry *prometheus.Registry
}

func (c *Config) withDefaults() {
	if c.Workers <= 0 {
		c.Workers = 16
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.ReloadDelay <= 0 {
		c.ReloadDelay = 2 * time.Second
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the run-mode pipeline. Create one with New, start it with
// Start, and stop it with Stop.
type App struct {
	cfg    Config
	logger *slog.Logger

	loadedCfg *config.LoadedConfig
	metrics   *Metrics

	// Pipeline components.
	clientPool *poller.ClientPool
	diagnoser  *poller.SNMPDiagnoser
	workerPool *poller.WorkerPool
	sched      *scheduler.Scheduler
	formatter  *jsonformat.JSONFormatter
	transport  filetransport.Transport
	watcher    *watcher
	server     *metricsServer

	// Inter-stage channels.
	reportCh    chan *diag.Report
	formattedCh chan []byte

	// Lifecycle.
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything; call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Registry returns the registry holding the app and session collectors.
func (a *App) Registry() *prometheus.Registry { return a.cfg.Registry }

// Start loads the inventory, constructs every stage, and launches the
// goroutines that connect them. It fails when the inventory cannot be loaded
// or when metrics registration, the config watcher or the metrics listener
// cannot be set up.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Load configuration ───────────────────────────────────────────
	a.logger.Info("app: loading configuration")
	loadedCfg, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.loadedCfg = loadedCfg
	a.logger.Info("app: configuration loaded", "devices", len(loadedCfg.Devices))

	// ── 2. Metrics ──────────────────────────────────────────────────────
	if a.metrics, err = NewMetrics(a.cfg.Registry, "switchdiag"); err != nil {
		return fmt.Errorf("app: register metrics: %w", err)
	}
	sessionMetrics, err := session.NewMetrics(a.cfg.Registry, "switchdiag")
	if err != nil {
		return fmt.Errorf("app: register session metrics: %w", err)
	}
	a.metrics.Devices.Set(float64(len(loadedCfg.Devices)))

	// ── 3. Channels ─────────────────────────────────────────────────────
	a.reportCh = make(chan *diag.Report, a.cfg.BufferSize)
	a.formattedCh = make(chan []byte, a.cfg.BufferSize)

	// ── 4. Optional watcher and metrics server ──────────────────────────
	// Set up before any goroutine exists so a failure leaves nothing running.
	if a.cfg.WatchConfig {
		w, err := newWatcher(a.cfg.ConfigPaths, a.cfg.ReloadDelay, a.logger, a.reloadFromWatcher)
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
	}
	if a.cfg.MetricsAddr != "" {
		srv, err := startMetricsServer(a.cfg.MetricsAddr, a.cfg.Registry, a.logger)
		if err != nil {
			a.stopWatcher()
			return fmt.Errorf("app: metrics server: %w", err)
		}
		a.server = srv
	}

	// ── 5. Build components (transport → scheduler) ─────────────────────
	if a.cfg.DegradedWriter != nil {
		a.transport = filetransport.NewSplit(filetransport.SplitConfig{
			ReportWriter:   a.cfg.TransportWriter,
			DegradedWriter: a.cfg.DegradedWriter,
		}, a.logger)
	} else {
		a.transport = filetransport.New(filetransport.Config{
			Writer: a.cfg.TransportWriter,
		}, a.logger)
	}
	a.formatter = jsonformat.New(jsonformat.Config{PrettyPrint: a.cfg.PrettyPrint}, a.logger)

	poolOpts := a.cfg.PoolOptions
	poolOpts.SessionOptions = append(append([]session.Option(nil), poolOpts.SessionOptions...),
		session.WithLogger(a.logger),
		session.WithMetrics(sessionMetrics),
	)
	a.clientPool = poller.NewClientPool(poolOpts, a.logger)
	a.diagnoser = poller.NewSNMPDiagnoser(a.clientPool, a.logger, a.cfg.AltTransport)
	a.workerPool = poller.NewWorkerPool(a.cfg.Workers, a.diagnoser, a.reportCh, a.logger,
		poller.WithOutcomeHook(func(_ string, o poller.Outcome, r *diag.Report) {
			a.metrics.observeOutcome(o, r)
		}),
	)
	a.sched = scheduler.New(loadedCfg, a.workerPool, a.logger)

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// ── 6. Start stages (sink first, sources last) ──────────────────────
	a.startTransportStage()
	a.startFormatStage()
	a.workerPool.Start(pipeCtx)
	if a.watcher != nil {
		a.watcher.start(pipeCtx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Start(pipeCtx)
	}()

	a.logger.Info("app: pipeline running",
		"workers", a.cfg.Workers,
		"buffer_size", a.cfg.BufferSize,
		"entries", a.sched.Entries(),
		"watch_config", a.cfg.WatchConfig,
		"metrics_addr", a.cfg.MetricsAddr,
	)
	return nil
}

// Stop performs a graceful shutdown.
//
// Shutdown order:
//  1. Cancel the pipeline context and stop the config watcher.
//  2. Wait for the scheduler goroutine to exit.
//  3. Drain the worker pool (in-flight diagnoses finish or abort on ctx).
//  4. Close reportCh; the format and transport stages drain and exit.
//  5. Close the transport, the client pool and the metrics server.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	a.stopWatcher()
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.workerPool != nil {
		a.workerPool.Stop()
	}
	if a.reportCh != nil {
		close(a.reportCh)
	}
	a.wg.Wait()

	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.logger.Error("app: transport close error", "error", err.Error())
		}
	}
	if a.clientPool != nil {
		_ = a.clientPool.Close()
	}
	if a.server != nil {
		a.server.stop()
	}
	a.logger.Info("app: shutdown complete")
}

// Reload re-reads the inventory and hands it to the scheduler. New devices
// and devices whose settings changed are diagnosed immediately; removed
// devices stop. On error the running inventory is kept.
func (a *App) Reload() error {
	a.logger.Info("app: reloading configuration")
	newCfg, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		a.metrics.Reloads.WithLabelValues("failure").Inc()
		return fmt.Errorf("app: reload config: %w", err)
	}

	a.sched.Reload(newCfg)
	a.workerPool.PruneHealth(newCfg.Devices)
	a.loadedCfg = newCfg
	a.metrics.Devices.Set(float64(len(newCfg.Devices)))
	a.metrics.Reloads.WithLabelValues("success").Inc()

	a.logger.Info("app: configuration reloaded", "devices", len(newCfg.Devices))
	return nil
}

func (a *App) reloadFromWatcher() {
	if err := a.Reload(); err != nil {
		a.logger.Error("app: reload failed", "error", err.Error())
	}
}

func (a *App) stopWatcher() {
	if a.watcher != nil {
		a.watcher.stop()
		a.watcher = nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline stage goroutines
// ─────────────────────────────────────────────────────────────────────────────

// startFormatStage reads and formats reports.
// It closes formattedCh when reportCh is closed.
func (a *App) startFormatStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.formattedCh)

		for report := range a.reportCh {
			data, err := a.formatter.Format(report)
			if err != nil {
				a.logger.Warn("app: format error", "device", report.Host, "error", err.Error())
				continue
			}
			a.formattedCh <- data
		}
	}()
}

// startTransportStage writes formatted reports until formattedCh closes.
func (a *App) startTransportStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		for data := range a.formattedCh {
			if err := a.transport.Send(data); err != nil {
				a.logger.Error("app: transport send error", "error", err.Error(), "bytes", len(data))
			}
		}
	}()
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
