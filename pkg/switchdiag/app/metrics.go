package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collectors
// ─────────────────────────────────────────────────────────────────────────────

// Metrics holds the run-mode collectors.
type Metrics struct {
	Reports          *prometheus.CounterVec
	CategoryFailures *prometheus.CounterVec
	Duration         prometheus.Histogram
	Devices          prometheus.Gauge
	Reloads          *prometheus.CounterVec
}

// NewMetrics creates the run-mode collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Finished diagnoses by outcome (ok, degraded, unreachable, failed)",
		}, []string{"outcome"}),
		CategoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_failures_total",
			Help:      "Failed diagnostic categories by category and error kind",
		}, []string{"category", "kind"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diagnosis_duration_seconds",
			Help:      "Wall time of one full device diagnosis",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices in the loaded inventory",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Inventory reload attempts by result",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.Reports, m.CategoryFailures, m.Duration, m.Devices, m.Reloads} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observeOutcome records one finished job. r is nil when no report was
// produced.
func (m *Metrics) observeOutcome(o poller.Outcome, r *diag.Report) {
	m.Reports.WithLabelValues(o.String()).Inc()
	if r == nil {
		return
	}
	m.Duration.Observe((time.Duration(r.DurationMs) * time.Millisecond).Seconds())

	for _, c := range []struct {
		name string
		err  error
	}{
		{"sysinfo", r.SysInfo.Err},
		{"resources", r.Resources.Err},
		{"interfaces", r.Interfaces.Err},
		{"interface_stats", r.InterfaceStats.Err},
		{"stp", r.STP.Err},
		{"logs", r.Logs.Err},
	} {
		if c.err != nil {
			m.CategoryFailures.WithLabelValues(c.name, diag.ErrorKind(c.err)).Inc()
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP endpoint
// ─────────────────────────────────────────────────────────────────────────────

// metricsServer serves /metrics and /healthz.
type metricsServer struct {
	srv    *http.Server
	addr   net.Addr
	logger *slog.Logger
	wg     sync.WaitGroup
}

// startMetricsServer binds addr synchronously, so a port conflict is reported
// to the caller, then serves in the background.
func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s := &metricsServer{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:   ln.Addr(),
		logger: logger,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("app: metrics server error", "error", err.Error())
		}
	}()
	logger.Info("app: metrics server listening", "addr", s.addr.String())
	return s, nil
}

func (s *metricsServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("app: metrics server shutdown", "error", err.Error())
	}
	s.wg.Wait()
}
