package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by sessions. A nil *Metrics
// is valid and records nothing, so one instance can be shared by every session
// in the process.
type Metrics struct {
	Exchanges *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
}

// NewMetrics creates the session collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snmp",
			Name:      "exchanges_total",
			Help:      "Total number of SNMP request/response exchanges by PDU type",
		}, []string{"op"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snmp",
			Name:      "failures_total",
			Help:      "Total number of failed session operations by error kind",
		}, []string{"kind"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snmp",
			Name:      "exchange_duration_seconds",
			Help:      "Time spent in one SNMP exchange, retries included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{m.Exchanges, m.Failures, m.Latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeExchange(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(op).Inc()
	m.Latency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeFailure(k Kind) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(k.String()).Inc()
}
