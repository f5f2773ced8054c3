package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
)

// ─────────────────────────────────────────────────────────────────────────────
// Outcome
// ─────────────────────────────────────────────────────────────────────────────

// Outcome classifies one finished diagnosis.
type Outcome int

const (
	// OutcomeOK means every category answered.
	OutcomeOK Outcome = iota + 1
	// OutcomeDegraded means the device answered but some categories failed.
	OutcomeDegraded
	// OutcomeUnreachable means the system group failed at the transport layer.
	OutcomeUnreachable
	// OutcomeFailed means no report was produced at all.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ClassifyReport returns the outcome of a produced report. A nil report is
// OutcomeFailed.
func ClassifyReport(r *diag.Report) Outcome {
	switch {
	case r == nil:
		return OutcomeFailed
	case r.Unreachable():
		return OutcomeUnreachable
	case r.Failures() > 0:
		return OutcomeDegraded
	default:
		return OutcomeOK
	}
}

// DeviceHealth is the latest outcome seen for one device.
type DeviceHealth struct {
	Outcome Outcome
	// Streak counts consecutive diagnoses that ended in Outcome.
	Streak int
	// Since is when the device entered Outcome.
	Since time.Time
}

// OutcomeHook is called from worker goroutines after every job. report is nil
// for OutcomeFailed.
type OutcomeHook func(hostname string, o Outcome, report *diag.Report)

// WorkerOption configures a WorkerPool.
type WorkerOption func(*WorkerPool)

// WithOutcomeHook registers fn to observe every finished job.
func WithOutcomeHook(fn OutcomeHook) WorkerOption {
	return func(w *WorkerPool) { w.onOutcome = fn }
}

// ─────────────────────────────────────────────────────────────────────────────
// WorkerPool: fan-out dispatcher for DiagnoseJobs
// ─────────────────────────────────────────────────────────────────────────────

// WorkerPool fans diagnosis jobs out to N worker goroutines and collects the
// reports into a shared output channel. It remembers the last outcome of each
// device so that state changes are logged once rather than on every interval.
type WorkerPool struct {
	numWorkers int
	diagnoser  Diagnoser
	output     chan<- *diag.Report
	logger     *slog.Logger
	onOutcome  OutcomeHook
	now        func() time.Time

	jobs chan DiagnoseJob
	wg   sync.WaitGroup

	mu     sync.Mutex
	health map[string]DeviceHealth
}

// NewWorkerPool creates a pool of numWorkers goroutines that execute jobs
// using the supplied Diagnoser and send reports to output.
func NewWorkerPool(numWorkers int, d Diagnoser, output chan<- *diag.Report, logger *slog.Logger, opts ...WorkerOption) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 16
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	w := &WorkerPool{
		numWorkers: numWorkers,
		diagnoser:  d,
		output:     output,
		logger:     logger,
		now:        time.Now,
		jobs:       make(chan DiagnoseJob, numWorkers*2),
		health:     make(map[string]DeviceHealth),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (w *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
}

// Submit enqueues a job. It blocks if the internal job channel is full.
func (w *WorkerPool) Submit(job DiagnoseJob) {
	w.jobs <- job
}

// TrySubmit enqueues a job without blocking. Returns false if the channel is
// full, allowing the caller to drop or defer the job.
func (w *WorkerPool) TrySubmit(job DiagnoseJob) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the job channel and waits for all workers to drain.
func (w *WorkerPool) Stop() {
	close(w.jobs)
	w.wg.Wait()
}

// Health returns the last recorded outcome for hostname.
func (w *WorkerPool) Health(hostname string) (DeviceHealth, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, ok := w.health[hostname]
	return h, ok
}

// PruneHealth drops the history of devices absent from devices and returns
// how many were dropped. A device that is removed and later re-added starts
// with no history.
func (w *WorkerPool) PruneHealth(devices map[string]config.DeviceConfig) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for h := range w.health {
		if _, ok := devices[h]; !ok {
			delete(w.health, h)
			n++
		}
	}
	return n
}

func (w *WorkerPool) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			report, err := w.diagnoser.Diagnose(ctx, job)
			if err != nil {
				w.record(job.Hostname, OutcomeFailed, err)
				if w.onOutcome != nil {
					w.onOutcome(job.Hostname, OutcomeFailed, nil)
				}
				continue
			}
			outcome := ClassifyReport(report)
			w.record(job.Hostname, outcome, nil)
			if w.onOutcome != nil {
				w.onOutcome(job.Hostname, outcome, report)
			}
			select {
			case w.output <- report:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// record updates the device's health and logs at Warn or Info only when the
// outcome differs from the previous one. Repeats are logged at Debug.
func (w *WorkerPool) record(hostname string, o Outcome, diagErr error) {
	now := w.now()

	w.mu.Lock()
	prev, seen := w.health[hostname]
	cur := DeviceHealth{Outcome: o, Streak: 1, Since: now}
	if seen && prev.Outcome == o {
		cur = prev
		cur.Streak++
	}
	w.health[hostname] = cur
	w.mu.Unlock()

	attrs := []any{"device", hostname, "outcome", o.String()}
	if diagErr != nil {
		attrs = append(attrs, "error", diagErr.Error())
	}

	switch {
	case seen && prev.Outcome == o:
		w.logger.Debug("worker: outcome unchanged", append(attrs, "streak", cur.Streak)...)
	case !seen && o == OutcomeOK:
		w.logger.Debug("worker: device healthy", attrs...)
	case o == OutcomeOK:
		w.logger.Info("worker: device recovered", append(attrs,
			"previous", prev.Outcome.String(),
			"previous_streak", prev.Streak,
			"down_for", now.Sub(prev.Since).String(),
		)...)
	case seen:
		w.logger.Warn("worker: device state changed", append(attrs, "previous", prev.Outcome.String())...)
	default:
		w.logger.Warn("worker: device not healthy", attrs...)
	}
}
