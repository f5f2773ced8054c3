package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// JobSubmitter
// ─────────────────────────────────────────────────────────────────────────────

// JobSubmitter is the subset of poller.WorkerPool consumed by the scheduler.
type JobSubmitter interface {
	Submit(poller.DiagnoseJob)
	TrySubmit(poller.DiagnoseJob) bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// entry tracks the next-fire time for a single device and its job.
type entry struct {
	hostname string
	interval time.Duration
	nextRun  time.Time
	job      poller.DiagnoseJob
}

// Scheduler dispatches DiagnoseJob values into a JobSubmitter at each
// device's configured PollInterval.
type Scheduler struct {
	pool   JobSubmitter
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry

	wake chan struct{} // Reload → Start: re-evaluate the next run
	done chan struct{}
}

// New creates a Scheduler. The scheduler does NOT start automatically; call
// Start to begin dispatching.
func New(cfg *config.LoadedConfig, pool JobSubmitter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	s := &Scheduler{
		pool:   pool,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.entries = s.buildEntries(cfg, nil)
	return s
}

// Start runs the scheduling loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			// Nothing to schedule: wait for cancellation or a Reload.
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}

		sort.Slice(s.entries, func(i, j int) bool {
			return s.entries[i].nextRun.Before(s.entries[j].nextRun)
		})
		next := s.entries[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		now := time.Now()
		s.mu.Lock()
		for i := range s.entries {
			if s.entries[i].nextRun.After(now) {
				break
			}
			s.fireEntry(&s.entries[i])
			s.entries[i].nextRun = now.Add(s.entries[i].interval)
		}
		s.mu.Unlock()
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.done
}

// Reload atomically replaces the running inventory. New devices and devices
// whose configuration changed are diagnosed immediately; unchanged devices
// keep their schedule; removed devices stop.
func (s *Scheduler) Reload(cfg *config.LoadedConfig) {
	s.mu.Lock()
	s.entries = s.buildEntries(cfg, s.entries)
	n := len(s.entries)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.logger.Info("scheduler: config reloaded", "devices", n)
}

// Entries returns the number of active entries (for monitoring / tests).
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// buildEntries creates one entry per device. Entries in prev whose device
// configuration is unchanged carry their nextRun over.
func (s *Scheduler) buildEntries(cfg *config.LoadedConfig, prev []entry) []entry {
	previous := make(map[string]entry, len(prev))
	for _, e := range prev {
		previous[e.hostname] = e
	}

	now := time.Now()
	jobs := ResolveJobs(cfg)
	entries := make([]entry, 0, len(jobs))
	for _, job := range jobs {
		interval := time.Duration(job.DeviceConfig.PollInterval) * time.Second
		if interval <= 0 {
			interval = config.DefaultPollInterval * time.Second
		}
		e := entry{
			hostname: job.Hostname,
			interval: interval,
			nextRun:  now,
			job:      job,
		}
		if old, ok := previous[job.Hostname]; ok && old.job.DeviceConfig == job.DeviceConfig {
			e.nextRun = old.nextRun
		}
		entries = append(entries, e)
	}
	return entries
}

// fireEntry dispatches the entry's job using TrySubmit (non-blocking).
func (s *Scheduler) fireEntry(e *entry) {
	if !s.pool.TrySubmit(e.job) {
		s.logger.Warn("scheduler: job queue full, dropping job", "hostname", e.hostname)
		return
	}
	s.logger.Debug("scheduler: fired job", "hostname", e.hostname)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
