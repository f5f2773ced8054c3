// Package scheduler coordinates interval-based diagnosis dispatch. It turns
// the loaded device inventory into one DiagnoseJob per device, maintains a
// per-device timer, and fires jobs into the poller WorkerPool at the
// configured cadence.
package scheduler

import (
	"sort"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
)

// ResolveJobs returns one DiagnoseJob per configured device, sorted by
// hostname. The loader guarantees every device an address (the hostname when
// no ip is set), so no entry is dropped here.
func ResolveJobs(cfg *config.LoadedConfig) []poller.DiagnoseJob {
	if cfg == nil {
		return nil
	}

	// Sort hostnames for deterministic output (helps testing + debugging).
	hostnames := make([]string, 0, len(cfg.Devices))
	for h := range cfg.Devices {
		hostnames = append(hostnames, h)
	}
	sort.Strings(hostnames)

	jobs := make([]poller.DiagnoseJob, 0, len(hostnames))
	for _, hostname := range hostnames {
		jobs = append(jobs, poller.JobFor(hostname, cfg.Devices[hostname]))
	}
	return jobs
}
