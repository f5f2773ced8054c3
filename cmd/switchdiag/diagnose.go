package main

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	jsonformat "github.com/vpbank/switchdiag/format/json"
	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
	"github.com/vpbank/switchdiag/pkg/switchdiag/scheduler"
	filetransport "github.com/vpbank/switchdiag/transport/file"
)

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	var (
		ep          endpointFlags
		host        string
		vendor      string
		webURL      string
		concurrency int
		pretty      bool
	)
	cmd := &cobra.Command{
		Use:   "diagnose [HOSTNAME...]",
		Short: "Diagnose switches once and print one JSON report per line",
		Long: `Diagnose the named inventory devices, every inventory device when no
name is given, or a single ad-hoc target with --host.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []poller.DiagnoseJob
			if host != "" {
				if len(args) > 0 {
					return fmt.Errorf("--host cannot be combined with inventory hostnames")
				}
				cfg := ep.device(host)
				cfg.Vendor = vendor
				cfg.WebURL = webURL
				jobs = []poller.DiagnoseJob{poller.JobFor(host, cfg)}
			} else {
				loaded, err := config.Load(opts.paths(), opts.logger)
				if err != nil {
					return err
				}
				if jobs, err = selectJobs(loaded, args, opts); err != nil {
					return err
				}
			}
			if len(jobs) == 0 {
				return fmt.Errorf("no devices to diagnose")
			}
			if concurrency < 1 {
				concurrency = 1
			}

			pool := poller.NewClientPool(poller.PoolOptions{SessionOptions: opts.sessionOptions()}, opts.logger)
			defer pool.Close()
			diagnoser := poller.NewSNMPDiagnoser(pool, opts.logger, nil)
			formatter := jsonformat.New(jsonformat.Config{PrettyPrint: pretty}, opts.logger)
			out := filetransport.New(filetransport.Config{Writer: cmd.OutOrStdout()}, opts.logger)
			defer out.Close()

			var failed atomic.Int32
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for _, job := range jobs {
				g.Go(func() error {
					report, err := diagnoser.Diagnose(ctx, job)
					if err != nil {
						opts.logger.Error("diagnose failed", "device", job.Hostname, "error", err.Error())
						failed.Add(1)
						return nil
					}
					data, err := formatter.Format(report)
					if err != nil {
						return err
					}
					return out.Send(data)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if n := failed.Load(); n > 0 {
				return fmt.Errorf("%d of %d device(s) could not be diagnosed", n, len(jobs))
			}
			return nil
		},
	}
	ep.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&host, "host", "", "Diagnose this address instead of inventory devices")
	fl.StringVar(&vendor, "vendor", "", "Vendor label for --host")
	fl.StringVar(&webURL, "web-url", "", "Web UI base URL for --host")
	fl.IntVar(&concurrency, "concurrency", 8, "Devices diagnosed in parallel")
	fl.BoolVar(&pretty, "pretty", false, "Pretty-print JSON reports")
	return cmd
}

// selectJobs returns jobs for the named inventory devices, or for all of them
// when names is empty.
func selectJobs(cfg *config.LoadedConfig, names []string, opts *rootOptions) ([]poller.DiagnoseJob, error) {
	if len(names) == 0 {
		return scheduler.ResolveJobs(cfg), nil
	}
	names = append([]string(nil), names...)
	sort.Strings(names)
	jobs := make([]poller.DiagnoseJob, 0, len(names))
	for _, name := range names {
		dc, ok := cfg.Devices[name]
		if !ok {
			return nil, fmt.Errorf("device %q not found in inventory", name)
		}
		jobs = append(jobs, poller.JobFor(name, dc))
	}
	return jobs, nil
}
