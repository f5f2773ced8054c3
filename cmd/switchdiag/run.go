package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpbank/switchdiag/pkg/switchdiag/app"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	filetransport "github.com/vpbank/switchdiag/transport/file"
)

type runFlags struct {
	workers     int
	bufSize     int
	pretty      bool
	watch       bool
	reloadDelay time.Duration
	metricsAddr string

	poolMaxIdle int
	poolIdle    time.Duration

	outFile       string
	degradedFile  string
	fileMaxBytes  int64
	fileMaxBackup int
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Diagnose the inventory on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runApp(ctx, opts, f)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.workers, "workers", 16, "Devices diagnosed concurrently")
	fl.IntVar(&f.bufSize, "pipeline.buffer.size", 256, "Inter-stage channel buffer size")
	fl.BoolVar(&f.pretty, "format.pretty", false, "Pretty-print JSON reports")
	fl.BoolVar(&f.watch, "watch", false, "Reload the inventory when its YAML files change")
	fl.DurationVar(&f.reloadDelay, "watch.delay", 2*time.Second, "Debounce delay for inventory reloads")
	fl.StringVar(&f.metricsAddr, "metrics.addr", "", "Listen address for /metrics (empty disables)")
	fl.IntVar(&f.poolMaxIdle, "snmp.pool.max.idle", 2, "Max idle sessions kept per device")
	fl.DurationVar(&f.poolIdle, "snmp.pool.idle.timeout", 30*time.Second, "Idle session timeout")
	fl.StringVar(&f.outFile, "output.file", "", "Write reports to this file instead of stdout")
	fl.StringVar(&f.degradedFile, "output.degraded", "", "Write reports with failed categories to this file")
	fl.Int64Var(&f.fileMaxBytes, "output.max.bytes", 0, "Rotate output files beyond this size (0 disables)")
	fl.IntVar(&f.fileMaxBackup, "output.max.backups", 5, "Rotated files to keep (0 keeps all)")
	return cmd
}

func runApp(ctx context.Context, opts *rootOptions, f runFlags) error {
	reports, err := openOutput(f.outFile, f, opts)
	if err != nil {
		return err
	}
	degraded, err := openOutput(f.degradedFile, f, opts)
	if err != nil {
		closeWriter(reports)
		return err
	}

	var sessOpts []session.Option
	if opts.dialer != nil {
		sessOpts = append(sessOpts, session.WithDialer(opts.dialer))
	}

	application := app.New(app.Config{
		ConfigPaths:     opts.paths(),
		Workers:         f.workers,
		BufferSize:      f.bufSize,
		PrettyPrint:     f.pretty,
		TransportWriter: reports,
		DegradedWriter:  degraded,
		WatchConfig:     f.watch,
		ReloadDelay:     f.reloadDelay,
		MetricsAddr:     f.metricsAddr,
		PoolOptions: poller.PoolOptions{
			MaxIdlePerDevice: f.poolMaxIdle,
			IdleTimeout:      f.poolIdle,
			SessionOptions:   sessOpts,
		},
	}, opts.logger)

	if err := application.Start(ctx); err != nil {
		application.Stop()
		closeWriter(reports)
		closeWriter(degraded)
		return fmt.Errorf("start: %w", err)
	}
	opts.logger.Info("switchdiag: running, press Ctrl-C to stop")

	<-ctx.Done()
	opts.logger.Info("switchdiag: received shutdown signal")

	application.Stop()
	return nil
}

// openOutput returns nil for an empty path so the app falls back to its
// default writer.
func openOutput(path string, f runFlags, opts *rootOptions) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}
	rf, err := filetransport.NewRotatingFile(filetransport.RotateConfig{
		FilePath:   path,
		MaxBytes:   f.fileMaxBytes,
		MaxBackups: f.fileMaxBackup,
	}, opts.logger)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return rf, nil
}

func closeWriter(w io.Writer) {
	if c, ok := w.(io.Closer); ok {
		_ = c.Close()
	}
}
