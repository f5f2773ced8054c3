// Command switchdiag queries and diagnoses network switches over SNMP.
//
// One-off commands (get, walk, diagnose) print JSON to stdout. The run
// command diagnoses the whole inventory on a schedule until interrupted
// (SIGINT / SIGTERM), reloading it when the YAML files change.
//
// Usage:
//
//	switchdiag get HOST OID
//	switchdiag walk HOST ROOT
//	switchdiag diagnose [HOSTNAME...]
//	switchdiag run
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
)

var version = "dev"

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "switchdiag: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags and the state derived from them.
type rootOptions struct {
	logLevel    string
	logFmt      string
	cfgDevices  string
	cfgDefaults string

	logger *slog.Logger

	// dialer replaces the UDP dialer; nil outside tests.
	dialer session.Dialer
}

func newRootCmd(dialer session.Dialer) *cobra.Command {
	opts := &rootOptions{dialer: dialer}

	root := &cobra.Command{
		Use:     "switchdiag",
		Version: version,
		Short:   "SNMP switch diagnostics",
		Long: `switchdiag reads system information, resources, interfaces, traffic
counters, spanning tree state, logs and web UI reachability from network
switches over SNMP v1/v2c and reports them as JSON.`,
		Example: `  # Read sysName from a switch
  switchdiag get 10.0.0.1 1.3.6.1.2.1.1.5.0 --community private

  # Diagnose every device in the inventory
  switchdiag diagnose

  # Diagnose on a schedule with hot reload and Prometheus metrics
  switchdiag run --watch --metrics.addr :9116`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := buildLogger(opts.logLevel, opts.logFmt)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFmt, "log.fmt", "text", "Log format: json, text")
	pf.StringVar(&opts.cfgDevices, "config.devices", "", "Override SWITCHDIAG_DEVICE_DEFINITIONS_DIRECTORY_PATH")
	pf.StringVar(&opts.cfgDefaults, "config.defaults", "", "Override SWITCHDIAG_DEFAULTS_DIRECTORY_PATH")

	root.AddCommand(
		newGetCmd(opts),
		newWalkCmd(opts),
		newDiagnoseCmd(opts),
		newRunCmd(opts),
	)
	return root
}

// paths resolves the config directories from the environment and flags.
func (o *rootOptions) paths() config.Paths {
	p := config.PathsFromEnv()
	if o.cfgDevices != "" {
		p.Devices = o.cfgDevices
	}
	if o.cfgDefaults != "" {
		p.Defaults = o.cfgDefaults
	}
	return p
}

// sessionOptions returns the options every session opened by the CLI uses.
func (o *rootOptions) sessionOptions() []session.Option {
	opts := []session.Option{session.WithLogger(o.logger)}
	if o.dialer != nil {
		opts = append(opts, session.WithDialer(o.dialer))
	}
	return opts
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}
