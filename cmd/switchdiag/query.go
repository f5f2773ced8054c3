package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
	"github.com/vpbank/switchdiag/snmp/value"
)

// endpointFlags override the hard-coded fallbacks for ad-hoc targets.
type endpointFlags struct {
	port           int
	version        string
	community      string
	timeoutMs      int
	retries        int
	maxRepetitions int
}

func (f *endpointFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVar(&f.port, "port", config.DefaultPort, "SNMP UDP port")
	fl.StringVar(&f.version, "version", config.DefaultVersion, "SNMP version: 1, 2c")
	fl.StringVar(&f.community, "community", config.DefaultCommunity, "Community string")
	fl.IntVar(&f.timeoutMs, "timeout", config.DefaultTimeout, "Per-exchange timeout in milliseconds")
	fl.IntVar(&f.retries, "retries", config.DefaultRetries, "Retries per exchange")
	fl.IntVar(&f.maxRepetitions, "max-repetitions", config.DefaultMaxRepetitions, "GETBULK max-repetitions (v2c walks)")
}

func (f *endpointFlags) device(host string) config.DeviceConfig {
	cfg := config.AdHoc(host)
	cfg.Port = f.port
	cfg.Version = f.version
	cfg.Community = f.community
	cfg.Timeout = f.timeoutMs
	cfg.Retries = f.retries
	cfg.MaxRepetitions = f.maxRepetitions
	return cfg
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var ep endpointFlags
	cmd := &cobra.Command{
		Use:   "get HOST OID",
		Short: "Fetch one scalar value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := poller.NewClient(ep.device(args[0]), opts.sessionOptions()...)
			if err != nil {
				return err
			}
			defer client.Close()

			v, err := client.Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				OID   string      `json:"oid"`
				Value value.Value `json:"value"`
			}{args[1], v})
		},
	}
	ep.register(cmd)
	return cmd
}

func newWalkCmd(opts *rootOptions) *cobra.Command {
	var ep endpointFlags
	cmd := &cobra.Command{
		Use:   "walk HOST ROOT",
		Short: "Enumerate every value under a subtree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := poller.NewClient(ep.device(args[0]), opts.sessionOptions()...)
			if err != nil {
				return err
			}
			defer client.Close()

			enum, err := client.Walk(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			opts.logger.Debug("walk complete", "target", client.Target(), "root", args[1], "values", enum.Len())
			return writeJSON(cmd.OutOrStdout(), enum)
		},
	}
	ep.register(cmd)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
