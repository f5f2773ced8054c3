// Package config provides YAML configuration loading for switchdiag.
//
// It reads two directory trees (driven by environment variables) and produces
// a LoadedConfig value that is used by the rest of the application.
//
//	SWITCHDIAG_DEVICE_DEFINITIONS_DIRECTORY_PATH → Devices map
//	SWITCHDIAG_DEFAULTS_DIRECTORY_PATH           → DeviceDefaults
package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Hard-coded fallbacks used when neither the device entry nor the defaults
// directory sets a field.
const (
	DefaultPort               = 161
	DefaultVersion            = "2c"
	DefaultCommunity          = "public"
	DefaultTimeout            = 1000
	DefaultRetries            = 2
	DefaultMaxRepetitions     = 10
	DefaultPollInterval       = 300
	DefaultMaxConcurrentPolls = 1
	DefaultLogLimit           = 50
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory locations for every configuration tree.
type Paths struct {
	Devices  string // SWITCHDIAG_DEVICE_DEFINITIONS_DIRECTORY_PATH
	Defaults string // SWITCHDIAG_DEFAULTS_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back to
// the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Devices:  envOr("SWITCHDIAG_DEVICE_DEFINITIONS_DIRECTORY_PATH", "/etc/switchdiag/devices"),
		Defaults: envOr("SWITCHDIAG_DEFAULTS_DIRECTORY_PATH", "/etc/switchdiag/defaults"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig is the fully parsed representation of all configuration trees.
type LoadedConfig struct {
	// Devices maps hostname → resolved DeviceConfig (defaults merged in).
	Devices map[string]DeviceConfig

	// DeviceDefault is the merged global device default.
	DeviceDefault DeviceDefaults
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads all configuration directories specified by paths and returns a
// fully resolved LoadedConfig. Errors from individual sections are accumulated
// and returned together so that operators see all problems at once.
//
// If a directory does not exist, that section is skipped silently.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	var errs []string

	// 1. Device defaults —————————————————————————————————————————————————————
	defaults, err := loadDeviceDefaults(paths.Defaults, logger)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// 2. Devices —————————————————————————————————————————————————————————————
	devices, err := loadDevices(paths.Devices, defaults, logger)
	if err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
	}

	return &LoadedConfig{
		Devices:       devices,
		DeviceDefault: defaults,
	}, nil
}

// AdHoc returns a DeviceConfig for ip with every field at its hard-coded
// fallback. The CLI uses it for one-off get/walk/diagnose invocations.
func AdHoc(ip string) DeviceConfig {
	return resolveDevice(rawDeviceEntry{IP: ip}, DeviceDefaults{})
}

// ─────────────────────────────────────────────────────────────────────────────
// Device defaults
// ─────────────────────────────────────────────────────────────────────────────

type rawDefaults struct {
	Default rawDeviceEntry `yaml:"default"`
}

func loadDeviceDefaults(dir string, logger *slog.Logger) (DeviceDefaults, error) {
	var zero DeviceDefaults
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, fmt.Errorf("list defaults dir %q: %w", dir, err)
	}

	var merged DeviceDefaults
	for _, path := range files {
		var raw rawDefaults
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed defaults file", "file", path, "error", err.Error())
			continue
		}
		merged = mergeDefaults(merged, raw.Default)
		logger.Debug("config: loaded device defaults", "file", path)
	}
	return merged, nil
}

// mergeDefaults fills unset fields in dst with values from src.
func mergeDefaults(dst DeviceDefaults, src rawDeviceEntry) DeviceDefaults {
	if dst.Port == 0 && src.Port != 0 {
		dst.Port = src.Port
	}
	if dst.Version == "" && src.Version != "" {
		dst.Version = src.Version
	}
	if dst.Community == "" && src.Community != "" {
		dst.Community = src.Community
	}
	if dst.Timeout == 0 && src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if dst.Retries == nil && src.Retries != nil {
		dst.Retries = src.Retries
	}
	if dst.ExponentialTimeout == nil && src.ExponentialTimeout != nil {
		dst.ExponentialTimeout = src.ExponentialTimeout
	}
	if dst.MaxRepetitions == 0 && src.MaxRepetitions != 0 {
		dst.MaxRepetitions = src.MaxRepetitions
	}
	if dst.PollInterval == 0 && src.PollInterval != 0 {
		dst.PollInterval = src.PollInterval
	}
	if dst.MaxConcurrentPolls == 0 && src.MaxConcurrentPolls != 0 {
		dst.MaxConcurrentPolls = src.MaxConcurrentPolls
	}
	if dst.RequestsPerSecond == 0 && src.RequestsPerSecond != 0 {
		dst.RequestsPerSecond = src.RequestsPerSecond
	}
	if dst.LogLimit == 0 && src.LogLimit != 0 {
		dst.LogLimit = src.LogLimit
	}
	return dst
}

// ─────────────────────────────────────────────────────────────────────────────
// Devices
// ─────────────────────────────────────────────────────────────────────────────

func loadDevices(dir string, defaults DeviceDefaults, logger *slog.Logger) (map[string]DeviceConfig, error) {
	result := make(map[string]DeviceConfig)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("list devices dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw map[string]rawDeviceEntry
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed device file", "file", path, "error", err.Error())
			continue
		}
		for hostname, entry := range raw {
			if entry.IP == "" {
				entry.IP = hostname
			}
			if !supportedVersion(entry.Version) {
				logger.Warn("config: skip device with unsupported SNMP version",
					"file", path, "device", hostname, "version", entry.Version)
				continue
			}
			result[hostname] = resolveDevice(entry, defaults)
		}
		logger.Debug("config: loaded device file", "file", path, "count", len(raw))
	}
	return result, nil
}

func supportedVersion(v string) bool {
	return v == "" || v == "1" || v == "2c"
}

// resolveDevice merges a raw device entry with defaults, producing a
// fully-resolved DeviceConfig.
func resolveDevice(e rawDeviceEntry, d DeviceDefaults) DeviceConfig {
	return DeviceConfig{
		IP:                 e.IP,
		Port:               firstInt(e.Port, d.Port, DefaultPort),
		Version:            firstString(e.Version, d.Version, DefaultVersion),
		Community:          firstString(e.Community, d.Community, DefaultCommunity),
		Timeout:            firstInt(e.Timeout, d.Timeout, DefaultTimeout),
		Retries:            firstSet(DefaultRetries, e.Retries, d.Retries),
		ExponentialTimeout: firstSet(false, e.ExponentialTimeout, d.ExponentialTimeout),
		MaxRepetitions:     firstInt(e.MaxRepetitions, d.MaxRepetitions, DefaultMaxRepetitions),
		PollInterval:       firstInt(e.PollInterval, d.PollInterval, DefaultPollInterval),
		MaxConcurrentPolls: firstInt(e.MaxConcurrentPolls, d.MaxConcurrentPolls, DefaultMaxConcurrentPolls),
		RequestsPerSecond:  firstFloat(e.RequestsPerSecond, d.RequestsPerSecond),
		Vendor:             e.Vendor,
		WebURL:             e.WebURL,
		LogLimit:           firstInt(e.LogLimit, d.LogLimit, DefaultLogLimit),
	}
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// firstSet returns the first non-nil value, or fallback when all are nil.
func firstSet[T any](fallback T, vals ...*T) T {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return fallback
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals the YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // unknown keys are ignored
	return dec.Decode(out)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
