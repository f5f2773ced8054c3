// Package session implements the SNMP protocol session: one remote endpoint,
// one engine goroutine that owns the transport, and asynchronous Fetch /
// Enumerate operations whose single result is delivered on a channel.
package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// Endpoint
// ─────────────────────────────────────────────────────────────────────────────

// Endpoint is the immutable description of one SNMP agent. It is copied into
// the Session at construction.
type Endpoint struct {
	Host               string
	Port               uint16
	Version            gosnmp.SnmpVersion
	Community          string
	Timeout            time.Duration
	Retries            int
	ExponentialTimeout bool

	// MaxRepetitions is the GETBULK max-repetitions used by v2c walks.
	MaxRepetitions uint32

	// RequestsPerSecond caps the exchange rate. Zero disables limiting.
	RequestsPerSecond float64
}

func (e *Endpoint) defaults() {
	if e.Port == 0 {
		e.Port = config.DefaultPort
	}
	if e.Community == "" {
		e.Community = config.DefaultCommunity
	}
	if e.Timeout <= 0 {
		e.Timeout = time.Duration(config.DefaultTimeout) * time.Millisecond
	}
	if e.MaxRepetitions == 0 {
		e.MaxRepetitions = config.DefaultMaxRepetitions
	}
}

func (e Endpoint) validate() error {
	if e.Host == "" {
		return fmt.Errorf("session: empty host")
	}
	if e.Version != gosnmp.Version1 && e.Version != gosnmp.Version2c {
		return fmt.Errorf("session: unsupported SNMP version %s", e.Version)
	}
	if e.Retries < 0 {
		return fmt.Errorf("session: negative retries %d", e.Retries)
	}
	return nil
}

// Target returns host:port.
func (e Endpoint) Target() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// EndpointFromDevice converts a resolved device configuration into an Endpoint.
func EndpointFromDevice(cfg config.DeviceConfig) (Endpoint, error) {
	ep := Endpoint{
		Host:               cfg.IP,
		Port:               uint16(cfg.Port),
		Community:          cfg.Community,
		Timeout:            time.Duration(cfg.Timeout) * time.Millisecond,
		Retries:            cfg.Retries,
		ExponentialTimeout: cfg.ExponentialTimeout,
		MaxRepetitions:     uint32(cfg.MaxRepetitions),
		RequestsPerSecond:  cfg.RequestsPerSecond,
	}
	v, err := ParseVersion(cfg.Version)
	if err != nil {
		return Endpoint{}, err
	}
	ep.Version = v
	return ep, nil
}

// ParseVersion maps the configuration spelling of an SNMP version to gosnmp.
func ParseVersion(s string) (gosnmp.SnmpVersion, error) {
	switch s {
	case "1", "v1":
		return gosnmp.Version1, nil
	case "2c", "v2c", "2", "":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported SNMP version %q", s)
	}
}
