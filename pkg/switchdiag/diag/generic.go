package diag

import (
	"context"
	"fmt"

	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/pkg/switchdiag/table"
	"github.com/vpbank/switchdiag/snmp/oid"
	"github.com/vpbank/switchdiag/snmp/value"
)

// Querier is the query façade as seen by GenericSwitch.
type Querier interface {
	Get(ctx context.Context, oid string) (value.Value, error)
	Walk(ctx context.Context, root string) (*value.Enumeration, error)
	SysObjectID(ctx context.Context) (string, error)
}

// SwitchOption configures a GenericSwitch.
type SwitchOption func(*GenericSwitch)

// WithVendor sets the vendor label reported for the switch.
func WithVendor(v string) SwitchOption {
	return func(s *GenericSwitch) { s.vendor = v }
}

// WithWebURL enables the web UI check against baseURL.
func WithWebURL(baseURL string) SwitchOption {
	return func(s *GenericSwitch) { s.webURL = baseURL }
}

// WithAltTransport sets the collector used for logs and the web UI check.
func WithAltTransport(t AltTransport) SwitchOption {
	return func(s *GenericSwitch) {
		if t != nil {
			s.alt = t
		}
	}
}

// GenericSwitch implements Switch with standard MIBs only (SNMPv2-MIB,
// IF-MIB, HOST-RESOURCES-MIB, BRIDGE-MIB).
type GenericSwitch struct {
	host   string
	vendor string
	webURL string
	q      Querier
	alt    AltTransport
}

// NewGenericSwitch returns a Switch for host backed by q.
func NewGenericSwitch(host string, q Querier, opts ...SwitchOption) *GenericSwitch {
	s := &GenericSwitch{host: host, q: q, alt: Unsupported{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GenericSwitch) Host() string   { return s.host }
func (s *GenericSwitch) Vendor() string { return s.vendor }

// SysInfo reads the system group. Name, description, uptime and sysObjectID
// are required; contact and location fall back to Absent when the agent does
// not have them.
func (s *GenericSwitch) SysInfo(ctx context.Context) (*SysInfo, error) {
	var (
		info SysInfo
		err  error
	)
	if info.Name, err = s.q.Get(ctx, oidSysName); err != nil {
		return nil, err
	}
	if info.Descr, err = s.q.Get(ctx, oidSysDescr); err != nil {
		return nil, err
	}
	if info.Uptime, err = s.q.Get(ctx, oidSysUpTime); err != nil {
		return nil, err
	}
	if info.SysObjectID, err = s.q.SysObjectID(ctx); err != nil {
		return nil, err
	}
	if info.Contact, err = s.optionalGet(ctx, oidSysContact); err != nil {
		return nil, err
	}
	if info.Location, err = s.optionalGet(ctx, oidSysLocation); err != nil {
		return nil, err
	}
	return &info, nil
}

// Resources reads hrProcessorLoad and hrMemorySize. An agent without
// HOST-RESOURCES-MIB yields Available=false rather than an error.
func (s *GenericSwitch) Resources(ctx context.Context) (*Resources, error) {
	res := &Resources{}

	cpu, err := s.q.Walk(ctx, oidHrProcessorLoad)
	switch {
	case session.IsApplication(err):
		cpu = nil
	case err != nil:
		return nil, err
	}

	var sum float64
	for name, v := range cpu.All() {
		idx := oid.Suffix(name, oidHrProcessorLoad)
		res.CPU = append(res.CPU, ProcessorLoad{Index: idx, Percent: v})
		if n, ok := v.Int64(); ok {
			sum += float64(n)
		}
	}
	if len(res.CPU) > 0 {
		avg := sum / float64(len(res.CPU))
		res.CPUAverage = &avg
	}

	if res.MemorySizeKB, err = s.optionalGet(ctx, oidHrMemorySize); err != nil {
		return nil, err
	}

	res.Available = len(res.CPU) > 0 || !res.MemorySizeKB.IsAbsent()
	return res, nil
}

// Interfaces returns the IF-MIB interface table keyed by ifIndex.
func (s *GenericSwitch) Interfaces(ctx context.Context) (*table.Table, error) {
	return table.Collect(ctx, s.q, table.InterfacePrimary, table.InterfaceColumns...)
}

// InterfaceStats returns the IF-MIB counters keyed by ifIndex.
func (s *GenericSwitch) InterfaceStats(ctx context.Context) (*table.Table, error) {
	return table.Collect(ctx, s.q, table.InterfaceStatPrimary, table.InterfaceStatColumns...)
}

// STPStatus reads the spanning-tree summary. Root bridge and priority are
// required; the remaining scalars and the port table are best effort.
func (s *GenericSwitch) STPStatus(ctx context.Context) (*STPStatus, error) {
	var (
		st  STPStatus
		err error
	)
	if st.RootBridge, err = s.q.Get(ctx, oidStpDesignatedRoot); err != nil {
		return nil, err
	}
	if st.Priority, err = s.q.Get(ctx, oidStpPriority); err != nil {
		return nil, err
	}

	optional := []struct {
		dst *value.Value
		oid string
	}{
		{&st.TopologyChanges, oidStpTopChanges},
		{&st.TimeSinceTopologyChange, oidStpTimeSinceTopoChange},
		{&st.RootCost, oidStpRootCost},
		{&st.RootPort, oidStpRootPort},
	}
	for _, o := range optional {
		if *o.dst, err = s.optionalGet(ctx, o.oid); err != nil {
			return nil, err
		}
	}

	ports, err := table.Collect(ctx, s.q,
		table.Column{Field: "state", Root: oidStpPortState},
		table.Column{Field: "enable", Root: oidStpPortEnable},
		table.Column{Field: "path_cost", Root: oidStpPortPathCost},
	)
	switch {
	case session.IsApplication(err):
		// No dot1dStpPortTable on this agent.
	case err != nil:
		return nil, err
	case ports.Len() > 0:
		st.Ports = ports
	}
	return &st, nil
}

// LogSummary is delegated to the alternate transport.
func (s *GenericSwitch) LogSummary(ctx context.Context, limit int) (*LogSummary, error) {
	ls, err := s.alt.LogSummary(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("log summary: %w", err)
	}
	return ls, nil
}

// WebUICheck checks the configured web UI, if any.
func (s *GenericSwitch) WebUICheck(ctx context.Context) WebUIStatus {
	return CheckWebUI(ctx, s.webURL, s.alt)
}

// optionalGet turns an application error (the agent does not have the
// object) into Absent. Transport errors are returned.
func (s *GenericSwitch) optionalGet(ctx context.Context, o string) (value.Value, error) {
	v, err := s.q.Get(ctx, o)
	if session.IsApplication(err) {
		return value.Absent, nil
	}
	return v, err
}
