// Package sessiontest provides an in-memory SNMP agent that satisfies
// session.Conn, for tests that need a device without a socket.
package sessiontest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/snmp/oid"
)

// Agent is a fake SNMP agent backed by a sorted OID table. The zero value is
// not usable; call NewAgent.
type Agent struct {
	// Version selects how missing objects are reported: v1 answers with a
	// noSuchName error-status, v2c with varbind exceptions.
	Version gosnmp.SnmpVersion

	mu   sync.Mutex
	oids []string
	vals map[string]gosnmp.SnmpPDU
	err  error

	dials    atomic.Int32
	closes   atomic.Int32
	requests atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

// NewAgent returns an empty v2c agent.
func NewAgent() *Agent {
	return &Agent{Version: gosnmp.Version2c, vals: make(map[string]gosnmp.SnmpPDU)}
}

// Set stores an object. Name may carry a leading dot.
func (a *Agent) Set(name string, t gosnmp.Asn1BER, v interface{}) *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	name = oid.Normalize(name)
	if _, ok := a.vals[name]; !ok {
		a.oids = append(a.oids, name)
		sort.Slice(a.oids, func(i, j int) bool { return oid.Compare(a.oids[i], a.oids[j]) < 0 })
	}
	a.vals[name] = gosnmp.SnmpPDU{Name: "." + name, Type: t, Value: v}
	return a
}

// SetString is shorthand for an OctetString object.
func (a *Agent) SetString(name, s string) *Agent {
	return a.Set(name, gosnmp.OctetString, []byte(s))
}

// SetInt is shorthand for an Integer object.
func (a *Agent) SetInt(name string, i int) *Agent {
	return a.Set(name, gosnmp.Integer, i)
}

// Fail makes every subsequent exchange return err. Pass nil to recover.
func (a *Agent) Fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

// Dialer returns a session.Dialer that binds to this agent.
func (a *Agent) Dialer() session.Dialer {
	return func(session.Endpoint) (session.Conn, error) {
		a.dials.Add(1)
		return a, nil
	}
}

// Dials returns how many times the agent was bound.
func (a *Agent) Dials() int { return int(a.dials.Load()) }

// Closes returns how many times Close was called.
func (a *Agent) Closes() int { return int(a.closes.Load()) }

// Requests returns the number of exchanges served.
func (a *Agent) Requests() int { return int(a.requests.Load()) }

// PeakInflight returns the highest number of exchanges observed in progress at
// the same time.
func (a *Agent) PeakInflight() int { return int(a.peak.Load()) }

// ─────────────────────────────────────────────────────────────────────────────
// session.Conn
// ─────────────────────────────────────────────────────────────────────────────

func (a *Agent) Get(ctx context.Context, oids []string) (*gosnmp.SnmpPacket, error) {
	defer a.enter()()
	if err := a.check(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	pkt := &gosnmp.SnmpPacket{Version: a.Version}
	for i, o := range oids {
		o = oid.Normalize(o)
		if pdu, ok := a.vals[o]; ok {
			pkt.Variables = append(pkt.Variables, pdu)
			continue
		}
		if a.Version == gosnmp.Version1 {
			return a.v1NoSuchName(oids, i), nil
		}
		pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + o, Type: gosnmp.NoSuchObject})
	}
	return pkt, nil
}

func (a *Agent) GetNext(ctx context.Context, oids []string) (*gosnmp.SnmpPacket, error) {
	defer a.enter()()
	if err := a.check(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	pkt := &gosnmp.SnmpPacket{Version: a.Version}
	for i, o := range oids {
		next, ok := a.next(o)
		if !ok {
			if a.Version == gosnmp.Version1 {
				return a.v1NoSuchName(oids, i), nil
			}
			pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + oid.Normalize(o), Type: gosnmp.EndOfMibView})
			continue
		}
		pkt.Variables = append(pkt.Variables, a.vals[next])
	}
	return pkt, nil
}

func (a *Agent) GetBulk(ctx context.Context, oids []string, maxRepetitions uint32) (*gosnmp.SnmpPacket, error) {
	defer a.enter()()
	if err := a.check(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	pkt := &gosnmp.SnmpPacket{Version: a.Version}
	for _, o := range oids {
		cursor := o
		for r := uint32(0); r < maxRepetitions; r++ {
			next, ok := a.next(cursor)
			if !ok {
				pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + oid.Normalize(cursor), Type: gosnmp.EndOfMibView})
				break
			}
			pkt.Variables = append(pkt.Variables, a.vals[next])
			cursor = next
		}
	}
	return pkt, nil
}

func (a *Agent) Close() error {
	a.closes.Add(1)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

// next returns the first stored OID strictly greater than o. Callers hold mu.
func (a *Agent) next(o string) (string, bool) {
	i := sort.Search(len(a.oids), func(i int) bool { return oid.Compare(a.oids[i], o) > 0 })
	if i == len(a.oids) {
		return "", false
	}
	return a.oids[i], true
}

func (a *Agent) v1NoSuchName(oids []string, i int) *gosnmp.SnmpPacket {
	pkt := &gosnmp.SnmpPacket{Version: a.Version, Error: gosnmp.NoSuchName, ErrorIndex: uint8(i + 1)}
	for _, o := range oids {
		pkt.Variables = append(pkt.Variables, gosnmp.SnmpPDU{Name: "." + oid.Normalize(o), Type: gosnmp.Null})
	}
	return pkt
}

func (a *Agent) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// enter tracks in-flight exchanges and returns the matching exit func.
func (a *Agent) enter() func() {
	a.requests.Add(1)
	n := a.inflight.Add(1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { a.inflight.Add(-1) }
}
