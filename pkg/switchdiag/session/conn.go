package session

import (
	"context"
	"fmt"

	"github.com/gosnmp/gosnmp"
)

// Conn is a bound SNMP transport. Implementations need not be safe for
// concurrent use: a Session only touches its Conn from the engine goroutine.
type Conn interface {
	Get(ctx context.Context, oids []string) (*gosnmp.SnmpPacket, error)
	GetNext(ctx context.Context, oids []string) (*gosnmp.SnmpPacket, error)
	GetBulk(ctx context.Context, oids []string, maxRepetitions uint32) (*gosnmp.SnmpPacket, error)
	Close() error
}

// Dialer binds a Conn for an endpoint.
type Dialer func(Endpoint) (Conn, error)

// DialUDP creates and connects a gosnmp session for ep.
func DialUDP(ep Endpoint) (Conn, error) {
	g := &gosnmp.GoSNMP{
		Target:             ep.Host,
		Port:               ep.Port,
		Transport:          "udp",
		Community:          ep.Community,
		Version:            ep.Version,
		Timeout:            ep.Timeout,
		Retries:            ep.Retries,
		ExponentialTimeout: ep.ExponentialTimeout,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     ep.MaxRepetitions,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", ep.Target(), err)
	}
	return &gosnmpConn{g: g}, nil
}

// gosnmpConn adapts *gosnmp.GoSNMP to Conn. The context is installed on the
// handle before every exchange.
type gosnmpConn struct {
	g *gosnmp.GoSNMP
}

func (c *gosnmpConn) Get(ctx context.Context, oids []string) (*gosnmp.SnmpPacket, error) {
	c.g.Context = ctx
	return c.g.Get(oids)
}

func (c *gosnmpConn) GetNext(ctx context.Context, oids []string) (*gosnmp.SnmpPacket, error) {
	c.g.Context = ctx
	return c.g.GetNext(oids)
}

func (c *gosnmpConn) GetBulk(ctx context.Context, oids []string, maxRepetitions uint32) (*gosnmp.SnmpPacket, error) {
	c.g.Context = ctx
	return c.g.GetBulk(oids, 0, maxRepetitions)
}

func (c *gosnmpConn) Close() error {
	if c.g.Conn == nil {
		return nil
	}
	return c.g.Conn.Close()
}
