// Package query is the blocking façade over a protocol session. Each Client
// method drives exactly one session operation to completion and returns its
// result, so callers never see the engine's channels.
package query

import (
	"context"
	"sync"

	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/snmp/value"
)

// SysObjectIDOID is SNMPv2-MIB::sysObjectID.0.
const SysObjectIDOID = "1.3.6.1.2.1.1.2.0"

// Client issues Get and Walk requests against one endpoint. Calls on the same
// Client are serialised.
type Client struct {
	mu   sync.Mutex
	sess *session.Session
}

// NewClient opens a session for ep and wraps it.
func NewClient(ep session.Endpoint, opts ...session.Option) (*Client, error) {
	s, err := session.New(ep, opts...)
	if err != nil {
		return nil, err
	}
	return FromSession(s), nil
}

// FromSession wraps an existing session. The Client takes ownership: Close
// closes the session.
func FromSession(s *session.Session) *Client {
	return &Client{sess: s}
}

// Target returns the endpoint host:port.
func (c *Client) Target() string { return c.sess.Endpoint().Target() }

// Get fetches a single scalar. Errors are *session.ProtocolError values,
// returned unchanged.
func (c *Client) Get(ctx context.Context, oid string) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := <-c.sess.Fetch(ctx, oid)
	return res.Value, res.Err
}

// Walk enumerates the subtree under root in agent order.
func (c *Client) Walk(ctx context.Context, root string) (*value.Enumeration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := <-c.sess.Enumerate(ctx, root)
	return res.Values, res.Err
}

// SysObjectID returns the textual sysObjectID of the device.
func (c *Client) SysObjectID(ctx context.Context) (string, error) {
	v, err := c.Get(ctx, SysObjectIDOID)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Close releases the underlying session.
func (c *Client) Close() error {
	return c.sess.Close()
}
