package query_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/switchdiag/pkg/switchdiag/query"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session/sessiontest"
)

func newClient(t *testing.T, agent *sessiontest.Agent) *query.Client {
	t.Helper()
	c, err := query.NewClient(session.Endpoint{
		Host:    "192.0.2.20",
		Version: agent.Version,
	}, session.WithDialer(agent.Dialer()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGet(t *testing.T) {
	agent := sessiontest.NewAgent().
		SetString("1.3.6.1.2.1.1.5.0", "sw-access-07").
		Set("1.3.6.1.2.1.1.3.0", gosnmp.TimeTicks, uint32(8640000))
	c := newClient(t, agent)

	v, err := c.Get(context.Background(), "1.3.6.1.2.1.1.5.0")
	require.NoError(t, err)
	assert.Equal(t, "sw-access-07", v.String())

	again, err := c.Get(context.Background(), "1.3.6.1.2.1.1.5.0")
	require.NoError(t, err)
	assert.Equal(t, v, again, "Get must be idempotent against an unchanged device")

	up, err := c.Get(context.Background(), "1.3.6.1.2.1.1.3.0")
	require.NoError(t, err)
	assert.Equal(t, "8640000", up.String())
}

func TestGet_PropagatesProtocolError(t *testing.T) {
	agent := sessiontest.NewAgent()
	agent.Version = gosnmp.Version1
	c := newClient(t, agent)

	_, err := c.Get(context.Background(), "1.3.6.1.2.1.1.5.0")
	var pe *session.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, session.KindApplication, pe.Kind)
	assert.Equal(t, "noSuchName", pe.Reason)
	assert.Equal(t, "1.3.6.1.2.1.1.5.0", pe.BadOID)

	agent.Fail(errors.New("request timeout (after 2 retries)"))
	_, err = c.Get(context.Background(), "1.3.6.1.2.1.1.5.0")
	assert.ErrorIs(t, err, session.ErrTransport)
}

func TestWalk(t *testing.T) {
	agent := sessiontest.NewAgent().
		SetString("1.3.6.1.2.1.2.2.1.2.1", "Gi0/1").
		SetString("1.3.6.1.2.1.2.2.1.2.2", "Gi0/2").
		SetInt("1.3.6.1.2.1.2.2.1.3.1", 6)
	c := newClient(t, agent)

	e, err := c.Walk(context.Background(), "1.3.6.1.2.1.2.2.1.2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.3.6.1.2.1.2.2.1.2.1", "1.3.6.1.2.1.2.2.1.2.2"}, e.Keys())
}

func TestSysObjectID(t *testing.T) {
	agent := sessiontest.NewAgent().
		Set(query.SysObjectIDOID, gosnmp.ObjectIdentifier, ".1.3.6.1.4.1.9.1.2134")
	c := newClient(t, agent)

	id, err := c.SysObjectID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.3.6.1.4.1.9.1.2134", id)
}

func TestConcurrentCallsDoNotOverlap(t *testing.T) {
	agent := sessiontest.NewAgent()
	for _, i := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		agent.SetString("1.3.6.1.2.1.2.2.1.2."+i, "port"+i)
	}
	ep := session.Endpoint{Host: "192.0.2.20", Version: gosnmp.Version2c, MaxRepetitions: 2}
	c, err := query.NewClient(ep, session.WithDialer(agent.Dialer()))
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e, err := c.Walk(context.Background(), "1.3.6.1.2.1.2.2.1.2")
			assert.NoError(t, err)
			assert.Equal(t, 8, e.Len())
		}()
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "1.3.6.1.2.1.2.2.1.2.3")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, agent.PeakInflight())
}

func TestClose(t *testing.T) {
	agent := sessiontest.NewAgent().SetString("1.3.6.1.2.1.1.5.0", "x")
	c := newClient(t, agent)
	require.NoError(t, c.Close())

	_, err := c.Get(context.Background(), "1.3.6.1.2.1.1.5.0")
	assert.ErrorIs(t, err, session.ErrClosed)
}
