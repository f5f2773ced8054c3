package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/time/rate"

	"github.com/vpbank/switchdiag/snmp/oid"
	"github.com/vpbank/switchdiag/snmp/value"
)

// ─────────────────────────────────────────────────────────────────────────────
// Results
// ─────────────────────────────────────────────────────────────────────────────

// FetchResult is the single outcome of a Fetch.
type FetchResult struct {
	Value value.Value
	Err   error
}

// EnumerateResult is the single outcome of an Enumerate.
type EnumerateResult struct {
	Values *value.Enumeration
	Err    error
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDialer replaces the UDP dialer. Tests use it to inject a fake Conn.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dial = d
		}
	}
}

// WithMetrics records exchange counts and latencies on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithRateLimit caps the exchange rate, overriding Endpoint.RequestsPerSecond.
func WithRateLimit(perSecond float64) Option {
	return func(s *Session) { s.ep.RequestsPerSecond = perSecond }
}

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

const (
	opGet  = "get"
	opWalk = "walk"

	pduGet     = "get"
	pduGetNext = "getnext"
	pduGetBulk = "getbulk"
)

// request is one queued operation. exec runs on the engine goroutine with a
// bound Conn; fail delivers an error without touching the transport.
type request struct {
	ctx  context.Context
	op   string
	oid  string
	exec func(Conn)
	fail func(error)
}

// Session is a handle on one SNMP endpoint. All exchanges are executed by a
// single engine goroutine, so at most one request is on the wire at a time.
// Fetch and Enumerate are safe for concurrent use.
type Session struct {
	ep      Endpoint
	dial    Dialer
	logger  *slog.Logger
	metrics *Metrics
	limiter *rate.Limiter

	reqs chan request

	closeOnce sync.Once
	done      chan struct{} // closed by Close
	stopped   chan struct{} // closed when the engine has exited
	closeErr  error

	// conn is owned by the engine goroutine.
	conn Conn
}

// New validates ep and starts the engine. The endpoint is bound lazily on the
// first exchange.
func New(ep Endpoint, opts ...Option) (*Session, error) {
	ep.defaults()
	if err := ep.validate(); err != nil {
		return nil, err
	}
	s := &Session{
		ep:      ep,
		dial:    DialUDP,
		logger:  slog.New(slog.NewTextHandler(noopWriter{}, nil)),
		reqs:    make(chan request),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.ep.RequestsPerSecond > 0 {
		burst := int(s.ep.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(s.ep.RequestsPerSecond), burst)
	}
	s.logger = s.logger.With("target", ep.Target())

	go s.run()
	return s, nil
}

// Endpoint returns a copy of the session endpoint.
func (s *Session) Endpoint() Endpoint { return s.ep }

// Fetch issues a single GET for oid. Exactly one FetchResult is delivered on
// the returned channel, which is then never written again.
func (s *Session) Fetch(ctx context.Context, o string) <-chan FetchResult {
	out := make(chan FetchResult, 1)
	o = oid.Normalize(o)
	if !oid.Valid(o) {
		out <- FetchResult{Value: value.Absent, Err: fmt.Errorf("session: invalid OID %q", o)}
		return out
	}
	s.submit(request{
		ctx: ctx,
		op:  opGet,
		oid: o,
		exec: func(c Conn) {
			v, err := s.fetch(ctx, c, o)
			out <- FetchResult{Value: v, Err: err}
		},
		fail: func(err error) { out <- FetchResult{Value: value.Absent, Err: err} },
	})
	return out
}

// Enumerate walks the subtree under root to its true end. Exactly one
// EnumerateResult is delivered on the returned channel.
func (s *Session) Enumerate(ctx context.Context, root string) <-chan EnumerateResult {
	out := make(chan EnumerateResult, 1)
	root = oid.Normalize(root)
	if !oid.Valid(root) {
		out <- EnumerateResult{Err: fmt.Errorf("session: invalid OID %q", root)}
		return out
	}
	s.submit(request{
		ctx: ctx,
		op:  opWalk,
		oid: root,
		exec: func(c Conn) {
			res, err := s.walk(ctx, c, root)
			out <- EnumerateResult{Values: res, Err: err}
		},
		fail: func(err error) { out <- EnumerateResult{Err: err} },
	})
	return out
}

// Close stops the engine and releases the transport. It is idempotent; every
// call returns the error from closing the transport, if any.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
	return s.closeErr
}

// submit hands req to the engine without blocking the caller. A closed
// session fails the request immediately.
func (s *Session) submit(req request) {
	select {
	case <-s.done:
		req.fail(s.closedError(req.op, req.oid))
		return
	default:
	}
	go func() {
		select {
		case s.reqs <- req:
		case <-s.done:
			req.fail(s.closedError(req.op, req.oid))
		case <-req.ctx.Done():
			req.fail(s.transportError(req.op, req.oid, req.ctx.Err()))
		}
	}()
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

func (s *Session) run() {
	defer close(s.stopped)
	for {
		// Close wins over queued work.
		select {
		case <-s.done:
			s.shutdown()
			return
		default:
		}

		select {
		case req := <-s.reqs:
			s.serve(req)
		case <-s.done:
			s.shutdown()
			return
		}
	}
}

func (s *Session) serve(req request) {
	if err := req.ctx.Err(); err != nil {
		req.fail(s.transportError(req.op, req.oid, err))
		return
	}
	c, err := s.bind()
	if err != nil {
		pe := s.transportError(req.op, req.oid, err)
		pe.Reason = "bind"
		req.fail(pe)
		return
	}
	req.exec(c)
}

// bind dials the endpoint on first use and caches the Conn. A failed dial is
// not cached, so the next request tries again.
func (s *Session) bind() (Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	c, err := s.dial(s.ep)
	if err != nil {
		s.logger.Warn("session: bind failed", "error", err.Error())
		return nil, err
	}
	s.logger.Debug("session: bound")
	s.conn = c
	return c, nil
}

func (s *Session) shutdown() {
	if s.conn != nil {
		s.closeErr = s.conn.Close()
		s.conn = nil
	}
	s.logger.Debug("session: closed")
}

// exchange performs one request/response round trip, including gosnmp's own
// retries.
func (s *Session) exchange(ctx context.Context, c Conn, pdu string, oids []string) (*gosnmp.SnmpPacket, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	var (
		pkt *gosnmp.SnmpPacket
		err error
	)
	switch pdu {
	case pduGetNext:
		pkt, err = c.GetNext(ctx, oids)
	case pduGetBulk:
		pkt, err = c.GetBulk(ctx, oids, s.ep.MaxRepetitions)
	default:
		pkt, err = c.Get(ctx, oids)
	}
	s.metrics.observeExchange(pdu, time.Since(start))
	if err == nil && pkt == nil {
		err = errors.New("nil response")
	}
	return pkt, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Operations
// ─────────────────────────────────────────────────────────────────────────────

func (s *Session) fetch(ctx context.Context, c Conn, o string) (value.Value, error) {
	req := []string{o}
	pkt, err := s.exchange(ctx, c, pduGet, req)
	if err != nil {
		return value.Absent, s.transportError(opGet, o, err)
	}
	if pkt.Error != gosnmp.NoError {
		return value.Absent, s.applicationError(opGet, o, StatusName(pkt.Error), BadVarbind(req, pkt.ErrorIndex))
	}
	if len(pkt.Variables) == 0 {
		pe := s.transportError(opGet, o, nil)
		pe.Reason = "empty response"
		return value.Absent, pe
	}
	vb := pkt.Variables[0]
	if value.IsException(vb.Type) {
		return value.Absent, s.applicationError(opGet, o, value.ExceptionName(vb.Type), oid.Normalize(vb.Name))
	}
	return value.FromPDU(vb), nil
}

// walk follows GETNEXT (v1) or GETBULK (v2c) until the agent leaves the
// subtree. Each step restarts from the last OID received.
func (s *Session) walk(ctx context.Context, c Conn, root string) (*value.Enumeration, error) {
	res := value.NewEnumeration()
	pdu := pduGetBulk
	if s.ep.Version == gosnmp.Version1 {
		pdu = pduGetNext
	}

	cursor := root
	for {
		if err := ctx.Err(); err != nil {
			return nil, s.transportError(opWalk, root, err)
		}
		req := []string{cursor}
		pkt, err := s.exchange(ctx, c, pdu, req)
		if err != nil {
			return nil, s.transportError(opWalk, root, err)
		}
		if pkt.Error != gosnmp.NoError {
			// v1 agents signal end of MIB view with noSuchName.
			if s.ep.Version == gosnmp.Version1 && pkt.Error == gosnmp.NoSuchName {
				return res, nil
			}
			return nil, s.applicationError(opWalk, root, StatusName(pkt.Error), BadVarbind(req, pkt.ErrorIndex))
		}
		if len(pkt.Variables) == 0 {
			return res, nil
		}
		for _, vb := range pkt.Variables {
			name := oid.Normalize(vb.Name)
			if value.IsException(vb.Type) || !oid.IsUnder(name, root) {
				return res, nil
			}
			if oid.Compare(name, cursor) <= 0 {
				return nil, s.applicationError(opWalk, root, "oidNotIncreasing", name)
			}
			res.Set(name, value.FromPDU(vb))
			cursor = name
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error construction
// ─────────────────────────────────────────────────────────────────────────────

func (s *Session) transportError(op, o string, err error) *ProtocolError {
	pe := &ProtocolError{
		Kind:   KindTransport,
		Op:     op,
		Target: s.ep.Target(),
		OID:    o,
		Reason: transportReason(err),
		Err:    err,
	}
	s.metrics.observeFailure(KindTransport)
	return pe
}

func (s *Session) applicationError(op, o, reason, bad string) *ProtocolError {
	s.metrics.observeFailure(KindApplication)
	return &ProtocolError{
		Kind:   KindApplication,
		Op:     op,
		Target: s.ep.Target(),
		OID:    o,
		Reason: reason,
		BadOID: bad,
	}
}

func (s *Session) closedError(op, o string) *ProtocolError {
	return &ProtocolError{
		Kind:   KindTransport,
		Op:     op,
		Target: s.ep.Target(),
		OID:    o,
		Reason: "closed",
		Err:    ErrClosed,
	}
}

func transportReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case strings.Contains(strings.ToLower(err.Error()), "timeout"):
		return "timeout"
	default:
		return "exchange"
	}
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
