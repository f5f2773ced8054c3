package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/query"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// PoolOptions configures the client pool behaviour.
type PoolOptions struct {
	// MaxIdlePerDevice is the maximum number of idle clients kept per device
	// (default 2). Excess clients returned via Put are closed immediately.
	MaxIdlePerDevice int

	// IdleTimeout is how long an idle client remains in the pool before being
	// discarded. Zero means no expiry.
	IdleTimeout time.Duration

	// Dial creates a new query client for a device. Defaults to NewClient
	// with SessionOptions.
	Dial func(config.DeviceConfig) (*query.Client, error)

	// SessionOptions are passed to every session created by the default Dial.
	SessionOptions []session.Option
}

func (o *PoolOptions) defaults() {
	if o.MaxIdlePerDevice <= 0 {
		o.MaxIdlePerDevice = 2
	}
	if o.Dial == nil {
		opts := o.SessionOptions
		o.Dial = func(cfg config.DeviceConfig) (*query.Client, error) {
			return NewClient(cfg, opts...)
		}
	}
}

// NewClient builds a query client for a resolved device configuration.
func NewClient(cfg config.DeviceConfig, opts ...session.Option) (*query.Client, error) {
	ep, err := session.EndpointFromDevice(cfg)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", cfg.IP, err)
	}
	return query.NewClient(ep, opts...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Client pool
// ─────────────────────────────────────────────────────────────────────────────

// poolEntry is a single idle client together with the time it was returned.
type poolEntry struct {
	client     *query.Client
	returnedAt time.Time
}

// devicePool is the per-device idle list + concurrency semaphore, built for
// one resolved DeviceConfig.
type devicePool struct {
	cfg config.DeviceConfig

	mu    sync.Mutex
	idle  []poolEntry // LIFO stack
	stale bool        // replaced after a config change

	// sem limits concurrent checked-out clients for this device.
	// Its capacity equals DeviceConfig.MaxConcurrentPolls.
	sem chan struct{}
}

// ClientPool manages query clients keyed by device hostname. It enforces
// per-device concurrency limits and recycles idle clients, so a bound
// session is reused across diagnosis cycles. When a device's configuration
// changes its idle clients are closed and a new per-device pool is built;
// clients checked out under the old configuration are closed when returned.
type ClientPool struct {
	opts   PoolOptions
	logger *slog.Logger

	mu    sync.RWMutex
	pools map[string]*devicePool        // hostname → pool
	out   map[*query.Client]*devicePool // checked-out client → owning pool

	closed chan struct{}
}

// NewClientPool creates a ready-to-use pool.
func NewClientPool(opts PoolOptions, logger *slog.Logger) *ClientPool {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &ClientPool{
		opts:   opts,
		logger: logger,
		pools:  make(map[string]*devicePool),
		out:    make(map[*query.Client]*devicePool),
		closed: make(chan struct{}),
	}
}

// Get acquires a client for the given device. It blocks if the per-device
// concurrency limit has been reached, and respects context cancellation.
func (p *ClientPool) Get(ctx context.Context, hostname string, cfg config.DeviceConfig) (*query.Client, error) {
	dp := p.getOrCreatePool(hostname, cfg)

	// Fast path: reject immediately if the pool is closed.
	select {
	case <-p.closed:
		return nil, fmt.Errorf("pool closed")
	default:
	}

	// Acquire concurrency slot.
	select {
	case dp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, fmt.Errorf("pool closed")
	}

	// Try to reuse an idle client.
	if c := p.popIdle(dp); c != nil {
		p.checkOut(c, dp)
		return c, nil
	}

	c, err := p.opts.Dial(dp.cfg)
	if err != nil {
		// Release semaphore slot on failure.
		<-dp.sem
		return nil, err
	}
	p.checkOut(c, dp)
	p.logger.Debug("pool: new client", "device", hostname, "target", c.Target())
	return c, nil
}

// Put returns a client to the idle pool for reuse. If the pool is full, or
// the device's configuration changed since the client was handed out, the
// client is closed. Put also releases the per-device concurrency slot.
func (p *ClientPool) Put(hostname string, c *query.Client) {
	dp := p.checkIn(c)
	if dp == nil {
		// Unknown client: close and return.
		_ = c.Close()
		return
	}
	defer func() { <-dp.sem }() // Release concurrency slot.

	select {
	case <-p.closed:
		_ = c.Close()
		return
	default:
	}

	dp.mu.Lock()
	defer dp.mu.Unlock()

	if dp.stale {
		p.logger.Debug("pool: closing client of replaced config", "device", hostname, "target", c.Target())
		_ = c.Close()
		return
	}
	if len(dp.idle) >= p.opts.MaxIdlePerDevice {
		_ = c.Close()
		return
	}
	dp.idle = append(dp.idle, poolEntry{client: c, returnedAt: time.Now()})
}

// Discard closes a client and releases the per-device concurrency slot
// without putting it back into the pool. Use this when the device stopped
// answering, so the next cycle binds a fresh socket.
func (p *ClientPool) Discard(hostname string, c *query.Client) {
	_ = c.Close()
	if dp := p.checkIn(c); dp != nil {
		<-dp.sem
	}
}

// Close drains all idle clients and prevents new Get calls.
func (p *ClientPool) Close() error {
	select {
	case <-p.closed:
		return nil // Already closed.
	default:
	}
	close(p.closed)

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, dp := range p.pools {
		dp.mu.Lock()
		for _, e := range dp.idle {
			_ = e.client.Close()
		}
		dp.idle = nil
		dp.mu.Unlock()
	}
	return nil
}

// Idle returns the number of idle clients held for hostname.
func (p *ClientPool) Idle(hostname string) int {
	dp := p.getPool(hostname)
	if dp == nil {
		return 0
	}
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return len(dp.idle)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// getOrCreatePool returns the pool for hostname built for cfg. A pool built
// for a different configuration is retired and replaced.
func (p *ClientPool) getOrCreatePool(hostname string, cfg config.DeviceConfig) *devicePool {
	p.mu.RLock()
	dp, ok := p.pools[hostname]
	p.mu.RUnlock()
	if ok && dp.cfg == cfg {
		return dp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double-check under write lock.
	if dp, ok = p.pools[hostname]; ok {
		if dp.cfg == cfg {
			return dp
		}
		p.retire(hostname, dp)
	}

	maxConcurrent := cfg.MaxConcurrentPolls
	if maxConcurrent <= 0 {
		maxConcurrent = config.DefaultMaxConcurrentPolls
	}
	dp = &devicePool{
		cfg:  cfg,
		idle: make([]poolEntry, 0, p.opts.MaxIdlePerDevice),
		sem:  make(chan struct{}, maxConcurrent),
	}
	p.pools[hostname] = dp
	return dp
}

// retire closes the idle clients of a replaced pool. Its semaphore stays
// valid for the clients still checked out from it. Caller holds p.mu.
func (p *ClientPool) retire(hostname string, dp *devicePool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.stale = true
	for _, e := range dp.idle {
		_ = e.client.Close()
	}
	dp.idle = nil
	p.logger.Info("pool: device config changed, dropping idle clients", "device", hostname)
}

func (p *ClientPool) checkOut(c *query.Client, dp *devicePool) {
	p.mu.Lock()
	p.out[c] = dp
	p.mu.Unlock()
}

// checkIn forgets c and returns the pool it was taken from.
func (p *ClientPool) checkIn(c *query.Client) *devicePool {
	p.mu.Lock()
	defer p.mu.Unlock()
	dp := p.out[c]
	delete(p.out, c)
	return dp
}

func (p *ClientPool) getPool(hostname string) *devicePool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pools[hostname]
}

func (p *ClientPool) popIdle(dp *devicePool) *query.Client {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	for len(dp.idle) > 0 {
		// Pop from the end (LIFO).
		n := len(dp.idle) - 1
		e := dp.idle[n]
		dp.idle = dp.idle[:n]

		if p.opts.IdleTimeout > 0 && time.Since(e.returnedAt) > p.opts.IdleTimeout {
			_ = e.client.Close()
			continue
		}
		return e.client
	}
	return nil
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
