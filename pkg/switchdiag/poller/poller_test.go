package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/switchdiag/pkg/switchdiag/config"
	"github.com/vpbank/switchdiag/pkg/switchdiag/diag"
	"github.com/vpbank/switchdiag/pkg/switchdiag/poller"
	"github.com/vpbank/switchdiag/pkg/switchdiag/query"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session"
	"github.com/vpbank/switchdiag/pkg/switchdiag/session/sessiontest"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// testDeviceCfg returns a minimal v2c DeviceConfig suitable for tests.
func testDeviceCfg() config.DeviceConfig {
	return config.DeviceConfig{
		IP:                 "127.0.0.1",
		Port:               10161,
		Timeout:            500,
		Version:            "2c",
		Community:          "public",
		MaxRepetitions:     10,
		MaxConcurrentPolls: 4,
		LogLimit:           50,
	}
}

func sysAgent() *sessiontest.Agent {
	return sessiontest.NewAgent().
		SetString("1.3.6.1.2.1.1.1.0", "Test switch").
		Set("1.3.6.1.2.1.1.2.0", gosnmp.ObjectIdentifier, ".1.3.6.1.4.1.9.1.1").
		Set("1.3.6.1.2.1.1.3.0", gosnmp.TimeTicks, uint32(100)).
		SetString("1.3.6.1.2.1.1.5.0", "switch1").
		SetString("1.3.6.1.2.1.2.2.1.2.1", "Gi0/1")
}

// countingDial wraps the agent dialer and counts how many clients are made.
type countingDial struct {
	agent *sessiontest.Agent
	n     atomic.Int32
}

func (d *countingDial) dial(cfg config.DeviceConfig) (*query.Client, error) {
	d.n.Add(1)
	return poller.NewClient(cfg, session.WithDialer(d.agent.Dialer()))
}

func (d *countingDial) count() int { return int(d.n.Load()) }

// ─────────────────────────────────────────────────────────────────────────────
// ClientPool
// ─────────────────────────────────────────────────────────────────────────────

func TestClientPool_ReusesIdleClient(t *testing.T) {
	d := &countingDial{agent: sysAgent()}
	pool := poller.NewClientPool(poller.PoolOptions{Dial: d.dial}, nil)
	defer pool.Close()

	ctx := context.Background()
	c1, err := pool.Get(ctx, "switch1", testDeviceCfg())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	pool.Put("switch1", c1)

	c2, err := pool.Get(ctx, "switch1", testDeviceCfg())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c1 != c2 {
		t.Error("expected the idle client to be reused")
	}
	if d.count() != 1 {
		t.Errorf("dial count = %d, want 1", d.count())
	}
	pool.Put("switch1", c2)
}

func TestClientPool_MaxIdle(t *testing.T) {
	d := &countingDial{agent: sysAgent()}
	pool := poller.NewClientPool(poller.PoolOptions{MaxIdlePerDevice: 2, Dial: d.dial}, nil)
	defer pool.Close()

	var clients []*query.Client
	for i := 0; i < 3; i++ {
		c, err := pool.Get(context.Background(), "switch1", testDeviceCfg())
		if err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
		clients = append(clients, c)
	}
	for _, c := range clients {
		pool.Put("switch1", c)
	}
	if got := pool.Idle("switch1"); got != 2 {
		t.Errorf("Idle = %d, want 2", got)
	}
}

func TestClientPool_SemaphoreBlocks(t *testing.T) {
	d := &countingDial{agent: sysAgent()}
	pool := poller.NewClientPool(poller.PoolOptions{Dial: d.dial}, nil)
	defer pool.Close()

	cfg := testDeviceCfg()
	cfg.MaxConcurrentPolls = 1

	c, err := pool.Get(context.Background(), "switch1", cfg)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Get(ctx, "switch1", cfg); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Get err = %v, want deadline exceeded", err)
	}

	pool.Discard("switch1", c)
	c, err = pool.Get(context.Background(), "switch1", cfg)
	if err != nil {
		t.Fatalf("Get after Discard: %v", err)
	}
	pool.Put("switch1", c)
}

func TestClientPool_IdleTimeout(t *testing.T) {
	d := &countingDial{agent: sysAgent()}
	pool := poller.NewClientPool(poller.PoolOptions{IdleTimeout: time.Millisecond, Dial: d.dial}, nil)
	defer pool.Close()

	c, _ := pool.Get(context.Background(), "switch1", testDeviceCfg())
	pool.Put("switch1", c)
	time.Sleep(10 * time.Millisecond)

	c, err := pool.Get(context.Background(), "switch1", testDeviceCfg())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	pool.Put("switch1", c)
	if d.count() != 2 {
		t.Errorf("dial count = %d, want 2 (expired client replaced)", d.count())
	}
}

func TestClientPool_DialError(t *testing.T) {
	pool := poller.NewClientPool(poller.PoolOptions{}, nil)
	defer pool.Close()

	cfg := testDeviceCfg()
	cfg.Version = "3"
	if _, err := pool.Get(context.Background(), "switch1", cfg); err == nil {
		t.Fatal("expected error for unsupported version")
	}

	// The failed dial must have released its slot.
	cfg.Version = "2c"
	cfg.MaxConcurrentPolls = 1
	if _, err := pool.Get(context.Background(), "other", cfg); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestClientPool_Closed(t *testing.T) {
	pool := poller.NewClientPool(poller.PoolOptions{}, nil)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := pool.Get(context.Background(), "switch1", testDeviceCfg()); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestClientPool_ConfigChangeRedials(t *testing.T) {
	agent := sysAgent()
	d := &countingDial{agent: agent}
	pool := poller.NewClientPool(poller.PoolOptions{Dial: d.dial}, nil)
	defer pool.Close()
	ctx := context.Background()

	c1, err := pool.Get(ctx, "switch1", testDeviceCfg())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := c1.Get(ctx, "1.3.6.1.2.1.1.5.0"); err != nil {
		t.Fatalf("client Get: %v", err)
	}
	pool.Put("switch1", c1)

	moved := testDeviceCfg()
	moved.IP = "10.9.9.9"
	moved.Community = "private"
	c2, err := pool.Get(ctx, "switch1", moved)
	if err != nil {
		t.Fatalf("Get after config change: %v", err)
	}
	defer pool.Put("switch1", c2)

	if c2 == c1 {
		t.Fatal("idle client of the old config was reused")
	}
	if got := c2.Target(); got != "10.9.9.9:10161" {
		t.Errorf("target = %q, want 10.9.9.9:10161", got)
	}
	if d.count() != 2 {
		t.Errorf("dial count = %d, want 2", d.count())
	}
	if agent.Closes() != 1 {
		t.Errorf("closes = %d, want 1 (old idle client closed)", agent.Closes())
	}
}

func TestClientPool_ConfigChangeResizesSemaphore(t *testing.T) {
	d := &countingDial{agent: sysAgent()}
	pool := poller.NewClientPool(poller.PoolOptions{Dial: d.dial}, nil)
	defer pool.Close()

	oldCfg := testDeviceCfg()
	oldCfg.MaxConcurrentPolls = 1
	newCfg := oldCfg
	newCfg.MaxConcurrentPolls = 2

	held, err := pool.Get(context.Background(), "switch1", oldCfg)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a, err := pool.Get(ctx, "switch1", newCfg)
	if err != nil {
		t.Fatalf("first Get with new config: %v", err)
	}
	b, err := pool.Get(ctx, "switch1", newCfg)
	if err != nil {
		t.Fatalf("second Get with new config: %v", err)
	}

	// A client handed out under the old config is closed, not pooled.
	pool.Put("switch1", held)
	if got := pool.Idle("switch1"); got != 0 {
		t.Errorf("Idle = %d after returning stale client, want 0", got)
	}
	pool.Put("switch1", a)
	pool.Put("switch1", b)
	if got := pool.Idle("switch1"); got != 2 {
		t.Errorf("Idle = %d, want 2", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPDiagnoser
// ─────────────────────────────────────────────────────────────────────────────

func TestSNMPDiagnoser_Report(t *testing.T) {
	agent := sysAgent()
	d := &countingDial{agent: agent}
	pool := poller.NewClientPool(poller.PoolOptions{Dial: d.dial}, nil)
	defer pool.Close()

	cfg := testDeviceCfg()
	cfg.Vendor = "cisco"
	job := poller.JobFor("switch1", cfg)

	report, err := poller.NewSNMPDiagnoser(pool, nil, nil).Diagnose(context.Background(), job)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if report.Host != "switch1" || report.Vendor != "cisco" {
		t.Errorf("identity = %q/%q", report.Host, report.Vendor)
	}
	if !report.SysInfo.OK() {
		t.Fatalf("sysinfo failed: %v", report.SysInfo.Err)
	}
	if got := report.SysInfo.Value.Name.String(); got != "switch1" {
		t.Errorf("sysName = %q", got)
	}
	if !report.Interfaces.OK() || report.Interfaces.Value.Len() != 1 {
		t.Errorf("interfaces = %+v", report.Interfaces)
	}
	if !errors.Is(report.Logs.Err, diag.ErrNotImplemented) {
		t.Errorf("logs err = %v, want not implemented", report.Logs.Err)
	}
	if pool.Idle("switch1") != 1 {
		t.Errorf("client not returned to pool")
	}
}

func TestSNMPDiagnoser_UnreachableDiscardsClient(t *testing.T) {
	agent := sysAgent()
	agent.Fail(errors.New("request timeout (after 0 retries)"))
	d := &countingDial{agent: agent}
	pool := poller.NewClientPool(poller.PoolOptions{Dial: d.dial}, nil)
	defer pool.Close()

	report, err := poller.NewSNMPDiagnoser(pool, nil, nil).Diagnose(context.Background(), poller.JobFor("switch1", testDeviceCfg()))
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !report.Unreachable() {
		t.Fatal("expected unreachable report")
	}
	if pool.Idle("switch1") != 0 {
		t.Error("unreachable client should not be pooled")
	}
	if agent.Closes() == 0 {
		t.Error("discarded client was not closed")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WorkerPool
// ─────────────────────────────────────────────────────────────────────────────

type mockDiagnoser struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (m *mockDiagnoser) Diagnose(_ context.Context, job poller.DiagnoseJob) (*diag.Report, error) {
	m.mu.Lock()
	m.calls = append(m.calls, job.Hostname)
	m.mu.Unlock()
	if m.fail[job.Hostname] {
		return nil, errors.New("pool closed")
	}
	return &diag.Report{Host: job.Hostname}, nil
}

func TestWorkerPool_FansOut(t *testing.T) {
	m := &mockDiagnoser{fail: map[string]bool{"bad": true}}
	out := make(chan *diag.Report, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wp := poller.NewWorkerPool(3, m, out, nil)
	wp.Start(ctx)
	for _, h := range []string{"a", "b", "bad", "c"} {
		wp.Submit(poller.JobFor(h, testDeviceCfg()))
	}
	wp.Stop()
	close(out)

	got := map[string]bool{}
	for r := range out {
		got[r.Host] = true
	}
	if len(got) != 3 || !got["a"] || !got["b"] || !got["c"] {
		t.Errorf("reports = %v, want a, b, c", got)
	}
	if len(m.calls) != 4 {
		t.Errorf("calls = %d, want 4", len(m.calls))
	}
}

func TestWorkerPool_TrySubmitFull(t *testing.T) {
	wp := poller.NewWorkerPool(1, &mockDiagnoser{}, make(chan *diag.Report), nil)
	// Not started: the buffer holds numWorkers*2 jobs.
	if !wp.TrySubmit(poller.DiagnoseJob{Hostname: "a"}) || !wp.TrySubmit(poller.DiagnoseJob{Hostname: "b"}) {
		t.Fatal("expected buffered submits to succeed")
	}
	if wp.TrySubmit(poller.DiagnoseJob{Hostname: "c"}) {
		t.Error("expected TrySubmit to fail on a full queue")
	}
}

func TestClassifyReport(t *testing.T) {
	tests := []struct {
		name   string
		report *diag.Report
		want   poller.Outcome
	}{
		{"nil", nil, poller.OutcomeFailed},
		{"ok", &diag.Report{}, poller.OutcomeOK},
		{"degraded", &diag.Report{STP: diag.Result[*diag.STPStatus]{Err: errors.New("no stp")}}, poller.OutcomeDegraded},
		{"unreachable", &diag.Report{SysInfo: diag.Result[*diag.SysInfo]{Err: session.ErrTransport}}, poller.OutcomeUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := poller.ClassifyReport(tt.report); got != tt.want {
				t.Errorf("ClassifyReport = %s, want %s", got, tt.want)
			}
		})
	}
}

// scriptedDiagnoser returns the queued outcomes for each host in order.
type scriptedDiagnoser struct {
	mu     sync.Mutex
	script map[string][]poller.Outcome
}

func (s *scriptedDiagnoser) Diagnose(_ context.Context, job poller.DiagnoseJob) (*diag.Report, error) {
	s.mu.Lock()
	o := s.script[job.Hostname][0]
	s.script[job.Hostname] = s.script[job.Hostname][1:]
	s.mu.Unlock()

	r := &diag.Report{Host: job.Hostname}
	switch o {
	case poller.OutcomeFailed:
		return nil, errors.New("pool closed")
	case poller.OutcomeUnreachable:
		r.SysInfo.Err = session.ErrTransport
	case poller.OutcomeDegraded:
		r.Logs.Err = errors.New("no logs")
	}
	return r, nil
}

func TestWorkerPool_TracksDeviceHealth(t *testing.T) {
	d := &scriptedDiagnoser{script: map[string][]poller.Outcome{
		"sw1": {poller.OutcomeUnreachable, poller.OutcomeUnreachable, poller.OutcomeOK},
		"sw2": {poller.OutcomeFailed},
	}}
	type seen struct {
		host    string
		outcome poller.Outcome
		report  bool
	}
	var (
		mu   sync.Mutex
		hook []seen
	)
	out := make(chan *diag.Report, 10)
	wp := poller.NewWorkerPool(1, d, out, nil, poller.WithOutcomeHook(func(h string, o poller.Outcome, r *diag.Report) {
		mu.Lock()
		hook = append(hook, seen{h, o, r != nil})
		mu.Unlock()
	}))

	wp.Start(context.Background())
	for _, h := range []string{"sw1", "sw1", "sw2"} {
		wp.Submit(poller.DiagnoseJob{Hostname: h})
	}
	wp.Stop()

	h, ok := wp.Health("sw1")
	if !ok || h.Outcome != poller.OutcomeUnreachable || h.Streak != 2 {
		t.Errorf("sw1 health = %+v, %v; want unreachable streak 2", h, ok)
	}
	h, ok = wp.Health("sw2")
	if !ok || h.Outcome != poller.OutcomeFailed || h.Streak != 1 {
		t.Errorf("sw2 health = %+v, %v; want failed streak 1", h, ok)
	}
	if _, ok := wp.Health("sw3"); ok {
		t.Error("unknown device has health")
	}

	want := []seen{
		{"sw1", poller.OutcomeUnreachable, true},
		{"sw1", poller.OutcomeUnreachable, true},
		{"sw2", poller.OutcomeFailed, false},
	}
	if len(hook) != len(want) {
		t.Fatalf("hook calls = %v, want %v", hook, want)
	}
	for i := range want {
		if hook[i] != want[i] {
			t.Errorf("hook[%d] = %+v, want %+v", i, hook[i], want[i])
		}
	}
	if len(out) != 2 {
		t.Errorf("reports forwarded = %d, want 2", len(out))
	}
}

func TestWorkerPool_RecoveryResetsStreak(t *testing.T) {
	d := &scriptedDiagnoser{script: map[string][]poller.Outcome{
		"sw1": {poller.OutcomeDegraded, poller.OutcomeDegraded, poller.OutcomeOK},
	}}
	wp := poller.NewWorkerPool(1, d, make(chan *diag.Report, 10), nil)
	wp.Start(context.Background())
	for i := 0; i < 3; i++ {
		wp.Submit(poller.DiagnoseJob{Hostname: "sw1"})
	}
	wp.Stop()

	h, _ := wp.Health("sw1")
	if h.Outcome != poller.OutcomeOK || h.Streak != 1 {
		t.Errorf("health = %+v, want ok streak 1", h)
	}
}

func TestWorkerPool_PruneHealth(t *testing.T) {
	d := &scriptedDiagnoser{script: map[string][]poller.Outcome{
		"keep": {poller.OutcomeOK},
		"gone": {poller.OutcomeOK},
	}}
	wp := poller.NewWorkerPool(1, d, make(chan *diag.Report, 10), nil)
	wp.Start(context.Background())
	wp.Submit(poller.DiagnoseJob{Hostname: "keep"})
	wp.Submit(poller.DiagnoseJob{Hostname: "gone"})
	wp.Stop()

	if n := wp.PruneHealth(map[string]config.DeviceConfig{"keep": testDeviceCfg()}); n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, ok := wp.Health("gone"); ok {
		t.Error("removed device still has health")
	}
	if _, ok := wp.Health("keep"); !ok {
		t.Error("kept device lost its health")
	}
}
