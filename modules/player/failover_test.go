package player

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zachfi/streamkeeper/pkg/failure"
)

type harness struct {
	ctrl   *Controller
	orch   *Orchestrator
	dev    *fakeDevice
	sched  *fakeScheduler
	prober *fakeProber
	m      *metrics
}

func newHarness(t *testing.T, threshold int) *harness {
	t.Helper()
	reg := testRegistry(t)
	h := &harness{
		dev:    &fakeDevice{},
		sched:  &fakeScheduler{},
		prober: &fakeProber{},
		m:      newMetrics(prometheus.NewRegistry()),
	}
	h.ctrl = NewController(reg, h.dev, 1, discardLogger())
	h.orch = NewOrchestrator(reg, testPolicy(threshold), h.sched, h.prober, discardLogger(), h.m)
	h.ctrl.SetFailureSink(h.orch)
	h.orch.Bind(h.ctrl)
	return h
}

func (h *harness) active() string { return h.ctrl.Session().ActiveEndpointID }

func TestFailoverAfterThreshold(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start()

	for i := 1; i < 3; i++ {
		h.dev.emit(EventError)
		if h.active() != "primary" || h.orch.Failures() != i {
			t.Fatalf("failure %d: active = %s failures = %d", i, h.active(), h.orch.Failures())
		}
		if n := h.sched.fire(testHealthInterval); n != 1 {
			t.Fatalf("failure %d: %d retries fired", i, n)
		}
	}

	stale := h.dev.current()
	h.dev.emit(EventError)

	if h.active() != "backup1" {
		t.Fatalf("active = %s", h.active())
	}
	if got := testutil.ToFloat64(h.m.failovers); got != 1 {
		t.Fatalf("failovers = %v", got)
	}
	want := []string{"http://primary.test/live", "http://primary.test/live", "http://primary.test/live", "http://backup1.test/live"}
	if got := h.dev.attached(); len(got) != len(want) || got[3] != want[3] {
		t.Fatalf("attached = %v", got)
	}

	// Late reports about the previous endpoint change nothing.
	stale(DeviceEvent{Kind: EventError})
	h.orch.ReportFailure("primary", failure.TransientNetworkFailure)

	if h.active() != "backup1" || h.orch.Failures() != 0 || h.ctrl.Session().State != StateConnecting {
		t.Fatalf("after stale failures: session = %+v failures = %d", h.ctrl.Session(), h.orch.Failures())
	}
	if got := testutil.ToFloat64(h.m.failovers); got != 1 {
		t.Fatalf("failovers = %v", got)
	}
}

func TestFailureCountResetsOnSuccess(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start()

	h.dev.emit(EventError)
	h.sched.fire(testHealthInterval)
	h.dev.emit(EventPlayable)

	if h.orch.Failures() != 0 {
		t.Fatalf("failures = %d", h.orch.Failures())
	}
}

func TestParseFailuresDoNotCount(t *testing.T) {
	h := newHarness(t, 1)
	_ = h.ctrl.Start()
	h.dev.emit(EventPlayable)

	h.orch.ReportFailure("primary", failure.ParseFailure)
	if h.active() != "primary" || h.orch.Failures() != 0 {
		t.Fatalf("active = %s failures = %d", h.active(), h.orch.Failures())
	}

	h.orch.ReportFailure("primary", failure.TransientNetworkFailure)
	if h.active() != "backup1" {
		t.Fatalf("active = %s", h.active())
	}
}

func TestRestorePrimary(t *testing.T) {
	h := newHarness(t, 1)
	_ = h.ctrl.Start()
	h.dev.emit(EventError)
	h.dev.emit(EventPlayable)

	if h.active() != "backup1" || h.sched.pending(testRestoreInterval) != 1 {
		t.Fatalf("active = %s probes = %d", h.active(), h.sched.pending(testRestoreInterval))
	}

	// Unhealthy probes re-arm without switching.
	h.sched.fire(testRestoreInterval)
	if h.active() != "backup1" || h.prober.calls.Load() != 1 || h.sched.pending(testRestoreInterval) != 1 {
		t.Fatalf("active = %s calls = %d", h.active(), h.prober.calls.Load())
	}

	h.prober.healthy.Store(true)
	h.sched.fire(testRestoreInterval)

	s := h.ctrl.Session()
	if s.ActiveEndpointID != "primary" || s.State != StateConnecting || s.ManualOverride {
		t.Fatalf("session = %+v", s)
	}
	if got := testutil.ToFloat64(h.m.restorations); got != 1 {
		t.Fatalf("restorations = %v", got)
	}
	if h.sched.pending(testRestoreInterval) != 0 {
		t.Fatal("probe still armed on primary")
	}
}

func TestManualOverrideSuspendsFailover(t *testing.T) {
	h := newHarness(t, 1)
	h.prober.healthy.Store(true)

	_ = h.ctrl.Start()
	h.dev.emit(EventPlayable)
	if err := h.ctrl.SwitchEndpoint("backup1", true); err != nil {
		t.Fatal(err)
	}
	h.dev.emit(EventPlayable)

	h.sched.fire(testRestoreInterval)
	if h.active() != "backup1" {
		t.Fatalf("restored under manual override: active = %s", h.active())
	}

	for i := 0; i < 3; i++ {
		h.dev.emit(EventError)
		if h.active() != "backup1" {
			t.Fatalf("failed over under manual override: active = %s", h.active())
		}
		h.sched.fire(testHealthInterval)
	}

	h.ctrl.SetAutomatic()
	h.sched.fire(testRestoreInterval)
	if h.active() != "primary" {
		t.Fatalf("active = %s after automatic", h.active())
	}
}

func TestExhaustion(t *testing.T) {
	h := newHarness(t, 1)
	_ = h.ctrl.Start()

	h.dev.emit(EventError)
	h.dev.emit(EventError)
	h.dev.emit(EventError)

	s := h.ctrl.Session()
	if s.State != StateIdle || !s.Exhausted || s.ActiveEndpointID != "backup2" {
		t.Fatalf("session = %+v", s)
	}
	if got := testutil.ToFloat64(h.m.exhaustions); got != 1 {
		t.Fatalf("exhaustions = %v", got)
	}
	if h.sched.fire(testHealthInterval)+h.sched.fire(testRestoreInterval) != 0 {
		t.Fatal("timers fired after exhaustion")
	}

	// Further failures are ignored until the user starts again.
	h.orch.ReportFailure("backup2", failure.TransientNetworkFailure)
	if testutil.ToFloat64(h.m.exhaustions) != 1 {
		t.Fatal("exhausted twice")
	}

	_ = h.ctrl.Start()
	s = h.ctrl.Session()
	if s.State != StateConnecting || s.Exhausted {
		t.Fatalf("session after restart = %+v", s)
	}
	h.orch.ReportFailure("backup2", failure.TransientNetworkFailure)
	if testutil.ToFloat64(h.m.exhaustions) != 2 {
		t.Fatal("failover not re-armed after restart")
	}
}

func TestDisposeStopsTimers(t *testing.T) {
	h := newHarness(t, 3)
	_ = h.ctrl.Start()
	h.dev.emit(EventError)

	h.orch.Dispose()
	h.sched.fire(testHealthInterval)

	if len(h.dev.attached()) != 1 {
		t.Fatalf("retried after dispose: %v", h.dev.attached())
	}
}
