package player

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

const (
	testHealthInterval  = time.Second
	testRestoreInterval = 10 * time.Second
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Endpoint{
		{ID: "primary", DisplayName: "Primary", StreamURI: "http://primary.test/live", Protocol: registry.InBandBinary},
		{ID: "backup1", DisplayName: "Backup 1", StreamURI: "http://backup1.test/live", Protocol: registry.InBandBinary},
		{ID: "backup2", DisplayName: "Backup 2", StreamURI: "http://backup2.test/live", Protocol: registry.InBandBinary},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func testPolicy(threshold int) FailoverPolicy {
	return FailoverPolicy{
		HealthCheckInterval:         testHealthInterval,
		RestoreCheckInterval:        testRestoreInterval,
		ConsecutiveFailureThreshold: threshold,
	}
}

// fakeDevice records attachments; tests drive events through emit.
type fakeDevice struct {
	mu        sync.Mutex
	uris      []string
	detaches  int
	notify    func(DeviceEvent)
	volume    float64
	attachErr error
	closed    bool
	titles    bool
}

func (d *fakeDevice) ReportsTitles() bool { return d.titles }

func (d *fakeDevice) Attach(uri string, notify func(DeviceEvent)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uris = append(d.uris, uri)
	d.notify = notify
	return d.attachErr
}

func (d *fakeDevice) Detach() {
	d.mu.Lock()
	d.detaches++
	d.mu.Unlock()
}

func (d *fakeDevice) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = v
	d.mu.Unlock()
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) current() func(DeviceEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notify
}

func (d *fakeDevice) emit(kind EventKind) {
	d.current()(DeviceEvent{Kind: kind})
}

func (d *fakeDevice) attached() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.uris...)
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler runs timers only when fired and Go work inline.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Go(work func(ctx context.Context) func()) {
	if apply := work(context.Background()); apply != nil {
		apply()
	}
}

// fire runs every live timer of duration d once and returns how many ran.
func (s *fakeScheduler) fire(d time.Duration) int {
	due := s.timers
	s.timers = nil

	n := 0
	for _, t := range due {
		if t.stopped {
			continue
		}
		if t.d != d {
			s.timers = append(s.timers, t)
			continue
		}
		t.stopped = true
		n++
		t.f()
	}
	return n
}

func (s *fakeScheduler) pending(d time.Duration) int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && t.d == d {
			n++
		}
	}
	return n
}

type fakeProber struct {
	healthy atomic.Bool
	calls   atomic.Int32
}

func (p *fakeProber) Probe(context.Context, registry.Endpoint) bool {
	p.calls.Add(1)
	return p.healthy.Load()
}

type recordingSink struct {
	failures *[]string
}

func (s recordingSink) ReportFailure(id string, _ failure.Kind) { *s.failures = append(*s.failures, id) }
func (s recordingSink) ReportSuccess(string)                    {}
func (s recordingSink) EndpointChanged(string, bool)            {}
