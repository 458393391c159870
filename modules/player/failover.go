package player

import (
	"context"
	"log/slog"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

// Switcher is the part of the Controller the orchestrator drives.
type Switcher interface {
	Session() Session
	SwitchEndpoint(id string, manual bool) error
	Retry()
	Exhaust()
}

// Prober reports whether an endpoint is serving.
type Prober interface {
	Probe(ctx context.Context, ep registry.Endpoint) bool
}

// Orchestrator decides when to retry, fail over, and restore the primary. It
// never touches the device. All methods must run on the scheduler's
// goroutine.
type Orchestrator struct {
	reg    *registry.Registry
	policy FailoverPolicy
	sched  Scheduler
	prober Prober
	sw     Switcher
	logger *slog.Logger
	m      *metrics

	active    string
	manual    bool
	failures  int
	exhausted bool
	disposed  bool

	// epoch changes with the active endpoint or override flag; callbacks
	// scheduled under an older epoch do nothing.
	epoch    uint64
	retrySeq uint64
	retry    Timer
	probe    Timer
}

func NewOrchestrator(reg *registry.Registry, policy FailoverPolicy, sched Scheduler, prober Prober, logger *slog.Logger, m *metrics) *Orchestrator {
	if policy.ConsecutiveFailureThreshold <= 0 {
		policy.ConsecutiveFailureThreshold = 1
	}
	if m == nil {
		m = newMetrics(nil)
	}
	return &Orchestrator{
		reg:    reg,
		policy: policy,
		sched:  sched,
		prober: prober,
		logger: logger,
		m:      m,
		active: reg.Primary().ID,
	}
}

// Bind attaches the switcher and arms the timers for its current endpoint.
func (o *Orchestrator) Bind(sw Switcher) {
	o.sw = sw
	s := sw.Session()
	o.EndpointChanged(s.ActiveEndpointID, s.ManualOverride)
}

// Failures returns the consecutive failure count of the active endpoint.
func (o *Orchestrator) Failures() int { return o.failures }

func (o *Orchestrator) EndpointChanged(id string, manual bool) {
	o.epoch++
	o.active = id
	o.manual = manual
	o.failures = 0
	o.exhausted = false

	o.stopTimers()
	o.armProbe()
}

func (o *Orchestrator) ReportSuccess(id string) {
	if id == o.active {
		o.failures = 0
	}
}

// ReportFailure counts failures against the active endpoint and switches to
// the next one at the threshold. Failures for any other endpoint, and kinds
// that do not count, are ignored.
func (o *Orchestrator) ReportFailure(id string, kind failure.Kind) {
	if o.disposed || o.exhausted || id != o.active || !failure.CountsTowardFailover(kind) {
		return
	}

	o.failures++
	o.m.failures.WithLabelValues(kind.String()).Inc()
	o.logger.Debug("endpoint failure", "endpoint", id, "kind", kind.String(), "consecutive", o.failures)

	if !o.manual && o.failures >= o.policy.ConsecutiveFailureThreshold {
		o.failover(id)
		return
	}

	if o.sw.Session().State == StateFailed {
		o.armRetry()
	}
}

func (o *Orchestrator) failover(from string) {
	next, ok := o.reg.Next(from)
	if !ok {
		o.logger.Error("all endpoints exhausted", "last", from)
		o.exhausted = true
		o.stopTimers()
		o.m.exhaustions.Inc()
		o.sw.Exhaust()
		return
	}

	o.logger.Warn("failing over", "from", from, "to", next.ID, "failures", o.failures)
	o.m.failovers.Inc()
	if err := o.sw.SwitchEndpoint(next.ID, false); err != nil {
		o.logger.Error("failover switch failed", "to", next.ID, "err", err)
	}
}

func (o *Orchestrator) armRetry() {
	if o.retry != nil {
		o.retry.Stop()
	}

	o.retrySeq++
	seq, epoch, id := o.retrySeq, o.epoch, o.active
	o.retry = o.sched.AfterFunc(o.policy.HealthCheckInterval, func() {
		if seq != o.retrySeq || epoch != o.epoch || o.disposed || o.exhausted {
			return
		}
		o.retry = nil

		s := o.sw.Session()
		if s.State == StateFailed && s.ActiveEndpointID == id {
			o.sw.Retry()
		}
	})
}

func (o *Orchestrator) armProbe() {
	if o.disposed || o.exhausted || o.policy.RestoreCheckInterval <= 0 || o.reg.IsPrimary(o.active) {
		return
	}

	epoch := o.epoch
	o.probe = o.sched.AfterFunc(o.policy.RestoreCheckInterval, func() { o.probeTick(epoch) })
}

func (o *Orchestrator) probeTick(epoch uint64) {
	if epoch != o.epoch || o.disposed || o.exhausted {
		return
	}

	o.probe = o.sched.AfterFunc(o.policy.RestoreCheckInterval, func() { o.probeTick(epoch) })

	primary := o.reg.Primary()
	o.sched.Go(func(ctx context.Context) func() {
		healthy := o.prober.Probe(ctx, primary)
		return func() { o.probeResult(epoch, healthy) }
	})
}

func (o *Orchestrator) probeResult(epoch uint64, healthy bool) {
	if epoch != o.epoch || o.disposed || o.exhausted || !healthy {
		return
	}

	primary := o.reg.Primary()
	if o.manual {
		o.logger.Debug("primary healthy, manual override keeps current endpoint", "active", o.active)
		return
	}

	o.logger.Info("primary restored", "from", o.active, "to", primary.ID)
	o.m.restorations.Inc()
	if err := o.sw.SwitchEndpoint(primary.ID, false); err != nil {
		o.logger.Error("restore switch failed", "err", err)
	}
}

// Dispose stops all timers; later callbacks do nothing.
func (o *Orchestrator) Dispose() {
	o.disposed = true
	o.stopTimers()
}

func (o *Orchestrator) stopTimers() {
	if o.retry != nil {
		o.retry.Stop()
		o.retry = nil
	}
	if o.probe != nil {
		o.probe.Stop()
		o.probe = nil
	}
}
