package player

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

// FailureSink receives the outcome of each attachment.
type FailureSink interface {
	ReportFailure(endpointID string, kind failure.Kind)
	ReportSuccess(endpointID string)
	EndpointChanged(endpointID string, manual bool)
}

type nopSink struct{}

func (nopSink) ReportFailure(string, failure.Kind) {}
func (nopSink) ReportSuccess(string)               {}
func (nopSink) EndpointChanged(string, bool)       {}

// Controller is the playback state machine. It owns the device attachment
// and is not safe for concurrent use: every method, and every device event
// via the dispatcher, must run on the same goroutine.
type Controller struct {
	reg      *registry.Registry
	device   Device
	sink     FailureSink
	dispatch func(func())
	onChange func(prev, cur Session)
	onTitle  func(endpointID, title string)
	logger   *slog.Logger

	session  Session
	gen      uint64
	attached bool
}

func NewController(reg *registry.Registry, device Device, volume float64, logger *slog.Logger) *Controller {
	c := &Controller{
		reg:      reg,
		device:   device,
		sink:     nopSink{},
		dispatch: func(f func()) { f() },
		logger:   logger,
		session: Session{
			ID:               uuid.NewString(),
			ActiveEndpointID: reg.Primary().ID,
			State:            StateIdle,
			Volume:           clampVolume(volume),
			Status:           "Ready",
		},
	}
	device.SetVolume(c.session.Volume)
	return c
}

func (c *Controller) SetFailureSink(s FailureSink) { c.sink = s }

// SetDispatcher routes device events back onto the controller's goroutine.
func (c *Controller) SetDispatcher(dispatch func(func())) { c.dispatch = dispatch }

// OnChange is called after every session mutation.
func (c *Controller) OnChange(fn func(prev, cur Session)) { c.onChange = fn }

// OnTitle receives in-band titles reported by the device for the current
// attachment.
func (c *Controller) OnTitle(fn func(endpointID, title string)) { c.onTitle = fn }

func (c *Controller) Session() Session { return c.session }

// Start attaches the active endpoint. Starting after exhaustion counts as a
// manual intervention and re-arms automatic failover.
func (c *Controller) Start() error {
	if c.session.State == StateConnecting || c.session.State == StatePlaying {
		return nil
	}

	rearm := c.session.Exhausted
	if rearm {
		c.transition(func(s *Session) { s.Exhausted = false })
		c.sink.EndpointChanged(c.session.ActiveEndpointID, c.session.ManualOverride)
	}

	c.connect("Connecting to " + c.endpointName())
	return nil
}

// Pause is only legal while playing.
func (c *Controller) Pause() error {
	if c.session.State != StatePlaying {
		return errors.Wrapf(ErrIllegalTransition, "pause from %s", c.session.State)
	}

	c.detach()
	c.transition(func(s *Session) {
		s.State = StatePaused
		s.Status = "Paused"
	})
	return nil
}

func (c *Controller) SetVolume(v float64) {
	v = clampVolume(v)
	c.device.SetVolume(v)
	c.transition(func(s *Session) { s.Volume = v })
}

// SwitchEndpoint makes id active. Playback resumes on the new endpoint when
// it was in progress; otherwise the endpoint is only pre-selected.
func (c *Controller) SwitchEndpoint(id string, manual bool) error {
	ep, ok := c.reg.ByID(id)
	if !ok {
		return errors.Wrapf(ErrUnknownEndpoint, "%q", id)
	}

	resume := c.session.State.live()
	status := fmt.Sprintf("Auto-switched to %s", ep.Name())
	if manual {
		status = fmt.Sprintf("Switched to %s", ep.Name())
	}

	c.logger.Info("switching endpoint", "from", c.session.ActiveEndpointID, "to", id, "manual", manual)

	c.detach()
	c.transition(func(s *Session) {
		s.ActiveEndpointID = id
		s.ManualOverride = manual
		s.Exhausted = false
		s.Status = status
		if resume {
			s.State = StateConnecting
		}
	})
	c.sink.EndpointChanged(id, manual)

	if resume {
		c.connect(status)
	}
	return nil
}

// SetAutomatic clears a manual override.
func (c *Controller) SetAutomatic() {
	c.transition(func(s *Session) {
		s.ManualOverride = false
		s.Status = "Automatic failover enabled"
	})
	c.sink.EndpointChanged(c.session.ActiveEndpointID, false)
}

// Retry re-attaches the active endpoint after a failure.
func (c *Controller) Retry() {
	if c.session.State != StateFailed {
		return
	}
	c.connect("Retrying " + c.endpointName())
}

// Exhaust parks the controller when no endpoint is left to try.
func (c *Controller) Exhaust() {
	c.detach()
	c.transition(func(s *Session) {
		s.State = StateIdle
		s.Exhausted = true
		s.Status = "All streams unavailable"
	})
}

// Dispose detaches the device and returns to idle.
func (c *Controller) Dispose() {
	c.detach()
	c.transition(func(s *Session) {
		s.State = StateIdle
		s.Status = "Stopped"
	})
}

func (c *Controller) connect(status string) {
	ep, _ := c.reg.ByID(c.session.ActiveEndpointID)

	c.detach()
	c.gen++
	gen := c.gen
	c.attached = true

	c.transition(func(s *Session) {
		s.State = StateConnecting
		s.Status = status
	})

	notify := func(ev DeviceEvent) {
		c.dispatch(func() { c.handleDeviceEvent(gen, ev) })
	}
	if err := c.device.Attach(ep.StreamURI, notify); err != nil {
		notify(DeviceEvent{Kind: EventError, Err: err})
	}
}

func (c *Controller) detach() {
	if c.attached {
		c.device.Detach()
		c.attached = false
	}
}

func (c *Controller) handleDeviceEvent(gen uint64, ev DeviceEvent) {
	if gen != c.gen || !c.attached {
		return
	}

	active := c.session.ActiveEndpointID
	switch ev.Kind {
	case EventPlayable:
		if c.session.State != StateConnecting {
			return
		}
		c.transition(func(s *Session) {
			s.State = StatePlaying
			s.Status = "Playing via " + c.endpointName()
		})
		c.sink.ReportSuccess(active)

	case EventError:
		if c.session.State != StateConnecting && c.session.State != StatePlaying {
			return
		}
		c.logger.Warn("playback failed", "endpoint", active, "err", ev.Err)
		c.detach()
		c.transition(func(s *Session) {
			s.State = StateFailed
			s.Status = "Playback error on " + c.endpointName()
		})
		c.sink.ReportFailure(active, failure.PlaybackDeviceFailure)

	case EventTitle:
		if c.onTitle != nil && c.session.State.live() {
			c.onTitle(active, ev.Title)
		}
	}
}

func (c *Controller) transition(mutate func(s *Session)) {
	prev := c.session
	mutate(&c.session)
	if c.onChange != nil && prev != c.session {
		c.onChange(prev, c.session)
	}
}

func (c *Controller) endpointName() string {
	ep, _ := c.reg.ByID(c.session.ActiveEndpointID)
	return ep.Name()
}
