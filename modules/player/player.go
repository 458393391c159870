package player

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/streamkeeper/modules/artwork"
	"github.com/zachfi/streamkeeper/modules/metadata"
	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

var module = "player"

// Resolver maps a title to artwork.
type Resolver interface {
	Resolve(ctx context.Context, title string) artwork.Entry
	DefaultImage() string
}

// Listener is told about every new title. It is called on the player's loop
// and must not block.
type Listener interface {
	OnNowPlaying(endpointID string, rec metadata.Record)
}

// NowPlaying is the current title and the artwork resolved for it.
type NowPlaying struct {
	metadata.Record
	Artwork artwork.Entry `json:"artwork"`
}

// Status is a published snapshot; readers never see a partial update.
type Status struct {
	Session    Session           `json:"session"`
	Endpoint   registry.Endpoint `json:"endpoint"`
	NowPlaying *NowPlaying       `json:"nowPlaying,omitempty"`
}

type Dependencies struct {
	// Device defaults to the one named by Config.Device.
	Device    Device
	Client    *http.Client
	UserAgent string

	Prober   Prober
	Sources  func(ep registry.Endpoint) metadata.Source
	Resolver Resolver

	Listeners  []Listener
	Registerer prometheus.Registerer
}

type watcher struct {
	endpointID string
	cancel     context.CancelFunc
	// fromDevice watchers take titles from the device's attachment.
	fromDevice bool
}

// Player runs one playback session and publishes its Status.
type Player struct {
	services.Service
	cfg    *Config
	logger *slog.Logger
	reg    *registry.Registry
	deps   Dependencies
	m      *metrics

	loop   *Loop
	device Device
	ctrl   *Controller
	orch   *Orchestrator
	status atomic.Pointer[Status]

	// Owned by the loop.
	nowPlaying *NowPlaying
	watcher    *watcher
}

func New(cfg Config, reg *registry.Registry, deps Dependencies, logger *slog.Logger) (*Player, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, errors.New("player requires at least one endpoint")
	}
	if deps.Prober == nil || deps.Sources == nil || deps.Resolver == nil {
		return nil, errors.New("player requires a prober, a metadata source factory and an artwork resolver")
	}

	p := &Player{
		cfg:    &cfg,
		logger: logger.With("module", module),
		reg:    reg,
		deps:   deps,
		m:      newMetrics(deps.Registerer),
		loop:   NewLoop(),
	}

	p.device = deps.Device
	if p.device == nil {
		client := deps.Client
		if client == nil {
			client = http.DefaultClient
		}
		d, err := NewDevice(cfg, client, deps.UserAgent, p.logger, p.m)
		if err != nil {
			return nil, err
		}
		p.device = d
	}

	p.ctrl = NewController(reg, p.device, cfg.InitialVolume, p.logger)
	p.ctrl.SetDispatcher(func(f func()) { p.loop.Post(f) })
	p.ctrl.OnChange(p.sessionChanged)
	p.ctrl.OnTitle(p.handleDeviceTitle)

	p.orch = NewOrchestrator(reg, cfg.Failover, p.loop, deps.Prober, p.logger, p.m)
	p.ctrl.SetFailureSink(p.orch)
	p.orch.Bind(p.ctrl)

	p.m.observeSession(Session{}, p.ctrl.Session())
	p.publish()

	p.Service = services.NewBasicService(nil, p.running, p.stopping)

	return p, nil
}

func (p *Player) running(ctx context.Context) error {
	if p.cfg.Autostart {
		p.loop.Post(func() {
			if err := p.ctrl.Start(); err != nil {
				p.logger.Error("autostart failed", "err", err)
			}
		})
	}

	p.logger.Info("player running", "session", p.ctrl.Session().ID, "primary", p.reg.Primary().ID)
	p.loop.Run(ctx)
	return nil
}

// stopping runs after the loop has returned, so it may touch loop state.
func (p *Player) stopping(_ error) error {
	p.orch.Dispose()
	p.ctrl.Dispose()
	p.stopWatcher()
	p.loop.Stop()

	return errors.Wrap(p.device.Close(), "failed to close device")
}

// Status returns the latest snapshot.
func (p *Player) Status() Status { return *p.status.Load() }

func (p *Player) Registry() *registry.Registry { return p.reg }

func (p *Player) Start(ctx context.Context) error {
	return p.call(ctx, p.ctrl.Start)
}

func (p *Player) Pause(ctx context.Context) error {
	return p.call(ctx, p.ctrl.Pause)
}

func (p *Player) SetVolume(ctx context.Context, v float64) error {
	return p.call(ctx, func() error {
		p.ctrl.SetVolume(v)
		return nil
	})
}

// SwitchEndpoint is a user selection and suspends automatic failover until
// SetAutomatic.
func (p *Player) SwitchEndpoint(ctx context.Context, id string) error {
	return p.call(ctx, func() error { return p.ctrl.SwitchEndpoint(id, true) })
}

func (p *Player) SetAutomatic(ctx context.Context) error {
	return p.call(ctx, func() error {
		p.ctrl.SetAutomatic()
		return nil
	})
}

func (p *Player) call(ctx context.Context, f func() error) error {
	var err error
	if cerr := p.loop.Call(ctx, func() { err = f() }); cerr != nil {
		return cerr
	}
	return err
}

func (p *Player) sessionChanged(prev, cur Session) {
	p.m.observeSession(prev, cur)
	p.syncWatcher(cur)
	p.publish()
}

// syncWatcher keeps exactly one metadata watcher running for the active
// endpoint while the session is live.
func (p *Player) syncWatcher(s Session) {
	want := s.State.live()
	if p.watcher != nil && (!want || p.watcher.endpointID != s.ActiveEndpointID) {
		p.stopWatcher()
	}
	if !want || p.watcher != nil {
		return
	}

	ep, ok := p.reg.ByID(s.ActiveEndpointID)
	if !ok {
		return
	}

	if ep.Protocol == registry.InBandBinary && reportsTitles(p.device) {
		p.watcher = &watcher{endpointID: ep.ID, cancel: func() {}, fromDevice: true}
		p.logger.Debug("watching metadata", "endpoint", ep.ID, "protocol", string(ep.Protocol), "via", "device")
		return
	}

	ctx, cancel := context.WithCancel(p.loop.Context())
	w := &watcher{endpointID: ep.ID, cancel: cancel}
	p.watcher = w

	src := p.deps.Sources(ep)
	p.logger.Debug("watching metadata", "endpoint", ep.ID, "protocol", string(src.Kind()))

	p.loop.Go(func(context.Context) func() {
		defer src.Close()
		metadata.Run(ctx, src,
			func(rec metadata.Record) { p.loop.Post(func() { p.handleRecord(w, rec) }) },
			func(err error) { p.loop.Post(func() { p.handleMetadataFailure(w, err) }) },
		)
		return nil
	})
}

func (p *Player) stopWatcher() {
	if p.watcher != nil {
		p.watcher.cancel()
		p.watcher = nil
	}
}

func (p *Player) handleDeviceTitle(endpointID, title string) {
	w := p.watcher
	if w == nil || !w.fromDevice || w.endpointID != endpointID {
		return
	}
	p.handleRecord(w, metadata.StreamTitleRecord(title, time.Now()))
}

func (p *Player) handleRecord(w *watcher, rec metadata.Record) {
	if w != p.watcher {
		return
	}

	p.m.records.WithLabelValues(w.endpointID).Inc()
	if p.ctrl.Session().State == StatePlaying {
		p.orch.ReportSuccess(w.endpointID)
	}

	if cur := p.nowPlaying; cur != nil && cur.RawText == rec.RawText {
		np := *cur
		np.ObservedAt = rec.ObservedAt
		p.nowPlaying = &np
		p.publish()
		return
	}

	p.logger.Info("now playing", "endpoint", w.endpointID, "title", rec.Display())
	p.nowPlaying = &NowPlaying{
		Record: rec,
		Artwork: artwork.Entry{
			ResolvedURI:    p.deps.Resolver.DefaultImage(),
			SourceProvider: artwork.SourceDefault,
			ResolvedAt:     rec.ObservedAt,
		},
	}
	p.publish()

	for _, l := range p.deps.Listeners {
		l.OnNowPlaying(w.endpointID, rec)
	}

	title := rec.RawText
	p.loop.Go(func(ctx context.Context) func() {
		entry := p.deps.Resolver.Resolve(ctx, title)
		return func() { p.applyArtwork(title, entry) }
	})
}

func (p *Player) applyArtwork(title string, entry artwork.Entry) {
	if p.nowPlaying == nil || p.nowPlaying.RawText != title {
		p.m.staleArtwork.Inc()
		return
	}

	np := *p.nowPlaying
	np.Artwork = entry
	p.nowPlaying = &np
	p.publish()
}

func (p *Player) handleMetadataFailure(w *watcher, err error) {
	if w != p.watcher {
		return
	}

	p.logger.Debug("metadata failure", "endpoint", w.endpointID, "err", err)
	p.orch.ReportFailure(w.endpointID, failure.KindOf(err))
}

func (p *Player) publish() {
	s := p.ctrl.Session()
	ep, _ := p.reg.ByID(s.ActiveEndpointID)

	st := &Status{Session: s, Endpoint: ep}
	if p.nowPlaying != nil {
		np := *p.nowPlaying
		st.NowPlaying = &np
	}
	p.status.Store(st)
}
