package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/grafana/dskit/signals"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/streamkeeper/modules/artwork"
	"github.com/zachfi/streamkeeper/modules/history"
	"github.com/zachfi/streamkeeper/modules/metadata"
	"github.com/zachfi/streamkeeper/modules/player"
	"github.com/zachfi/streamkeeper/modules/token"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

const metricsNamespace = "streamkeeper"

type App struct {
	cfg    Config
	logger *slog.Logger

	// registerer receives every module's collectors.
	registerer prometheus.Registerer
	// client carries upstream stream and metadata requests.
	client *http.Client

	Server   *server.Server
	Registry *registry.Registry
	Artwork  *artwork.Artwork
	History  *history.History
	Tokens   *token.Cache
	Lookup   *metadata.Lookup
	Player   *player.Player

	ModuleManager *modules.Manager
	serviceMap    map[string]services.Service
}

// New creates and returns a new App.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	a := &App{
		cfg:        cfg,
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
		client:     newUpstreamClient(cfg.Player.ConnectTimeout),
	}

	if a.cfg.Target == "" {
		a.cfg.Target = All
	}

	reg, err := registry.New(a.cfg.Registry.Endpoints)
	if err != nil {
		return nil, errors.Wrap(err, "invalid registry")
	}
	a.Registry = reg

	if err := a.setupModuleManager(); err != nil {
		return nil, errors.Wrap(err, "failed to setup module manager")
	}

	return a, nil
}

// newUpstreamClient has no overall timeout since stream bodies are read for
// as long as playback lasts. Response headers must arrive within
// headerTimeout.
func newUpstreamClient(headerTimeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: t}
}

func (a *App) Run() error {
	serviceMap, err := a.ModuleManager.InitModuleServices(a.cfg.Target)
	if err != nil {
		return errors.Wrapf(err, "failed to init module services for target %q", a.cfg.Target)
	}
	a.serviceMap = serviceMap

	servs := []services.Service(nil)
	for _, s := range serviceMap {
		servs = append(servs, s)
	}

	sm, err := services.NewManager(servs...)
	if err != nil {
		return errors.Wrap(err, "failed to start service manager")
	}

	// Listen for events from this manager, and log them.
	healthy := func() { a.logger.Info("started", "target", a.cfg.Target, "endpoints", a.Registry.Len()) }
	stopped := func() { a.logger.Info("stopped") }
	serviceFailed := func(service services.Service) {
		// if any service fails, stop everything
		sm.StopAsync()

		// let's find out which module failed
		for m, s := range serviceMap {
			if s == service {
				if service.FailureCase() == modules.ErrStopProcess {
					a.logger.Info("received stop signal via return error", "module", m, "err", service.FailureCase())
				} else {
					a.logger.Error("module failed", "module", m, "err", service.FailureCase())
				}
				return
			}
		}

		a.logger.Error("module failed", "module", "unknown", "err", service.FailureCase())
	}
	sm.AddListener(services.NewManagerListener(healthy, stopped, serviceFailed))

	// Setup signal handler. If signal arrives, we stop the manager, which stops all the services.
	handler := signals.NewHandler(a.Server.Log)
	go func() {
		handler.Loop()
		sm.StopAsync()
	}()

	// Start all services. This can really only fail if some service is already
	// in other state than New, which should not be the case.
	err = sm.StartAsync(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to start service manager")
	}

	return sm.AwaitStopped(context.Background())
}
