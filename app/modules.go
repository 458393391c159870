package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/streamkeeper/modules/api"
	"github.com/zachfi/streamkeeper/modules/artwork"
	"github.com/zachfi/streamkeeper/modules/history"
	"github.com/zachfi/streamkeeper/modules/metadata"
	"github.com/zachfi/streamkeeper/modules/player"
	"github.com/zachfi/streamkeeper/modules/token"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

const (
	Server string = "server"

	Artwork string = "artwork"
	History string = "history"
	Token   string = "token"
	Player  string = "player"
	API     string = "api"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(kitlog.NewLogfmtLogger(os.Stderr))
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Artwork, a.initArtwork)
	mm.RegisterModule(History, a.initHistory)
	mm.RegisterModule(Token, a.initToken, modules.UserInvisibleModule)
	mm.RegisterModule(Player, a.initPlayer)
	mm.RegisterModule(API, a.initAPI)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		// Server:       nil,
		Artwork: {Server},
		History: {Server},
		Token:   {Server},
		Player:  {Server, Artwork, History},
		API:     {Server, Player, Token},

		All: {API},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initArtwork() (services.Service, error) {
	art, err := artwork.New(a.cfg.Artwork, a.logger, a.registerer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Artwork)
	}
	a.Artwork = art

	return art, nil
}

func (a *App) initHistory() (services.Service, error) {
	h, err := history.New(a.cfg.History, a.logger, a.registerer)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+History)
	}
	a.History = h

	return h, nil
}

// initToken has no lifecycle of its own.
func (a *App) initToken() (services.Service, error) {
	a.Tokens = token.New(a.cfg.Token, nil, a.logger)
	if !a.Tokens.Enabled() {
		a.logger.Info("token endpoint disabled, no client credentials configured")
	}

	return nil, nil
}

func (a *App) initPlayer() (services.Service, error) {
	p, err := player.New(a.cfg.Player, a.Registry, player.Dependencies{
		Client:    a.client,
		UserAgent: a.cfg.Metadata.UserAgent,
		Prober:    metadata.NewProber(a.cfg.Metadata, a.client),
		Sources: func(ep registry.Endpoint) metadata.Source {
			return metadata.NewSource(ep, a.cfg.Metadata, metadata.Options{Client: a.client, Logger: a.logger})
		},
		Resolver:   a.Artwork.Resolver,
		Listeners:  []player.Listener{a.History},
		Registerer: a.registerer,
	}, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Player)
	}
	a.Player = p

	return p, nil
}

// initAPI registers routes on the server router; it runs no service.
func (a *App) initAPI() (services.Service, error) {
	a.Lookup = metadata.NewLookup(a.cfg.Metadata, a.client, a.logger)

	api.New(api.Dependencies{
		Player:        a.Player,
		Lookup:        a.Lookup,
		Tokens:        a.Tokens,
		Artifacts:     a.Artwork.Cache,
		History:       a.History,
		ArtworkPrefix: a.cfg.Artwork.URLPrefix,
	}, a.logger).RegisterRoutes(a.Server.HTTP)

	return nil, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = kitlog.NewLogfmtLogger(os.Stderr)

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}

		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}

			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		slog.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
