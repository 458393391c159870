package artwork

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var module = "artwork"

// Artwork owns the artifact cache and the resolver built on it.
type Artwork struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	Cache    *FileCache
	Resolver *Resolver
}

// New builds the provider chain from cfg.Providers in order.
func New(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Artwork, error) {
	if cfg.Dir == "" {
		return nil, errors.New("artwork dir is required")
	}

	a := &Artwork{
		cfg:    &cfg,
		logger: logger.With("module", module),
	}

	m := newMetrics(reg)
	client := &http.Client{Timeout: cfg.FetchTimeout}

	var providers []Provider
	for _, name := range cfg.Providers {
		switch name {
		case ProviderYouTube:
			if cfg.YouTube.APIKey == "" {
				a.logger.Info("skipping youtube provider without an api key")
				continue
			}
			providers = append(providers, RateLimited(NewYouTube(cfg.YouTube, client), cfg.LookupsPerMinute))
		case ProviderITunes:
			providers = append(providers, RateLimited(NewITunes(cfg.ITunes, client), cfg.LookupsPerMinute))
		default:
			return nil, errors.Errorf("unknown artwork provider %q", name)
		}
	}

	a.Cache = NewFileCache(cfg.Dir, cfg.URLPrefix, NewFetcher(client, cfg.MaxImageBytes), cfg.FetchTimeout, a.logger, m)
	a.Resolver = NewResolver(a.Cache, providers, cfg.DefaultImage, a.logger, m)

	a.Service = services.NewIdleService(a.starting, nil)

	return a, nil
}

func (a *Artwork) starting(_ context.Context) error {
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create artwork dir")
	}
	a.logger.Info("artwork cache ready", "dir", a.cfg.Dir, "providers", len(a.Resolver.providers))
	return nil
}
