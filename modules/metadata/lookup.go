package metadata

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zachfi/streamkeeper/pkg/registry"
)

// Lookup answers one-off now-playing queries without a running watcher. It
// tries the endpoint's own strategy, then in-band metadata from the stream,
// then falls back to the placeholder.
type Lookup struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewLookup(cfg Config, client *http.Client, logger *slog.Logger) *Lookup {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{cfg: cfg, client: client, logger: logger, now: time.Now}
}

func (l *Lookup) NowPlaying(ctx context.Context, ep registry.Endpoint) Record {
	candidates := []registry.Endpoint{ep}
	if ep.Protocol != registry.InBandBinary {
		inband := ep
		inband.Protocol = registry.InBandBinary
		candidates = append(candidates, inband)
	}

	for _, c := range candidates {
		if rec := l.one(ctx, c); rec != nil {
			return *rec
		}
	}

	return Record{Title: l.cfg.Placeholder, RawText: l.cfg.Placeholder, ObservedAt: l.now()}
}

func (l *Lookup) one(ctx context.Context, ep registry.Endpoint) *Record {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout)
	defer cancel()

	src := NewSource(ep, l.cfg, Options{Client: l.client, Logger: l.logger, Now: l.now, OneShot: true})
	defer src.Close()

	rec, err := src.Next(ctx)
	if err != nil {
		l.logger.Debug("now-playing lookup failed", "endpoint", ep.ID, "protocol", string(ep.Protocol), "err", err)
		return nil
	}
	if rec == nil || rec.RawText == "" || rec.RawText == l.cfg.Placeholder {
		return nil
	}

	return rec
}
