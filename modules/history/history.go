// Package history records each new now-playing title. Writes happen off the
// player's loop through a bounded queue; a full queue drops titles rather
// than stall playback.
package history

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zachfi/streamkeeper/modules/metadata"
)

var module = "history"

type History struct {
	services.Service
	cfg    *Config
	logger *slog.Logger

	// store is set once starting opens it; Recent may run before that.
	store   atomic.Pointer[Store]
	pending chan Entry

	recorded prometheus.Counter
	dropped  prometheus.Counter
}

func New(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*History, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}

	f := promauto.With(reg)
	h := &History{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		pending: make(chan Entry, cfg.BufferSize),
		recorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "streamkeeper",
			Subsystem: module,
			Name:      "records_total",
			Help:      "Titles written to the history database.",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "streamkeeper",
			Subsystem: module,
			Name:      "dropped_total",
			Help:      "Titles dropped because the write queue was full or the write failed.",
		}),
	}

	h.Service = services.NewBasicService(h.starting, h.running, h.stopping)

	return h, nil
}

func (h *History) starting(ctx context.Context) error {
	if !h.cfg.Enabled {
		h.logger.Info("history disabled")
		return nil
	}

	store, err := Open(ctx, h.cfg.Path)
	if err != nil {
		return err
	}
	h.store.Store(store)
	h.logger.Info("history ready", "path", h.cfg.Path)
	return nil
}

func (h *History) running(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.drain()
			return nil
		case e := <-h.pending:
			h.write(context.Background(), e)
		}
	}
}

func (h *History) drain() {
	for {
		select {
		case e := <-h.pending:
			h.write(context.Background(), e)
		default:
			return
		}
	}
}

func (h *History) write(ctx context.Context, e Entry) {
	store := h.store.Load()
	if store == nil {
		return
	}
	if _, err := store.Insert(ctx, e); err != nil {
		h.dropped.Inc()
		h.logger.Error("failed to record title", "title", e.RawText, "err", err)
		return
	}
	h.recorded.Inc()
}

func (h *History) stopping(_ error) error {
	return h.store.Load().Close()
}

// OnNowPlaying queues rec for writing and never blocks.
func (h *History) OnNowPlaying(endpointID string, rec metadata.Record) {
	if !h.cfg.Enabled {
		return
	}

	e := Entry{
		PlayedAt:   rec.ObservedAt,
		Title:      rec.Title,
		Artist:     rec.Artist,
		RawText:    rec.RawText,
		EndpointID: endpointID,
	}
	select {
	case h.pending <- e:
	default:
		h.dropped.Inc()
		h.logger.Warn("history queue full, dropping title", "title", rec.RawText)
	}
}

// Recent returns up to limit titles, newest first. A disabled history is
// always empty.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	store := h.store.Load()
	if store == nil {
		return []Entry{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	entries, err := store.Recent(ctx, limit)
	if entries == nil {
		entries = []Entry{}
	}
	return entries, err
}
