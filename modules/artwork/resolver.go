package artwork

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/streamkeeper/pkg/slug"
)

const (
	SourceCache   = "cache"
	SourceDefault = "default"
)

var tracer = otel.Tracer("github.com/zachfi/streamkeeper/modules/artwork")

// Cache is the part of FileCache the resolver needs.
type Cache interface {
	Get(key string) (string, bool)
	Put(ctx context.Context, key, sourceURI string) (string, error)
}

// Entry is the outcome of one resolution.
type Entry struct {
	CacheKey       string    `json:"cacheKey"`
	ResolvedURI    string    `json:"resolvedUri"`
	SourceProvider string    `json:"sourceProvider"`
	ResolvedAt     time.Time `json:"resolvedAt"`
}

// Resolver walks the cache and then each provider in order; the first
// success wins and the default image closes the chain.
type Resolver struct {
	cache        Cache
	providers    []Provider
	defaultImage string
	logger       *slog.Logger
	metrics      *metrics
	now          func() time.Time
}

func NewResolver(cache Cache, providers []Provider, defaultImage string, logger *slog.Logger, m *metrics) *Resolver {
	if m == nil {
		m = newMetrics(nil)
	}
	return &Resolver{
		cache:        cache,
		providers:    providers,
		defaultImage: defaultImage,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// DefaultImage is returned when nothing else resolves.
func (r *Resolver) DefaultImage() string { return r.defaultImage }

// Resolve never fails; provider errors only move the chain along.
func (r *Resolver) Resolve(ctx context.Context, title string) Entry {
	key := slug.Make(title)

	ctx, span := tracer.Start(ctx, "artwork.Resolve", trace.WithAttributes(
		attribute.String("title", title),
		attribute.String("cache_key", key),
	))
	defer span.End()

	entry := r.resolve(ctx, key, strings.TrimSpace(title))
	span.SetAttributes(attribute.String("source", entry.SourceProvider))
	r.metrics.resolutions.WithLabelValues(entry.SourceProvider).Inc()

	return entry
}

func (r *Resolver) resolve(ctx context.Context, key, title string) Entry {
	if title == "" {
		return r.entry(key, r.defaultImage, SourceDefault)
	}

	if uri, ok := r.cache.Get(key); ok {
		return r.entry(key, uri, SourceCache)
	}

	for _, p := range r.providers {
		if ctx.Err() != nil {
			break
		}

		if stored, ok := r.try(ctx, p, key, title); ok {
			return r.entry(key, stored, p.Name())
		}
	}

	return r.entry(key, r.defaultImage, SourceDefault)
}

func (r *Resolver) try(ctx context.Context, p Provider, key, title string) (string, bool) {
	ctx, span := tracer.Start(ctx, "artwork.Lookup", trace.WithAttributes(attribute.String("provider", p.Name())))
	defer span.End()

	remote, err := p.Lookup(ctx, title)
	if err != nil {
		r.fail(span, p, "lookup failed", err)
		return "", false
	}
	if remote == "" {
		return "", false
	}

	stored, err := r.cache.Put(ctx, key, remote)
	if err != nil {
		r.fail(span, p, "store failed", err)
		return "", false
	}

	return stored, true
}

func (r *Resolver) fail(span trace.Span, p Provider, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	r.metrics.providerErrors.WithLabelValues(p.Name()).Inc()
	r.logger.Debug("artwork "+msg, "provider", p.Name(), "err", err)
}

func (r *Resolver) entry(key, uri, source string) Entry {
	return Entry{CacheKey: key, ResolvedURI: uri, SourceProvider: source, ResolvedAt: r.now()}
}
