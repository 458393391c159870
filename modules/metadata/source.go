// Package metadata obtains now-playing titles for stream endpoints. Each
// registry.ProtocolKind maps to one Source strategy.
package metadata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

// maxDocumentBytes bounds status document bodies.
const maxDocumentBytes = 1 << 20

// Source yields zero or one record per Next call. Returned errors are
// classified with the failure package and mean "no update"; strategies pace
// themselves so Next may be called in a tight loop.
type Source interface {
	Kind() registry.ProtocolKind
	Next(ctx context.Context) (*Record, error)
	Close() error
}

type Options struct {
	// Client performs every upstream request. It must not carry an overall
	// timeout since push and in-band connections are long-lived.
	Client *http.Client
	Logger *slog.Logger
	Now    func() time.Time

	// OneShot makes in-band sources extract a single block per connection
	// without waiting before the first read.
	OneShot bool
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewSource returns the strategy selected by ep.Protocol.
func NewSource(ep registry.Endpoint, cfg Config, opts Options) Source {
	opts = opts.withDefaults()
	logger := opts.Logger.With("endpoint", ep.ID, "protocol", string(ep.Protocol))

	switch ep.Protocol {
	case registry.StatusDocument:
		return &statusSource{ep: ep, cfg: cfg, client: opts.Client, now: opts.Now, logger: logger}
	case registry.PushChannel:
		return &pushSource{ep: ep, cfg: cfg, client: opts.Client, now: opts.Now, logger: logger}
	default:
		return &inBandSource{ep: ep, cfg: cfg, client: opts.Client, now: opts.Now, logger: logger,
			continuous: cfg.InBandContinuous && !opts.OneShot}
	}
}

// Run calls src.Next until ctx is done, handing records and failures to the
// callbacks on the calling goroutine.
func Run(ctx context.Context, src Source, onRecord func(Record), onFailure func(error)) {
	for ctx.Err() == nil {
		rec, err := src.Next(ctx)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			onFailure(err)
		case rec != nil:
			onRecord(*rec)
		}
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func fetchDocument(ctx context.Context, client *http.Client, uri, userAgent string) ([]byte, error) {
	const op = "fetch status document"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, failure.New(failure.ParseFailure, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, failure.New(failure.TransientNetworkFailure, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure.Newf(failure.TransientNetworkFailure, op, "unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, failure.New(failure.TransientNetworkFailure, op, err)
	}

	return data, nil
}
