package metadata

import (
	"context"
	"net/http"

	"github.com/zachfi/streamkeeper/pkg/registry"
)

// Prober answers whether an endpoint is currently serving.
type Prober struct {
	cfg    Config
	client *http.Client
}

func NewProber(cfg Config, client *http.Client) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{cfg: cfg, client: client}
}

// Probe reports a healthy status document (2xx, parseable, with a source)
// for status endpoints, and a 2xx stream response for the others.
func (p *Prober) Probe(ctx context.Context, ep registry.Endpoint) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	if ep.Protocol == registry.StatusDocument {
		data, err := fetchDocument(ctx, p.client, ep.MetadataURI, p.cfg.UserAgent)
		if err != nil {
			return false
		}
		doc, err := DecodeStatusDocument(data)
		return err == nil && doc.HasSource
	}

	return p.reachable(ctx, ep.StreamURI)
}

func (p *Prober) reachable(ctx context.Context, uri string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return false
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
