package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

type iceStats struct {
	Icestats struct {
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

type iceSource struct {
	Title      string `json:"title"`
	ServerName string `json:"server_name"`
	ListenURL  string `json:"listenurl"`
}

// StatusDocument is the decoded part of an Icecast status-json document.
type StatusDocument struct {
	// HasSource is false when icestats.source is absent or null, which
	// Icecast reports while no encoder is connected.
	HasSource bool

	sources []iceSource
}

// DecodeStatusDocument accepts icestats.source as a single object or a list.
func DecodeStatusDocument(data []byte) (StatusDocument, error) {
	const op = "decode status document"

	var stats iceStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return StatusDocument{}, failure.New(failure.ParseFailure, op, err)
	}

	raw := bytes.TrimSpace(stats.Icestats.Source)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return StatusDocument{}, nil
	}

	doc := StatusDocument{HasSource: true}
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &doc.sources); err != nil {
			return StatusDocument{}, failure.New(failure.ParseFailure, op, err)
		}
	case '{':
		var src iceSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return StatusDocument{}, failure.New(failure.ParseFailure, op, err)
		}
		doc.sources = []iceSource{src}
	default:
		return StatusDocument{}, failure.Newf(failure.ParseFailure, op, "unexpected icestats.source %q", raw[:1])
	}

	return doc, nil
}

// Title picks the source whose listenurl path is mount, else the first one,
// and returns its title, its server_name, or placeholder.
func (d StatusDocument) Title(mount, placeholder string) string {
	if len(d.sources) == 0 {
		return placeholder
	}

	src := d.sources[0]
	if mount != "" {
		for _, s := range d.sources {
			if sameMount(s.ListenURL, mount) {
				src = s
				break
			}
		}
	}

	if t := strings.TrimSpace(src.Title); t != "" {
		return t
	}
	if n := strings.TrimSpace(src.ServerName); n != "" {
		return n
	}
	return placeholder
}

// sameMount compares the path of listenURL with mount, ignoring a leading or
// trailing slash. A mount is never matched as a prefix of a longer one.
func sameMount(listenURL, mount string) bool {
	path := listenURL
	if u, err := url.Parse(listenURL); err == nil {
		path = u.Path
	}
	clean := func(p string) string { return strings.Trim(p, "/") }
	m := clean(mount)
	return m != "" && clean(path) == m
}

// mountOf returns the configured mount or the stream URI path.
func mountOf(ep registry.Endpoint) string {
	if ep.Mount != "" {
		return ep.Mount
	}
	if u, err := url.Parse(ep.StreamURI); err == nil && u.Path != "" && u.Path != "/" {
		return u.Path
	}
	return ""
}

type statusSource struct {
	ep     registry.Endpoint
	cfg    Config
	client *http.Client
	now    func() time.Time
	logger *slog.Logger

	polled bool
}

func (s *statusSource) Kind() registry.ProtocolKind { return registry.StatusDocument }

// Next polls immediately on the first call and after PollInterval on every
// later one.
func (s *statusSource) Next(ctx context.Context) (*Record, error) {
	if s.polled && !sleep(ctx, s.cfg.PollInterval) {
		return nil, nil
	}
	s.polled = true

	return s.fetch(ctx)
}

func (s *statusSource) fetch(ctx context.Context) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	data, err := fetchDocument(ctx, s.client, s.ep.MetadataURI, s.cfg.UserAgent)
	if err != nil {
		return nil, err
	}

	doc, err := DecodeStatusDocument(data)
	if err != nil {
		return nil, err
	}

	return newRecord(doc.Title(mountOf(s.ep), s.cfg.Placeholder), true, s.now()), nil
}

func (s *statusSource) Close() error { return nil }
