// Package registry holds the ordered, immutable list of stream endpoints a
// player may choose from. Index 0 is the primary endpoint and the order of
// the remaining entries is the failover priority.
package registry

import (
	"strings"

	"github.com/pkg/errors"
)

// ProtocolKind selects how now-playing metadata is obtained for an endpoint.
type ProtocolKind string

const (
	// StatusDocument polls a JSON status document such as Icecast's
	// status-json.xsl.
	StatusDocument ProtocolKind = "statusDocument"
	// PushChannel subscribes to a server-sent events feed.
	PushChannel ProtocolKind = "pushChannel"
	// InBandBinary reads ICY metadata interleaved with the audio bytes.
	InBandBinary ProtocolKind = "inBandBinary"
)

// ParseProtocolKind accepts the canonical names case-insensitively, plus the
// server-flavour aliases used in older station tables.
func ParseProtocolKind(s string) (ProtocolKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "statusdocument", "status", "icecast":
		return StatusDocument, nil
	case "pushchannel", "push", "sse", "zeno":
		return PushChannel, nil
	case "inbandbinary", "inband", "icy", "shoutcast":
		return InBandBinary, nil
	}
	return "", errors.Errorf("unknown protocol kind %q", s)
}

func (k *ProtocolKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := ParseProtocolKind(s)
	if err != nil {
		return err
	}

	*k = parsed
	return nil
}

// Endpoint is a single candidate stream.
type Endpoint struct {
	ID          string       `yaml:"id" json:"id"`
	DisplayName string       `yaml:"display-name" json:"displayName"`
	StreamURI   string       `yaml:"stream-uri" json:"streamUri"`
	MetadataURI string       `yaml:"metadata-uri,omitempty" json:"metadataUri,omitempty"`
	Protocol    ProtocolKind `yaml:"protocol" json:"protocolKind"`

	// Mount selects the matching source when a status document lists
	// several. When empty the stream URI path is used.
	Mount string `yaml:"mount,omitempty" json:"mount,omitempty"`
}

// Name returns the display name, falling back to the id.
func (e Endpoint) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.ID
}

type Config struct {
	Endpoints []Endpoint `yaml:"endpoints,omitempty"`
}

// Registry is safe for concurrent use; it never changes after New.
type Registry struct {
	endpoints []Endpoint
	index     map[string]int
}

// New validates endpoints and returns a registry preserving their order.
func New(endpoints []Endpoint) (*Registry, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("registry requires at least one endpoint")
	}

	r := &Registry{
		endpoints: make([]Endpoint, len(endpoints)),
		index:     make(map[string]int, len(endpoints)),
	}

	for i, ep := range endpoints {
		if ep.ID == "" {
			return nil, errors.Errorf("endpoint %d has no id", i)
		}
		if _, ok := r.index[ep.ID]; ok {
			return nil, errors.Errorf("duplicate endpoint id %q", ep.ID)
		}
		if ep.StreamURI == "" {
			return nil, errors.Errorf("endpoint %q has no stream uri", ep.ID)
		}

		switch ep.Protocol {
		case StatusDocument, PushChannel:
			if ep.MetadataURI == "" {
				return nil, errors.Errorf("endpoint %q requires a metadata uri for protocol %s", ep.ID, ep.Protocol)
			}
		case InBandBinary:
		default:
			return nil, errors.Errorf("endpoint %q has unknown protocol %q", ep.ID, ep.Protocol)
		}

		r.endpoints[i] = ep
		r.index[ep.ID] = i
	}

	return r, nil
}

// Primary returns the first endpoint.
func (r *Registry) Primary() Endpoint {
	return r.endpoints[0]
}

// IsPrimary reports whether id names the primary endpoint.
func (r *Registry) IsPrimary(id string) bool {
	return r.endpoints[0].ID == id
}

// Next returns the endpoint following afterID. It does not wrap: the last
// endpoint and unknown ids yield false.
func (r *Registry) Next(afterID string) (Endpoint, bool) {
	i, ok := r.index[afterID]
	if !ok || i+1 >= len(r.endpoints) {
		return Endpoint{}, false
	}
	return r.endpoints[i+1], true
}

func (r *Registry) ByID(id string) (Endpoint, bool) {
	i, ok := r.index[id]
	if !ok {
		return Endpoint{}, false
	}
	return r.endpoints[i], true
}

// All returns a copy of the endpoints in priority order.
func (r *Registry) All() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

func (r *Registry) Len() int {
	return len(r.endpoints)
}
