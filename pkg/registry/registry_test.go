package registry

import (
	"testing"

	yaml "gopkg.in/yaml.v2"
)

func testEndpoints() []Endpoint {
	return []Endpoint{
		{ID: "railway", DisplayName: "Railway", StreamURI: "http://primary/live", MetadataURI: "http://primary/status-json.xsl", Protocol: StatusDocument},
		{ID: "zeno", DisplayName: "Zeno", StreamURI: "http://backup/stream", MetadataURI: "http://backup/events", Protocol: PushChannel},
		{ID: "raw", StreamURI: "http://raw/stream", Protocol: InBandBinary},
	}
}

func TestRegistryOrder(t *testing.T) {
	r, err := New(testEndpoints())
	if err != nil {
		t.Fatal(err)
	}

	if got := r.Primary().ID; got != "railway" {
		t.Fatalf("Primary() = %q", got)
	}
	if !r.IsPrimary("railway") || r.IsPrimary("zeno") {
		t.Fatal("IsPrimary mismatch")
	}

	next, ok := r.Next("railway")
	if !ok || next.ID != "zeno" {
		t.Fatalf("Next(railway) = %q, %v", next.ID, ok)
	}
	next, ok = r.Next("zeno")
	if !ok || next.ID != "raw" {
		t.Fatalf("Next(zeno) = %q, %v", next.ID, ok)
	}
	if _, ok := r.Next("raw"); ok {
		t.Fatal("Next must not wrap past the last endpoint")
	}
	if _, ok := r.Next("missing"); ok {
		t.Fatal("Next of unknown id must yield none")
	}

	if ep, ok := r.ByID("raw"); !ok || ep.Name() != "raw" {
		t.Fatalf("ByID(raw) = %+v, %v", ep, ok)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d", r.Len())
	}
}

func TestRegistryAllIsACopy(t *testing.T) {
	r, err := New(testEndpoints())
	if err != nil {
		t.Fatal(err)
	}

	all := r.All()
	all[0].ID = "mutated"
	if r.Primary().ID != "railway" {
		t.Fatal("All() exposed internal state")
	}
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name      string
		endpoints []Endpoint
	}{
		{name: "empty", endpoints: nil},
		{name: "missing id", endpoints: []Endpoint{{StreamURI: "http://a", Protocol: InBandBinary}}},
		{name: "duplicate", endpoints: []Endpoint{
			{ID: "a", StreamURI: "http://a", Protocol: InBandBinary},
			{ID: "a", StreamURI: "http://b", Protocol: InBandBinary},
		}},
		{name: "missing stream", endpoints: []Endpoint{{ID: "a", Protocol: InBandBinary}}},
		{name: "status without metadata uri", endpoints: []Endpoint{{ID: "a", StreamURI: "http://a", Protocol: StatusDocument}}},
		{name: "unknown protocol", endpoints: []Endpoint{{ID: "a", StreamURI: "http://a", Protocol: "carrier-pigeon"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.endpoints); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestProtocolKindYAML(t *testing.T) {
	doc := `
endpoints:
  - id: railway
    stream-uri: http://primary/live
    metadata-uri: http://primary/status-json.xsl
    protocol: icecast
  - id: zeno
    stream-uri: http://backup/stream
    metadata-uri: http://backup/events
    protocol: zeno
  - id: raw
    stream-uri: http://raw/stream
    protocol: inBandBinary
`
	var cfg Config
	if err := yaml.UnmarshalStrict([]byte(doc), &cfg); err != nil {
		t.Fatal(err)
	}

	want := []ProtocolKind{StatusDocument, PushChannel, InBandBinary}
	for i, ep := range cfg.Endpoints {
		if ep.Protocol != want[i] {
			t.Errorf("endpoint %d protocol = %q, want %q", i, ep.Protocol, want[i])
		}
	}

	if err := yaml.Unmarshal([]byte("endpoints: [{id: a, protocol: morse}]"), &cfg); err == nil {
		t.Fatal("expected unknown protocol to fail")
	}
}
