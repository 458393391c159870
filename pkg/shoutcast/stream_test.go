package shoutcast

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// icyBody interleaves audio chunks of size metaint with the given blocks.
func icyBody(metaint int, blocks ...[]byte) []byte {
	var buf bytes.Buffer
	for i, block := range blocks {
		buf.Write(bytes.Repeat([]byte{byte('a' + i)}, metaint))
		buf.Write(block)
	}
	return buf.Bytes()
}

func TestNextMetadataRoundTrip(t *testing.T) {
	// 100 audio bytes, length byte 3, then 48 bytes of text padded with NULs.
	text := []byte("StreamTitle='Test Song';")
	block := append([]byte{3}, append(text, make([]byte, 48-len(text))...)...)

	s := NewStream(io.NopCloser(bytes.NewReader(icyBody(100, block))), 100)

	m, err := s.NextMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.StreamTitle != "Test Song" {
		t.Fatalf("StreamTitle = %+v, want Test Song", m)
	}
}

func TestNextMetadataEmptyBlock(t *testing.T) {
	s := NewStream(io.NopCloser(bytes.NewReader(icyBody(16, []byte{0}, EncodeStreamTitle("Second")))), 16)

	m, err := s.NextMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Fatalf("expected no metadata for a zero length byte, got %+v", m)
	}

	m, err = s.NextMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.StreamTitle != "Second" {
		t.Fatalf("second cycle = %+v", m)
	}
}

func TestNextMetadataWithoutMetaInt(t *testing.T) {
	s := NewStream(io.NopCloser(bytes.NewReader([]byte("audio"))), 0)
	if _, err := s.NextMetadata(); err != ErrNoMetaInt {
		t.Fatalf("err = %v, want ErrNoMetaInt", err)
	}
}

func TestNextMetadataTruncated(t *testing.T) {
	body := append(bytes.Repeat([]byte{'x'}, 8), 2, 'S', 't')
	s := NewStream(io.NopCloser(bytes.NewReader(body)), 8)
	if _, err := s.NextMetadata(); err != io.ErrUnexpectedEOF {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReadStripsMetadata(t *testing.T) {
	body := icyBody(10,
		EncodeStreamTitle("One"),
		[]byte{0},
		EncodeStreamTitle("One"),
		EncodeStreamTitle("Two"),
	)

	s := NewStream(io.NopCloser(bytes.NewReader(body)), 10)

	var titles []string
	s.MetadataCallbackFunc = func(m *Metadata) {
		titles = append(titles, m.StreamTitle)
	}

	audio, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}

	want := append(append(append(bytes.Repeat([]byte{'a'}, 10), bytes.Repeat([]byte{'b'}, 10)...), bytes.Repeat([]byte{'c'}, 10)...), bytes.Repeat([]byte{'d'}, 10)...)
	if !bytes.Equal(audio, want) {
		t.Fatalf("audio = %q", audio)
	}

	// The final block follows the last audio chunk and is only read when
	// another Read crosses the boundary, which io.ReadAll does before EOF.
	if len(titles) != 2 || titles[0] != "One" || titles[1] != "Two" {
		t.Fatalf("callback titles = %v", titles)
	}
	if s.Metadata().StreamTitle != "Two" {
		t.Fatalf("Metadata() = %+v", s.Metadata())
	}
}

func TestNewMetadata(t *testing.T) {
	cases := []struct {
		name  string
		block string
		title string
		url   string
	}{
		{name: "title and url", block: "StreamTitle='Artist - Song';StreamUrl='http://x';\x00\x00", title: "Artist - Song", url: "http://x"},
		{name: "first match wins", block: "StreamTitle='First';StreamTitle='Second';", title: "First"},
		{name: "empty title", block: "StreamTitle='';", title: ""},
		{name: "no title", block: "garbage\x00", title: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMetadata([]byte(tc.block))
			if m.StreamTitle != tc.title || m.StreamURL != tc.url {
				t.Fatalf("got %+v", m)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	block := EncodeStreamTitle("Live Track")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			t.Errorf("missing Icy-MetaData request header")
		}
		w.Header().Set("icy-metaint", "32")
		w.Header().Set("icy-name", "Test FM")
		w.Header().Set("icy-br", "128")
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(icyBody(32, block))
	}))
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL+"/live", Options{Client: srv.Client()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.Name != "Test FM" || s.Bitrate != 128 || s.MetaInt() != 32 || s.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected stream headers %+v", s)
	}

	m, err := s.NextMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if m.StreamTitle != "Live Track" {
		t.Fatalf("StreamTitle = %q", m.StreamTitle)
	}
}

func TestOpenStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), srv.URL, Options{Client: srv.Client()})
	se, ok := err.(*StatusError)
	if !ok || se.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want StatusError 404", err)
	}
}

func TestEncodeMetadata(t *testing.T) {
	if got := EncodeMetadata(""); !bytes.Equal(got, []byte{0}) {
		t.Fatalf("EncodeMetadata(\"\") = %v", got)
	}

	got := EncodeMetadata("0123456789abcdef0")
	if got[0] != 2 || len(got) != 33 {
		t.Fatalf("len byte %d, size %d", got[0], len(got))
	}
}
