package shoutcast

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const defaultUserAgent = "streamkeeper/1.0"

// ErrNoMetaInt is returned by NextMetadata for streams that did not
// advertise icy-metaint.
var ErrNoMetaInt = errors.New("stream has no icy-metaint")

// StatusError is returned by Open when the server answers with a non-2xx
// status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// MetadataCallbackFunc is called from Read when the stream metadata changes.
type MetadataCallbackFunc func(m *Metadata)

// Options tune Open.
type Options struct {
	// Client is used for the stream request. The default client has no
	// overall timeout so the body can be read indefinitely; the context
	// passed to Open bounds the connection instead.
	Client    *http.Client
	UserAgent string
}

var streamClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
	},
}

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Bitrate of the server
	Bitrate int

	// ContentType is the audio MIME type announced by the server.
	ContentType string

	// Optional function to be executed when stream metadata changes
	MetadataCallbackFunc MetadataCallbackFunc

	// Amount of audio bytes between metadata blocks, 0 when absent.
	metaint int

	// The last decoded metadata block
	metadata *Metadata

	// The number of audio bytes read since the last metadata block
	pos int

	r  *bufio.Reader
	rc io.Closer
}

// Open connects to url, asking the server to interleave metadata. Playlist
// URLs are resolved first. The returned stream stays bound to ctx: cancelling
// it aborts any blocked Read.
func Open(ctx context.Context, url string, opts Options) (*Stream, error) {
	client := opts.Client
	if client == nil {
		client = streamClient
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	if IsPlaylistURL(url) {
		resolved, err := ResolvePlaylist(ctx, client, url, ua)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve playlist")
		}
		url = resolved
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	// Some servers send a bogus value here; the bitrate is informational.
	bitrate, _ := strconv.Atoi(resp.Header.Get("icy-br"))

	var metaint int
	if raw := resp.Header.Get("icy-metaint"); raw != "" {
		metaint, err = strconv.Atoi(raw)
		if err != nil || metaint < 0 {
			resp.Body.Close()
			return nil, errors.Errorf("cannot parse icy-metaint %q", raw)
		}
	}

	s := NewStream(resp.Body, metaint)
	s.Name = resp.Header.Get("icy-name")
	s.Genre = resp.Header.Get("icy-genre")
	s.Description = resp.Header.Get("icy-description")
	s.URL = resp.Header.Get("icy-url")
	s.Bitrate = bitrate
	s.ContentType = resp.Header.Get("Content-Type")

	return s, nil
}

// NewStream wraps an already connected body. metaint is the advertised
// icy-metaint, 0 for a stream without interleaved metadata.
func NewStream(rc io.ReadCloser, metaint int) *Stream {
	return &Stream{
		metaint: metaint,
		r:       bufio.NewReader(rc),
		rc:      rc,
	}
}

// MetaInt returns the number of audio bytes between metadata blocks.
func (s *Stream) MetaInt() int { return s.metaint }

// Metadata returns the most recently decoded block, or nil.
func (s *Stream) Metadata() *Metadata { return s.metadata }

// Read implements io.Reader, returning only audio bytes. Reads never span a
// metadata boundary, so n may be less than len(buf).
func (s *Stream) Read(buf []byte) (int, error) {
	if s.metaint <= 0 {
		return s.r.Read(buf)
	}

	if s.pos == s.metaint {
		m, err := s.readBlock()
		if err != nil {
			return 0, err
		}
		s.observe(m)
	}

	want := s.metaint - s.pos
	if want > len(buf) {
		want = len(buf)
	}

	n, err := s.r.Read(buf[:want])
	s.pos += n
	return n, err
}

// NextMetadata skips the audio remaining in the current cycle and decodes the
// block that follows it. A zero length byte yields (nil, nil).
func (s *Stream) NextMetadata() (*Metadata, error) {
	if s.metaint <= 0 {
		return nil, ErrNoMetaInt
	}

	if remaining := s.metaint - s.pos; remaining > 0 {
		n, err := s.r.Discard(remaining)
		s.pos += n
		if err != nil {
			return nil, err
		}
	}

	m, err := s.readBlock()
	if err != nil {
		return nil, err
	}
	s.observe(m)

	return m, nil
}

func (s *Stream) readBlock() (*Metadata, error) {
	l, err := s.r.ReadByte()
	if err != nil {
		return nil, err
	}
	s.pos = 0

	if l == 0 {
		return nil, nil
	}

	block := make([]byte, int(l)*16)
	if _, err := io.ReadFull(s.r, block); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return NewMetadata(block), nil
}

func (s *Stream) observe(m *Metadata) {
	if m == nil || m.Equals(s.metadata) {
		return
	}
	s.metadata = m
	if s.MetadataCallbackFunc != nil {
		s.MetadataCallbackFunc(m)
	}
}

// Close closes the stream
func (s *Stream) Close() error {
	return s.rc.Close()
}
