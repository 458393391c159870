package metadata

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zachfi/streamkeeper/pkg/registry"
	"github.com/zachfi/streamkeeper/pkg/shoutcast"
)

// inBandSource reads ICY metadata from the audio stream itself. Failures
// never escalate: every error degrades to "no record".
type inBandSource struct {
	ep         registry.Endpoint
	cfg        Config
	client     *http.Client
	now        func() time.Time
	logger     *slog.Logger
	continuous bool

	stream  *shoutcast.Stream
	started bool
	last    string
}

func (s *inBandSource) Kind() registry.ProtocolKind { return registry.InBandBinary }

func (s *inBandSource) Next(ctx context.Context) (*Record, error) {
	if s.started && s.stream == nil && !sleep(ctx, s.cfg.PollInterval) {
		return nil, nil
	}
	s.started = true

	if !s.continuous {
		return s.once(ctx), nil
	}

	if s.stream == nil {
		stream, err := shoutcast.Open(ctx, s.ep.StreamURI, shoutcast.Options{Client: s.client, UserAgent: s.cfg.UserAgent})
		if err != nil {
			s.logger.Debug("in-band connect failed", "err", err)
			return nil, nil
		}
		if stream.MetaInt() == 0 {
			s.logger.Debug("server did not advertise icy-metaint")
			stream.Close()
			return nil, nil
		}
		s.stream = stream
	}

	for {
		m, err := s.stream.NextMetadata()
		if err != nil {
			s.logger.Debug("in-band read failed", "err", err)
			s.stream.Close()
			s.stream = nil
			return nil, nil
		}
		if m == nil || m.StreamTitle == "" || m.StreamTitle == s.last {
			continue
		}

		s.last = m.StreamTitle
		return newRecord(m.StreamTitle, false, s.now()), nil
	}
}

// once connects, extracts at most one metadata block and disconnects.
func (s *inBandSource) once(ctx context.Context) *Record {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	stream, err := shoutcast.Open(ctx, s.ep.StreamURI, shoutcast.Options{Client: s.client, UserAgent: s.cfg.UserAgent})
	if err != nil {
		s.logger.Debug("in-band connect failed", "err", err)
		return nil
	}
	defer stream.Close()

	if stream.MetaInt() == 0 {
		return nil
	}

	m, err := stream.NextMetadata()
	if err != nil || m == nil || m.StreamTitle == "" {
		return nil
	}

	return newRecord(m.StreamTitle, false, s.now())
}

func (s *inBandSource) Close() error {
	if s.stream != nil {
		err := s.stream.Close()
		s.stream = nil
		return err
	}
	return nil
}
