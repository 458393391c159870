package metadata

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/grafana/dskit/backoff"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

type pushMessage struct {
	StreamTitle string `json:"streamTitle"`
	Title       string `json:"title"`
}

// parsePushMessage returns the title carried by one event payload.
func parsePushMessage(data string) (string, bool) {
	var msg pushMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return "", false
	}

	if t := strings.TrimSpace(msg.StreamTitle); t != "" {
		return t, true
	}
	if t := strings.TrimSpace(msg.Title); t != "" {
		return t, true
	}
	return "", false
}

// pushSource holds a server-sent events subscription. The context passed to
// the Next call that opens the subscription bounds its lifetime.
type pushSource struct {
	ep     registry.Endpoint
	cfg    Config
	client *http.Client
	now    func() time.Time
	logger *slog.Logger

	body    io.ReadCloser
	reader  *bufio.Reader
	retries *backoff.Backoff
	failed  bool
}

func (s *pushSource) Kind() registry.ProtocolKind { return registry.PushChannel }

func (s *pushSource) Next(ctx context.Context) (*Record, error) {
	if s.retries == nil {
		s.retries = backoff.New(ctx, reconnectConfig(s.cfg.Reconnect))
	}

	for {
		if s.body == nil {
			if s.failed {
				s.retries.Wait()
				if ctx.Err() != nil {
					return nil, nil
				}
			}

			if err := s.subscribe(ctx); err != nil {
				s.failed = true
				return nil, err
			}
		}

		data, err := s.readEvent()
		if err != nil {
			s.closeBody()
			s.failed = true
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, failure.New(failure.TransientNetworkFailure, "read push channel", err)
		}

		title, ok := parsePushMessage(data)
		if !ok {
			s.logger.Debug("discarding push message", "data", data)
			continue
		}

		s.retries.Reset()
		return newRecord(title, false, s.now()), nil
	}
}

// reconnectConfig keeps the backoff bounds positive and ordered.
func reconnectConfig(cfg backoff.Config) backoff.Config {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	return cfg
}

func (s *pushSource) subscribe(ctx context.Context) error {
	const op = "subscribe push channel"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ep.MetadataURI, nil)
	if err != nil {
		return failure.New(failure.ParseFailure, op, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return failure.New(failure.TransientNetworkFailure, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return failure.Newf(failure.TransientNetworkFailure, op, "unexpected status %d", resp.StatusCode)
	}

	s.logger.Debug("subscribed")
	s.body = resp.Body
	s.reader = bufio.NewReader(resp.Body)

	return nil
}

// readEvent returns the joined data lines of the next dispatched event.
func (s *pushSource) readEvent() (string, error) {
	var data []string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		if field == "data" {
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}
}

func (s *pushSource) closeBody() {
	if s.body != nil {
		s.body.Close()
		s.body = nil
		s.reader = nil
	}
}

func (s *pushSource) Close() error {
	s.closeBody()
	return nil
}
