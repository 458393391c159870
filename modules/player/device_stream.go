package player

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zachfi/streamkeeper/pkg/failure"
	"github.com/zachfi/streamkeeper/pkg/shoutcast"
)

// StreamOptions tune a StreamDevice. Zero values take the package defaults.
type StreamOptions struct {
	UserAgent string
	// PlayableBytes is how much of the stream is inspected for an audio
	// frame before the attachment fails.
	PlayableBytes int
	// ConnectTimeout bounds the time from Attach to the first audio frame,
	// headers included.
	ConnectTimeout time.Duration
	// StallTimeout bounds the gap between two reads once playable.
	StallTimeout time.Duration
}

// StreamDevice consumes the stream without decoding it. It reports the
// attachment playable once an audio frame arrives, which makes it suitable
// for headless relays and monitoring. In-band titles stripped from the stream
// are reported as EventTitle.
type StreamDevice struct {
	client  *http.Client
	opts    StreamOptions
	logger  *slog.Logger
	metrics *metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	volume float64
}

func NewStreamDevice(client *http.Client, opts StreamOptions, logger *slog.Logger, m *metrics) *StreamDevice {
	if opts.PlayableBytes <= 0 {
		opts.PlayableBytes = defaultPlayableBytes
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = defaultStallTimeout
	}
	if m == nil {
		m = newMetrics(nil)
	}
	return &StreamDevice{
		client:  client,
		opts:    opts,
		logger:  logger,
		metrics: m,
		volume:  1,
	}
}

func (d *StreamDevice) ReportsTitles() bool { return true }

func (d *StreamDevice) Attach(uri string, notify func(DeviceEvent)) error {
	d.Detach()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel, d.done = cancel, done
	d.mu.Unlock()

	go func() {
		defer close(done)
		d.consume(ctx, uri, notify)
	}()

	return nil
}

// consume reads the stream until ctx is cancelled by Detach or the stream
// fails. A watchdog aborts the connection when it makes no progress.
func (d *StreamDevice) consume(ctx context.Context, uri string, notify func(DeviceEvent)) {
	readCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	watchdog := time.AfterFunc(d.opts.ConnectTimeout, func() {
		abort(errors.New("stream stalled"))
	})
	defer watchdog.Stop()

	fail := func(op string, err error) {
		if ctx.Err() != nil {
			return
		}
		if cause := context.Cause(readCtx); cause != nil {
			op, err = "watchdog", cause
		}
		d.logger.Debug("stream device failed", "op", op, "uri", uri, "err", err)
		notify(DeviceEvent{Kind: EventError, Err: failure.New(failure.PlaybackDeviceFailure, op, err)})
	}

	stream, err := shoutcast.Open(readCtx, uri, shoutcast.Options{Client: d.client, UserAgent: d.opts.UserAgent})
	if err != nil {
		fail("open stream", err)
		return
	}
	defer stream.Close()

	stream.MetadataCallbackFunc = func(m *shoutcast.Metadata) {
		if m.StreamTitle != "" {
			notify(DeviceEvent{Kind: EventTitle, Title: m.StreamTitle})
		}
	}

	buf := make([]byte, 16*1024)
	head := make([]byte, 0, d.opts.PlayableBytes)
	playable := false

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			d.metrics.deviceBytes.Add(float64(n))

			if playable {
				watchdog.Reset(d.opts.StallTimeout)
			} else {
				head = append(head, buf[:n]...)
				switch {
				case looksLikeAudio(head):
					playable = true
					head = nil
					watchdog.Reset(d.opts.StallTimeout)
					notify(DeviceEvent{Kind: EventPlayable})
				case len(head) >= d.opts.PlayableBytes:
					fail("probe stream", errors.Errorf("no audio frames in the first %d bytes", len(head)))
					return
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				err = errors.New("stream ended")
			}
			fail("read stream", err)
			return
		}
	}
}

// Detach stops the current attachment and waits for its reader to exit.
func (d *StreamDevice) Detach() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetVolume records the level; the stream device has no audible output.
func (d *StreamDevice) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = clampVolume(v)
	d.mu.Unlock()
}

func (d *StreamDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *StreamDevice) Close() error {
	d.Detach()
	return nil
}
