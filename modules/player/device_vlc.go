//go:build libvlc

package player

import (
	"log/slog"
	"sync"

	vlc "github.com/adrg/libvlc-go/v3"
	"github.com/pkg/errors"

	"github.com/zachfi/streamkeeper/pkg/failure"
)

// vlcDevice plays through libVLC. Calls into libVLC are serialized.
type vlcDevice struct {
	logger *slog.Logger

	mu     sync.Mutex
	player *vlc.Player
	events *vlc.EventManager
	media  *vlc.Media
	ids    []vlc.EventID
}

func newVLCDevice(logger *slog.Logger) (Device, error) {
	if err := vlc.Init("--no-video", "--no-color", "--network-caching=1500", "--http-reconnect"); err != nil {
		return nil, errors.Wrap(err, "libvlc init failed")
	}

	player, err := vlc.NewPlayer()
	if err != nil {
		vlc.Release()
		return nil, errors.Wrap(err, "new vlc player failed")
	}

	events, err := player.EventManager()
	if err != nil {
		player.Release()
		vlc.Release()
		return nil, errors.Wrap(err, "vlc event manager failed")
	}

	return &vlcDevice{logger: logger, player: player, events: events}, nil
}

func (d *vlcDevice) Attach(uri string, notify func(DeviceEvent)) error {
	d.Detach()

	d.mu.Lock()
	defer d.mu.Unlock()

	media, err := vlc.NewMediaFromURL(uri)
	if err != nil {
		return failure.New(failure.PlaybackDeviceFailure, "new media", err)
	}
	_ = media.AddOptions(":icy-metadata=1", ":http-reconnect")

	if err := d.player.SetMedia(media); err != nil {
		media.Release()
		return failure.New(failure.PlaybackDeviceFailure, "set media", err)
	}
	d.media = media

	playing, err := d.events.Attach(vlc.MediaPlayerPlaying, func(vlc.Event, interface{}) {
		notify(DeviceEvent{Kind: EventPlayable})
	}, nil)
	if err != nil {
		return failure.New(failure.PlaybackDeviceFailure, "attach playing event", err)
	}
	d.ids = append(d.ids, playing)

	for _, ev := range []vlc.Event{vlc.MediaPlayerEncounteredError, vlc.MediaPlayerEndReached} {
		id, err := d.events.Attach(ev, func(vlc.Event, interface{}) {
			notify(DeviceEvent{Kind: EventError, Err: failure.Newf(failure.PlaybackDeviceFailure, "vlc", "playback stopped")})
		}, nil)
		if err != nil {
			return failure.New(failure.PlaybackDeviceFailure, "attach error event", err)
		}
		d.ids = append(d.ids, id)
	}

	if err := d.player.Play(); err != nil {
		return failure.New(failure.PlaybackDeviceFailure, "play", err)
	}

	return nil
}

func (d *vlcDevice) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.ids) > 0 {
		d.events.Detach(d.ids...)
		d.ids = nil
	}
	_ = d.player.Stop()
	if d.media != nil {
		d.media.Release()
		d.media = nil
	}
}

func (d *vlcDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.player.SetVolume(int(clampVolume(v) * 100)); err != nil {
		d.logger.Warn("failed to set vlc volume", "err", err)
	}
}

func (d *vlcDevice) Close() error {
	d.Detach()

	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.player.Release()
	vlc.Release()
	return err
}
