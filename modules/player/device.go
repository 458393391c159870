package player

import (
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
)

type EventKind int

const (
	EventPlayable EventKind = iota
	EventError
	// EventTitle carries an in-band title read from the attached stream.
	EventTitle
)

// DeviceEvent is reported asynchronously by a Device for its current
// attachment.
type DeviceEvent struct {
	Kind  EventKind
	Err   error
	Title string
}

// Device is the audio output. Only the Controller calls it.
type Device interface {
	// Attach begins playing uri, replacing any previous attachment. notify
	// may be called from any goroutine and must not block.
	Attach(uri string, notify func(DeviceEvent)) error
	Detach()
	SetVolume(v float64)
	Close() error
}

// TitleReporter is implemented by devices that emit EventTitle, so in-band
// endpoints need no second connection for their metadata.
type TitleReporter interface {
	ReportsTitles() bool
}

func reportsTitles(d Device) bool {
	tr, ok := d.(TitleReporter)
	return ok && tr.ReportsTitles()
}

// NewDevice builds the device named by cfg.Device.
func NewDevice(cfg Config, client *http.Client, userAgent string, logger *slog.Logger, m *metrics) (Device, error) {
	switch cfg.Device {
	case "", DeviceStream:
		return NewStreamDevice(client, StreamOptions{
			UserAgent:      userAgent,
			PlayableBytes:  cfg.PlayableBytes,
			ConnectTimeout: cfg.ConnectTimeout,
			StallTimeout:   cfg.StallTimeout,
		}, logger, m), nil
	case DeviceVLC:
		return newVLCDevice(logger)
	}
	return nil, errors.Errorf("unknown device %q", cfg.Device)
}
