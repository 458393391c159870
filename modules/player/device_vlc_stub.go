//go:build !libvlc

package player

import (
	"log/slog"

	"github.com/pkg/errors"
)

func newVLCDevice(_ *slog.Logger) (Device, error) {
	return nil, errors.New("vlc device unavailable: rebuild with -tags libvlc")
}
