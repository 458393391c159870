package player

import (
	"github.com/pkg/errors"
)

var (
	ErrIllegalTransition = errors.New("illegal playback transition")
	ErrUnknownEndpoint   = errors.New("unknown endpoint")
)

// State of the playback controller.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StatePaused
	StateFailed
)

var states = []State{StateIdle, StateConnecting, StatePlaying, StatePaused, StateFailed}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// live reports whether the controller holds, or is acquiring, an attachment.
func (s State) live() bool {
	return s == StateConnecting || s == StatePlaying || s == StateFailed
}

// Session is the controller's view of playback. It is a value type; copies
// handed out are snapshots.
type Session struct {
	ID               string  `json:"id"`
	ActiveEndpointID string  `json:"activeEndpointId"`
	State            State   `json:"state"`
	Volume           float64 `json:"volume"`
	ManualOverride   bool    `json:"manualOverride"`
	Exhausted        bool    `json:"exhausted"`
	Status           string  `json:"status"`
}

func clampVolume(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
