// Package failure classifies the errors produced at external call sites so
// that callers can decide whether a failure should influence failover.
package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the classification attached to an Error.
type Kind int

const (
	Unknown Kind = iota
	// TransientNetworkFailure covers timeouts, refused connections and
	// non-2xx upstream responses.
	TransientNetworkFailure
	// ParseFailure covers upstream payloads that could not be interpreted.
	ParseFailure
	// PlaybackDeviceFailure is reported by the output device.
	PlaybackDeviceFailure
	// AllEndpointsExhausted is terminal until a manual action.
	AllEndpointsExhausted
)

func (k Kind) String() string {
	switch k {
	case TransientNetworkFailure:
		return "transient_network"
	case ParseFailure:
		return "parse"
	case PlaybackDeviceFailure:
		return "playback_device"
	case AllEndpointsExhausted:
		return "endpoints_exhausted"
	default:
		return "unknown"
	}
}

// CountsTowardFailover reports whether failures of kind k should be counted
// against the active endpoint.
func CountsTowardFailover(k Kind) bool {
	return k == TransientNetworkFailure || k == PlaybackDeviceFailure
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause satisfies the github.com/pkg/errors causer interface.
func (e *Error) Cause() error { return e.Err }

// New classifies err as kind for operation op. A nil err produces an Error
// without a cause.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf returns the kind of the first Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
