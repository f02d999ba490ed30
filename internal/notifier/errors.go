package notifier

import (
	"errors"
	"fmt"
)

// Kind classifies a failure raised by the lint session.
type Kind int

// Failure kinds. Only KindMalformedResponse is ever returned from a lint
// call; the others are reported as warnings and recovered.
const (
	KindServiceUnreachable Kind = iota + 1
	KindProtocolMismatch
	KindConfigParse
	KindMalformedResponse
	KindLaunchFailure
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrServiceUnreachable = errors.New("lint server unreachable")
	ErrProtocolMismatch   = errors.New("lint server protocol mismatch")
	ErrConfigParse        = errors.New("invalid project config")
	ErrMalformedResponse  = errors.New("malformed lint server response")
	ErrLaunchFailure      = errors.New("failed to start lint server")
)

func (k Kind) String() string {
	switch k {
	case KindServiceUnreachable:
		return "service_unreachable"
	case KindProtocolMismatch:
		return "protocol_mismatch"
	case KindConfigParse:
		return "config_parse"
	case KindMalformedResponse:
		return "malformed_response"
	case KindLaunchFailure:
		return "launch_failure"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindServiceUnreachable:
		return ErrServiceUnreachable
	case KindProtocolMismatch:
		return ErrProtocolMismatch
	case KindConfigParse:
		return ErrConfigParse
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindLaunchFailure:
		return ErrLaunchFailure
	default:
		return nil
	}
}

// Error carries a Kind together with the operation and path it concerns.
type Error struct {
	Kind Kind
	Op   string // e.g. "load config", "lint-file"
	Path string // file or URL path, may be empty
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel()
	text := "lint error"
	if msg != nil {
		text = msg.Error()
	}
	if e.Op != "" {
		text = e.Op + ": " + text
	}
	if e.Path != "" {
		text = fmt.Sprintf("%s (%s)", text, e.Path)
	}
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
