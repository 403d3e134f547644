package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrMissingAPIKey is returned by New for cloud backends without a credential.
var ErrMissingAPIKey = errors.New("missing api key")

// Kind classifies a failed Ask so callers can pick a policy per failure type.
type Kind string

const (
	KindConfig    Kind = "config"
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindBackend   Kind = "backend"
	KindMalformed Kind = "malformed"
)

// Error is the structured failure returned by every backend.
type Error struct {
	Kind    Kind
	Backend string
	// Status is the HTTP status reported by the backend, 0 if none.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Backend, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, backend string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Err: err}
}

// KindOf classifies err. It returns "" for nil and for errors that did not
// come from a backend call (cancellation included).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return ""
}

// IsRetryable reports whether repeating the same request may succeed:
// transport failures, timeouts, rate limiting and 5xx responses.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	case KindBackend:
		var e *Error
		if errors.As(err, &e) {
			return e.Status == http.StatusTooManyRequests || e.Status >= 500
		}
	}
	return false
}

// transportError maps an http.Client failure onto a Kind. Cancellation by the
// caller is passed through untouched.
func transportError(backend string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, backend, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newError(KindTimeout, backend, err)
	}
	return newError(KindNetwork, backend, err)
}
