package crawler

import "errors"

var (
	// ErrChannelNotFound signals that the requested channel row does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrTransient marks failures worth retrying on a later attempt (timeouts, 5xx, throttling).
	ErrTransient = errors.New("transient failure")
	// ErrFatal marks failures that will not succeed on retry (bad credentials, unknown channel).
	ErrFatal = errors.New("fatal failure")
)

// IsTransient reports whether err is marked transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
