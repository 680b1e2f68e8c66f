// ABOUTME: Sentinel errors for streaming sessions
// ABOUTME: Completion callbacks carry these, matched with errors.Is
package session

import "errors"

var (
	// ErrCapabilityUnavailable means negotiation failed; retry after reconnect
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrInvalidState means an operation was called outside its legal state
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotReady means the stream is not READY or STARTED
	ErrNotReady = errors.New("stream not ready")

	// ErrServiceRejected means the head unit refused or dropped the service during start
	ErrServiceRejected = errors.New("service rejected")

	// ErrDisposed means the session was disposed
	ErrDisposed = errors.New("session disposed")
)

// Completion reports the outcome of an asynchronous operation
type Completion func(success bool, err error)

func complete(cb Completion, success bool, err error) {
	if cb != nil {
		cb(success, err)
	}
}
