// ABOUTME: Sentinel errors for the decode pipeline
// ABOUTME: Reported through completion callbacks, matched with errors.Is
package decode

import "errors"

var (
	// ErrDecode is reported when a source cannot be opened or parsed
	ErrDecode = errors.New("decode error")

	// ErrUnsupportedFormat is reported for an unusable target or source format
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNoEngine is returned when no engine is registered for a source
	ErrNoEngine = errors.New("no decode engine for source")

	// ErrStopped is reported when a decode is stopped before end of stream
	ErrStopped = errors.New("decoder stopped")

	// ErrAlreadyStarted is reported when Start is called twice
	ErrAlreadyStarted = errors.New("decoder already started")
)
