// ABOUTME: Sentinel errors for sample buffer access
// ABOUTME: Buffer misuse is reported with these values
package audio

import "errors"

var (
	// ErrIndexOutOfRange is returned when a sample index is past the buffer end
	ErrIndexOutOfRange = errors.New("sample index out of range")

	// ErrInvalidLayout is returned when a byte region does not hold whole frames
	ErrInvalidLayout = errors.New("buffer length is not a whole number of frames")

	// ErrInvalidSampleType is returned for an unknown sample type tag
	ErrInvalidSampleType = errors.New("invalid sample type")
)
