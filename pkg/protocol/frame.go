// ABOUTME: Binary media frame encoding
// ABOUTME: One media byte, an 8-byte big-endian timestamp, then the payload
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

// FrameHeaderSize is the size of the binary frame header (media byte + timestamp)
const FrameHeaderSize = 1 + 8

var (
	// ErrShortFrame is returned for binary messages shorter than the header
	ErrShortFrame = errors.New("binary frame too short")

	// ErrUnknownMedia is returned for an unknown media byte
	ErrUnknownMedia = errors.New("unknown media type")
)

// Frame is a decoded binary media frame
type Frame struct {
	Media              transport.MediaType
	PresentationTimeUs int64
	Data               []byte
}

// EncodeFrame builds a binary media frame
func EncodeFrame(media transport.MediaType, presentationTimeUs int64, payload []byte) []byte {
	out := make([]byte, FrameHeaderSize+len(payload))
	out[0] = byte(media)
	binary.BigEndian.PutUint64(out[1:FrameHeaderSize], uint64(presentationTimeUs))
	copy(out[FrameHeaderSize:], payload)
	return out
}

// ParseFrame decodes a binary media frame. Data aliases the input.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	media := transport.MediaType(data[0])
	if media != transport.Audio && media != transport.Video {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownMedia, data[0])
	}
	return Frame{
		Media:              media,
		PresentationTimeUs: int64(binary.BigEndian.Uint64(data[1:FrameHeaderSize])),
		Data:               data[FrameHeaderSize:],
	}, nil
}
