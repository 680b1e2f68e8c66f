// ABOUTME: MP3 decode engine
// ABOUTME: Decodes MP3 streams to 16-bit stereo PCM using go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit stereo
const (
	mp3Channels    = 2
	mp3FrameBytes  = 4
	mp3ChunkFrames = 1152
)

// MP3Engine decodes MP3 audio
type MP3Engine struct {
	decoder *mp3.Decoder
	format  MediaFormat
	frames  int64
}

// NewMP3Engine creates an MP3 engine
func NewMP3Engine() Engine {
	return &MP3Engine{}
}

// Open parses the first MP3 frame header
func (e *MP3Engine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return MediaFormat{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	e.decoder = decoder
	e.format = MediaFormat{
		Channels:   mp3Channels,
		SampleRate: decoder.SampleRate(),
		Encoding:   encodingForBits(16, opts.Legacy),
	}
	return e.format, nil
}

// Next decodes up to one MPEG frame worth of samples
func (e *MP3Engine) Next() (RawBuffer, error) {
	buf := make([]byte, mp3ChunkFrames*mp3FrameBytes)
	n, err := io.ReadFull(e.decoder, buf)
	n -= n % mp3FrameBytes
	if n == 0 {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return RawBuffer{}, io.EOF
		}
		return RawBuffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return RawBuffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	out := RawBuffer{Data: buf[:n], PresentationTimeUs: framesToUs(e.frames, e.format.SampleRate)}
	e.frames += int64(n / mp3FrameBytes)
	return out, nil
}

// Close releases decoder resources
func (e *MP3Engine) Close() error {
	return nil
}
