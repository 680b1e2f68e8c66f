// ABOUTME: Raw PCM decode engine
// ABOUTME: Passes headerless PCM through in fixed-size buffers
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

const pcmChunkFrames = 1024

// PCMEngine reads headerless little-endian PCM of a known format
type PCMEngine struct {
	r      io.Reader
	raw    audio.Format
	legacy bool
	format MediaFormat
	frames int64
}

// NewPCMEngine creates a raw PCM engine
func NewPCMEngine() Engine {
	return &PCMEngine{}
}

// Open validates the raw format supplied in the options
func (e *PCMEngine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	if opts.Raw == nil {
		return MediaFormat{}, fmt.Errorf("raw pcm requires a format")
	}
	if err := opts.Raw.Validate(); err != nil {
		return MediaFormat{}, err
	}

	e.r = r
	e.raw = *opts.Raw
	e.legacy = opts.Legacy
	e.format = MediaFormat{
		Channels:   e.raw.Channels,
		SampleRate: e.raw.SampleRate,
		Encoding:   encodingForBits(e.raw.SampleType.Bits(), opts.Legacy),
	}
	return e.format, nil
}

// Next reads the next chunk of whole frames
func (e *PCMEngine) Next() (RawBuffer, error) {
	frameSize := e.raw.FrameSize()
	buf := make([]byte, pcmChunkFrames*frameSize)

	n, err := io.ReadFull(e.r, buf)
	n -= n % frameSize
	if n == 0 {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return RawBuffer{}, io.EOF
		}
		return RawBuffer{}, err
	}
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return RawBuffer{}, err
	}

	data := buf[:n]
	if e.legacy && e.raw.SampleType != audio.Signed16 {
		data, err = toSigned16(data, e.raw)
		if err != nil {
			return RawBuffer{}, err
		}
	}

	out := RawBuffer{Data: data, PresentationTimeUs: framesToUs(e.frames, e.raw.SampleRate)}
	e.frames += int64(n / frameSize)
	return out, nil
}

// Close releases the engine
func (e *PCMEngine) Close() error {
	return nil
}

// toSigned16 converts PCM of any supported type to 16-bit
func toSigned16(data []byte, format audio.Format) ([]byte, error) {
	src, err := audio.WrapFormat(data, format, binary.LittleEndian, 0)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, src.Len()*2)
	for i := 0; i < src.Len(); i++ {
		v, _ := src.Get(i)
		out = binary.LittleEndian.AppendUint16(out, uint16(audio.ToInt16(v)))
	}
	return out, nil
}
