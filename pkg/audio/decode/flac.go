// ABOUTME: FLAC decode engine
// ABOUTME: Decodes FLAC frames using mewkiz/flac
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACEngine decodes FLAC audio
type FLACEngine struct {
	stream *flac.Stream
	format MediaFormat
	bits   int
	frames int64
}

// NewFLACEngine creates a FLAC engine
func NewFLACEngine() Engine {
	return &FLACEngine{}
}

// Open parses the FLAC stream info block
func (e *FLACEngine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	stream, err := flac.New(r)
	if err != nil {
		return MediaFormat{}, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	e.stream = stream
	e.bits = int(info.BitsPerSample)
	e.format = MediaFormat{
		Channels:   int(info.NChannels),
		SampleRate: int(info.SampleRate),
		Encoding:   encodingForBits(e.bits, opts.Legacy),
	}
	return e.format, nil
}

// Next decodes one FLAC frame
func (e *FLACEngine) Next() (RawBuffer, error) {
	frame, err := e.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return RawBuffer{}, io.EOF
		}
		return RawBuffer{}, fmt.Errorf("flac frame error: %w", err)
	}

	st := sampleTypeFor(e.format.Encoding)
	block := int(frame.BlockSize)
	data := make([]byte, 0, block*e.format.Channels*st.Width())
	for i := 0; i < block; i++ {
		for ch := 0; ch < e.format.Channels; ch++ {
			data = appendInt(data, frame.Subframes[ch].Samples[i], e.bits, st)
		}
	}

	out := RawBuffer{Data: data, PresentationTimeUs: framesToUs(e.frames, e.format.SampleRate)}
	e.frames += int64(block)
	return out, nil
}

// Close releases the stream
func (e *FLACEngine) Close() error {
	if e.stream != nil {
		return e.stream.Close()
	}
	return nil
}
