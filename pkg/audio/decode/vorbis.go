// ABOUTME: Ogg Vorbis decode engine
// ABOUTME: Decodes Vorbis streams to float PCM using jfreymuth/oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

const vorbisChunkFrames = 2048

// VorbisEngine decodes Ogg Vorbis audio
type VorbisEngine struct {
	reader *oggvorbis.Reader
	format MediaFormat
	buf    []float32
	frames int64
}

// NewVorbisEngine creates an Ogg Vorbis engine
func NewVorbisEngine() Engine {
	return &VorbisEngine{}
}

// Open reads the Vorbis identification headers
func (e *VorbisEngine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return MediaFormat{}, fmt.Errorf("failed to open ogg vorbis: %w", err)
	}

	e.reader = reader
	e.format = MediaFormat{
		Channels:   reader.Channels(),
		SampleRate: reader.SampleRate(),
		Encoding:   EncodingPCMFloat,
	}
	if opts.Legacy {
		e.format.Encoding = EncodingInvalid
	}
	e.buf = make([]float32, vorbisChunkFrames*e.format.Channels)
	return e.format, nil
}

// Next decodes the next run of interleaved samples
func (e *VorbisEngine) Next() (RawBuffer, error) {
	n, err := e.reader.Read(e.buf)
	n -= n % e.format.Channels
	if n == 0 {
		if err == nil || err == io.EOF {
			return RawBuffer{}, io.EOF
		}
		return RawBuffer{}, fmt.Errorf("vorbis decode error: %w", err)
	}

	st := sampleTypeFor(e.format.Encoding)
	data := make([]byte, 0, n*st.Width())
	for _, f := range e.buf[:n] {
		data = appendFloat(data, f, st)
	}

	out := RawBuffer{Data: data, PresentationTimeUs: framesToUs(e.frames, e.format.SampleRate)}
	e.frames += int64(n / e.format.Channels)
	return out, nil
}

// Close releases the engine
func (e *VorbisEngine) Close() error {
	return nil
}
