// ABOUTME: WAV decode engine backed by go-audio/wav
// ABOUTME: Emits 8/16-bit PCM natively and wider depths as float
package decode

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavChunkFrames = 2048

// WAVEngine decodes RIFF/WAVE PCM files
type WAVEngine struct {
	dec    *wav.Decoder
	format MediaFormat
	bits   int
	buf    *goaudio.IntBuffer
	frames int64
}

// NewWAVEngine creates a WAV engine
func NewWAVEngine() Engine {
	return &WAVEngine{}
}

// Open reads the WAV header
func (e *WAVEngine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	// go-audio/wav needs to seek between chunks
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return MediaFormat{}, fmt.Errorf("reading wav data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return MediaFormat{}, fmt.Errorf("not a valid wav file")
	}
	if dec.WavAudioFormat != 1 {
		return MediaFormat{}, fmt.Errorf("unsupported wav audio format: %d", dec.WavAudioFormat)
	}

	e.dec = dec
	e.bits = int(dec.BitDepth)
	e.format = MediaFormat{
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
		Encoding:   encodingForBits(e.bits, opts.Legacy),
	}
	e.buf = &goaudio.IntBuffer{
		Data:   make([]int, wavChunkFrames*e.format.Channels),
		Format: &goaudio.Format{NumChannels: e.format.Channels, SampleRate: e.format.SampleRate},
	}

	return e.format, nil
}

// Next decodes the next chunk of frames
func (e *WAVEngine) Next() (RawBuffer, error) {
	n, err := e.dec.PCMBuffer(e.buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return RawBuffer{}, err
		}
		return RawBuffer{}, io.EOF
	}
	n -= n % e.format.Channels

	st := sampleTypeFor(e.format.Encoding)
	data := make([]byte, 0, n*st.Width())
	for _, v := range e.buf.Data[:n] {
		s := int32(v)
		if e.bits == 8 {
			// 8-bit WAV is unsigned
			s -= 128
		}
		data = appendInt(data, s, e.bits, st)
	}

	out := RawBuffer{Data: data, PresentationTimeUs: framesToUs(e.frames, e.format.SampleRate)}
	e.frames += int64(n / e.format.Channels)
	return out, nil
}

// Close releases the engine
func (e *WAVEngine) Close() error {
	return nil
}
