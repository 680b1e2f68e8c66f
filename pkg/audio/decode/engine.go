// ABOUTME: Platform decode engine abstraction
// ABOUTME: Defines media formats, raw buffers and sample packing helpers
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// PCMEncodingLevel is the lowest engine level that reports PCM encoding
// metadata. Engines below it always emit 16-bit samples.
const PCMEncodingLevel = 24

// Encoding is the PCM encoding an engine reports for its output
type Encoding int

const (
	EncodingInvalid Encoding = iota
	EncodingPCM8
	EncodingPCM16
	EncodingPCMFloat
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM8:
		return "pcm8"
	case EncodingPCM16:
		return "pcm16"
	case EncodingPCMFloat:
		return "pcmfloat"
	default:
		return "invalid"
	}
}

// MediaFormat is the output format reported by an engine
type MediaFormat struct {
	Channels   int
	SampleRate int
	Encoding   Encoding
}

func (f MediaFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%v", f.SampleRate, f.Channels, f.Encoding)
}

// EngineOptions configures an engine when it is opened
type EngineOptions struct {
	// Legacy engines emit 16-bit samples and report EncodingInvalid
	Legacy bool

	// Raw describes headerless PCM input
	Raw *audio.Format
}

// RawBuffer is one buffer of decoded samples in the engine's output format
type RawBuffer struct {
	Data               []byte
	PresentationTimeUs int64

	// Format is set when the engine's output format changed at this buffer
	Format *MediaFormat
}

// Engine decodes one source stream.
// Next returns io.EOF after the last buffer.
type Engine interface {
	Open(r io.Reader, opts EngineOptions) (MediaFormat, error)
	Next() (RawBuffer, error)
	Close() error
}

// encodingForBits picks the encoding an engine emits for integer samples
func encodingForBits(bits int, legacy bool) Encoding {
	if legacy {
		return EncodingInvalid
	}
	switch {
	case bits <= 8:
		return EncodingPCM8
	case bits <= 16:
		return EncodingPCM16
	default:
		return EncodingPCMFloat
	}
}

// sampleTypeFor maps an encoding to the storage it implies
func sampleTypeFor(enc Encoding) audio.SampleType {
	switch enc {
	case EncodingPCM8:
		return audio.Unsigned8
	case EncodingPCMFloat:
		return audio.Float32
	default:
		return audio.Signed16
	}
}

// appendInt appends a signed integer sample of the given bit depth as st
func appendInt(dst []byte, v int32, bits int, st audio.SampleType) []byte {
	switch st {
	case audio.Unsigned8:
		if bits > 8 {
			v >>= bits - 8
		} else {
			v <<= 8 - bits
		}
		return append(dst, byte(v+128))
	case audio.Float32:
		f := float32(float64(v) / float64(int64(1)<<(bits-1)))
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	default:
		if bits > 16 {
			v >>= bits - 16
		} else {
			v <<= 16 - bits
		}
		return binary.LittleEndian.AppendUint16(dst, uint16(int16(v)))
	}
}

// appendFloat appends a normalized float sample as st
func appendFloat(dst []byte, f float32, st audio.SampleType) []byte {
	switch st {
	case audio.Unsigned8:
		s := math.Round(float64(f)*128) + 128
		return append(dst, byte(math.Max(0, math.Min(255, s))))
	case audio.Float32:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	default:
		return binary.LittleEndian.AppendUint16(dst, uint16(audio.ToInt16(float64(f))))
	}
}

// framesToUs converts a frame count to microseconds at rate
func framesToUs(frames int64, rate int) int64 {
	if rate <= 0 {
		return 0
	}
	return frames * 1_000_000 / int64(rate)
}
