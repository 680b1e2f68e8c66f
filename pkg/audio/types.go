// ABOUTME: Audio type definitions
// ABOUTME: Defines sample types, stream formats and output blocks
package audio

import (
	"fmt"
	"math"
	"time"
)

// SampleType is the storage encoding of one sample
type SampleType int

const (
	// Unsigned8 is 8-bit unsigned PCM, 128 is silence
	Unsigned8 SampleType = iota + 1
	// Signed16 is 16-bit signed PCM
	Signed16
	// Float32 is IEEE 754 single precision in [-1, 1]
	Float32
)

// Width returns the number of bytes per sample
func (t SampleType) Width() int {
	switch t {
	case Unsigned8:
		return 1
	case Signed16:
		return 2
	case Float32:
		return 4
	default:
		return 0
	}
}

// Valid reports whether t is a known sample type
func (t SampleType) Valid() bool {
	return t.Width() > 0
}

// Bits returns the sample width in bits
func (t SampleType) Bits() int {
	return t.Width() * 8
}

func (t SampleType) String() string {
	switch t {
	case Unsigned8:
		return "u8"
	case Signed16:
		return "s16"
	case Float32:
		return "f32"
	default:
		return fmt.Sprintf("SampleType(%d)", int(t))
	}
}

// SampleTypeForBits maps a bits-per-sample value to a sample type
func SampleTypeForBits(bits int) (SampleType, error) {
	switch bits {
	case 8:
		return Unsigned8, nil
	case 16:
		return Signed16, nil
	case 32:
		return Float32, nil
	default:
		return 0, fmt.Errorf("%w: %d bits per sample", ErrInvalidSampleType, bits)
	}
}

// Format describes a PCM stream
type Format struct {
	Channels   int
	SampleRate int
	SampleType SampleType
}

// FrameSize returns the number of bytes in one interleaved frame
func (f Format) FrameSize() int {
	return f.Channels * f.SampleType.Width()
}

// FrameDurationUs returns the duration of one frame in microseconds
func (f Format) FrameDurationUs() float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return 1_000_000 / float64(f.SampleRate)
}

// Validate checks that the format describes a playable stream
func (f Format) Validate() error {
	if f.Channels < 1 || f.Channels > 8 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.SampleRate < 1000 || f.SampleRate > 384000 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if !f.SampleType.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSampleType, f.SampleType)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%v", f.SampleRate, f.Channels, f.SampleType)
}

// Block is a run of normalized interleaved output frames
type Block struct {
	PresentationTimeUs int64 // time of the first frame
	Format             Format
	Samples            []float64
}

// Frames returns the number of frames in the block
func (b Block) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// DurationUs returns the time covered by the block
func (b Block) DurationUs() int64 {
	return int64(math.Round(float64(b.Frames()) * b.Format.FrameDurationUs()))
}

// Buffer is a chunk of 16-bit PCM queued for local playback
type Buffer struct {
	Timestamp int64     // presentation time (microseconds, stream clock)
	PlayAt    time.Time // local play time
	Samples   []int16
	Format    Format
}

// ToInt16 converts a normalized sample to 16-bit PCM with clipping
func ToInt16(v float64) int16 {
	s := math.Round(v * 32768)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}
