// ABOUTME: Typed read-only view over a contiguous PCM byte region
// ABOUTME: Normalizes u8, s16 and f32 samples to float64
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Samples is the read side shared by sample buffers and channel views
type Samples interface {
	// Limit returns the number of addressable frames
	Limit() int
	// Get returns the normalized sample at index i
	Get(i int) (float64, error)
	// PresentationTimeUs returns the time of index 0
	PresentationTimeUs() int64
}

// SampleBuffer is a view over interleaved PCM bytes.
//
// Index i addresses interleaved sample i; Limit reports whole frames. For a
// mono buffer the two coincide. Use Channel to read a single channel of a
// multichannel buffer frame by frame.
type SampleBuffer struct {
	data       []byte
	sampleType SampleType
	order      binary.ByteOrder
	channels   int
	timestamp  int64
}

// Allocate creates a silent buffer owning frameCount frames.
// Unsigned8 silence is 0x80, so a fresh buffer reads as 0.0 for every type.
func Allocate(frameCount int, t SampleType, order binary.ByteOrder, channels int) (*SampleBuffer, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleType, t)
	}
	if frameCount < 0 {
		return nil, fmt.Errorf("%w: %d frames", ErrInvalidLayout, frameCount)
	}
	if order == nil {
		order = binary.LittleEndian
	}
	if channels < 1 {
		channels = 1
	}
	data := make([]byte, frameCount*t.Width()*channels)
	if t == Unsigned8 {
		for i := range data {
			data[i] = 0x80
		}
	}
	return &SampleBuffer{
		data:       data,
		sampleType: t,
		order:      order,
		channels:   channels,
	}, nil
}

// Wrap creates a mono little-endian view over raw without copying
func Wrap(raw []byte, t SampleType, timestampUs int64) (*SampleBuffer, error) {
	return WrapFormat(raw, Format{Channels: 1, SampleType: t}, binary.LittleEndian, timestampUs)
}

// WrapFormat creates a view over interleaved raw bytes without copying
func WrapFormat(raw []byte, format Format, order binary.ByteOrder, timestampUs int64) (*SampleBuffer, error) {
	if !format.SampleType.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleType, format.SampleType)
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidLayout, format.Channels)
	}
	if len(raw)%format.FrameSize() != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d-byte frames", ErrInvalidLayout, len(raw), format.FrameSize())
	}
	if order == nil {
		order = binary.LittleEndian
	}
	return &SampleBuffer{
		data:       raw,
		sampleType: format.SampleType,
		order:      order,
		channels:   format.Channels,
		timestamp:  timestampUs,
	}, nil
}

// Limit returns the number of frames in the buffer
func (b *SampleBuffer) Limit() int {
	return len(b.data) / (b.sampleType.Width() * b.channels)
}

// Len returns the number of interleaved samples
func (b *SampleBuffer) Len() int {
	return len(b.data) / b.sampleType.Width()
}

// Get returns interleaved sample i normalized to [-1, 1]
func (b *SampleBuffer) Get(i int) (float64, error) {
	if i < 0 || i >= b.Len() {
		return 0, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, b.Len())
	}
	w := b.sampleType.Width()
	p := b.data[i*w : i*w+w]
	switch b.sampleType {
	case Unsigned8:
		return (float64(p[0]) - 128) / 128, nil
	case Signed16:
		return float64(int16(b.order.Uint16(p))) / 32768, nil
	default:
		return float64(math.Float32frombits(b.order.Uint32(p))), nil
	}
}

// Put stores a normalized value at interleaved index i, clipping to the type's range.
// Only buffers created by Allocate are written; wrapped views are never modified.
func (b *SampleBuffer) Put(i int, v float64) error {
	if i < 0 || i >= b.Len() {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, b.Len())
	}
	w := b.sampleType.Width()
	p := b.data[i*w : i*w+w]
	switch b.sampleType {
	case Unsigned8:
		s := math.Round(v*128) + 128
		p[0] = byte(math.Max(0, math.Min(255, s)))
	case Signed16:
		b.order.PutUint16(p, uint16(ToInt16(v)))
	default:
		b.order.PutUint32(p, math.Float32bits(float32(v)))
	}
	return nil
}

// PresentationTimeUs returns the timestamp of the first frame
func (b *SampleBuffer) PresentationTimeUs() int64 { return b.timestamp }

// SampleType returns the storage type
func (b *SampleBuffer) SampleType() SampleType { return b.sampleType }

// Channels returns the interleaved channel count
func (b *SampleBuffer) Channels() int { return b.channels }

// ByteOrder returns the byte order of multi-byte samples
func (b *SampleBuffer) ByteOrder() binary.ByteOrder { return b.order }

// Bytes returns the underlying region
func (b *SampleBuffer) Bytes() []byte { return b.data }

// Channel returns a frame-indexed view of one channel
func (b *SampleBuffer) Channel(ch int) (*ChannelView, error) {
	if ch < 0 || ch >= b.channels {
		return nil, fmt.Errorf("%w: channel %d of %d", ErrIndexOutOfRange, ch, b.channels)
	}
	return &ChannelView{buf: b, ch: ch}, nil
}

// ChannelView reads a single channel of a SampleBuffer
type ChannelView struct {
	buf *SampleBuffer
	ch  int
}

func (v *ChannelView) Limit() int { return v.buf.Limit() }

func (v *ChannelView) Get(i int) (float64, error) {
	if i < 0 || i >= v.buf.Limit() {
		return 0, fmt.Errorf("%w: frame %d (limit %d)", ErrIndexOutOfRange, i, v.buf.Limit())
	}
	return v.buf.Get(i*v.buf.channels + v.ch)
}

func (v *ChannelView) PresentationTimeUs() int64 { return v.buf.timestamp }
