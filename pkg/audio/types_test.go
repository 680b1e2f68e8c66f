// ABOUTME: Tests for audio types
// ABOUTME: Tests sample type widths, normalization and buffer layout
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestSampleTypeWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    SampleType
		expected int
	}{
		{"u8", Unsigned8, 1},
		{"s16", Signed16, 2},
		{"f32", Float32, 4},
		{"unknown", SampleType(9), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.Width(); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestSampleTypeForBits(t *testing.T) {
	if st, err := SampleTypeForBits(8); err != nil || st != Unsigned8 {
		t.Errorf("8 bits: got %v, %v", st, err)
	}
	if st, err := SampleTypeForBits(16); err != nil || st != Signed16 {
		t.Errorf("16 bits: got %v, %v", st, err)
	}
	if _, err := SampleTypeForBits(24); !errors.Is(err, ErrInvalidSampleType) {
		t.Errorf("expected ErrInvalidSampleType, got %v", err)
	}
}

func TestWrapNormalizes(t *testing.T) {
	s16 := make([]byte, 8)
	binary.LittleEndian.PutUint16(s16[0:], uint16(0))
	binary.LittleEndian.PutUint16(s16[2:], uint16(16384))
	v := int16(-32768)
	binary.LittleEndian.PutUint16(s16[4:], uint16(v))
	binary.LittleEndian.PutUint16(s16[6:], uint16(32767))

	f32 := make([]byte, 8)
	binary.LittleEndian.PutUint32(f32[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(f32[4:], math.Float32bits(-0.75))

	tests := []struct {
		name     string
		raw      []byte
		st       SampleType
		expected []float64
	}{
		{"u8", []byte{128, 0, 192, 255}, Unsigned8, []float64{0, -1, 0.5, 127.0 / 128}},
		{"s16", s16, Signed16, []float64{0, 0.5, -1, 32767.0 / 32768}},
		{"f32", f32, Float32, []float64{0.25, -0.75}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Wrap(tt.raw, tt.st, 1000)
			if err != nil {
				t.Fatalf("wrap failed: %v", err)
			}
			if buf.Limit() != len(tt.expected) {
				t.Fatalf("expected limit %d, got %d", len(tt.expected), buf.Limit())
			}
			if buf.PresentationTimeUs() != 1000 {
				t.Errorf("expected timestamp 1000, got %d", buf.PresentationTimeUs())
			}
			for i, want := range tt.expected {
				got, err := buf.Get(i)
				if err != nil {
					t.Fatalf("get %d: %v", i, err)
				}
				if got != want {
					t.Errorf("sample %d: expected %v, got %v", i, want, got)
				}
			}
		})
	}
}

func TestGetOutOfRange(t *testing.T) {
	buf, err := Wrap([]byte{1, 2, 3, 4}, Signed16, 0)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	for _, i := range []int{-1, 2, 100} {
		if _, err := buf.Get(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("index %d: expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

func TestWrapRejectsPartialFrames(t *testing.T) {
	if _, err := Wrap([]byte{1, 2, 3}, Signed16, 0); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}

	format := Format{Channels: 2, SampleRate: 8000, SampleType: Signed16}
	if _, err := WrapFormat(make([]byte, 6), format, nil, 0); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout for stereo, got %v", err)
	}
}

func TestAllocateZeroFilled(t *testing.T) {
	for _, st := range []SampleType{Unsigned8, Signed16, Float32} {
		buf, err := Allocate(10, st, binary.LittleEndian, 2)
		if err != nil {
			t.Fatalf("%v: allocate failed: %v", st, err)
		}
		if buf.Limit() != 10 {
			t.Errorf("%v: expected limit 10, got %d", st, buf.Limit())
		}
		if buf.Len() != 20 {
			t.Errorf("%v: expected len 20, got %d", st, buf.Len())
		}
		for i := 0; i < buf.Len(); i++ {
			if v, _ := buf.Get(i); v != 0 {
				t.Fatalf("%v: sample %d not silent: %v", st, i, v)
			}
		}
	}
}

func TestAllocateRejectsInvalidLayout(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		st     SampleType
		want   error
	}{
		{"unknown sample type", 4, SampleType(0), ErrInvalidSampleType},
		{"out of range sample type", 4, SampleType(99), ErrInvalidSampleType},
		{"negative frame count", -1, Signed16, ErrInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Allocate(tt.frames, tt.st, nil, 1)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if buf != nil {
				t.Errorf("expected no buffer, got limit %d", buf.Limit())
			}
		})
	}
}

func TestAllocateUnsigned8IsMidScale(t *testing.T) {
	buf, err := Allocate(2, Unsigned8, nil, 1)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	for i, b := range buf.Bytes() {
		if b != 0x80 {
			t.Errorf("byte %d: expected 0x80, got %#x", i, b)
		}
	}
}

func TestPutClips(t *testing.T) {
	buf, err := Allocate(3, Signed16, binary.BigEndian, 1)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	buf.Put(0, 2.0)
	buf.Put(1, -2.0)
	buf.Put(2, 0.5)

	want := []float64{32767.0 / 32768, -1, 0.5}
	for i, w := range want {
		if got, _ := buf.Get(i); got != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, got)
		}
	}

	u8, err := Allocate(1, Unsigned8, nil, 1)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	u8.Put(0, -1)
	if u8.Bytes()[0] != 0 {
		t.Errorf("expected 0, got %d", u8.Bytes()[0])
	}
}

func TestChannelView(t *testing.T) {
	raw := []byte{128, 0, 192, 64, 255, 128}
	buf, err := WrapFormat(raw, Format{Channels: 2, SampleRate: 8000, SampleType: Unsigned8}, nil, 0)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}

	right, err := buf.Channel(1)
	if err != nil {
		t.Fatalf("channel failed: %v", err)
	}
	if right.Limit() != 3 {
		t.Fatalf("expected 3 frames, got %d", right.Limit())
	}

	want := []float64{-1, -0.5, 0}
	for i, w := range want {
		got, err := right.Get(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got != w {
			t.Errorf("frame %d: expected %v, got %v", i, w, got)
		}
	}

	if _, err := right.Get(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := buf.Channel(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for channel 2, got %v", err)
	}
}

func TestBlockDuration(t *testing.T) {
	b := Block{
		Format:  Format{Channels: 2, SampleRate: 16000, SampleType: Signed16},
		Samples: make([]float64, 320),
	}
	if b.Frames() != 160 {
		t.Errorf("expected 160 frames, got %d", b.Frames())
	}
	if b.DurationUs() != 10000 {
		t.Errorf("expected 10000us, got %d", b.DurationUs())
	}
}
