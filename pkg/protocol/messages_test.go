// ABOUTME: Tests for head unit protocol messages and frames
// ABOUTME: Verifies envelope parsing and binary frame layout
package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

func TestParseHeadUnitHello(t *testing.T) {
	data := []byte(`{"type":"headunit/hello","payload":{
		"headunit_id":"hu-1","name":"Dash","protocol_version":5,
		"audio":{"sampling_rate":16000,"bits_per_sample":16,"audio_type":"PCM"},
		"video":{"width":800,"height":480,"max_bitrate":2048,"formats":[{"protocol":"RAW","codec":"H264"}]},
		"hmi_level":"NONE"}}`)

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if env.Type != TypeHeadUnitHello {
		t.Fatalf("expected %s, got %s", TypeHeadUnitHello, env.Type)
	}

	var hello HeadUnitHello
	if err := env.Decode(&hello); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if hello.ProtocolVersion != 5 || hello.Audio.SamplingRate != 16000 || hello.Video.Formats[0].Codec != "H264" {
		t.Errorf("unexpected hello: %+v", hello)
	}
}

func TestParseEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "hello"},
		{"missing type", `{"payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEnvelope([]byte(tt.data)); err == nil {
				t.Errorf("expected error")
			}
		})
	}

	env, _ := ParseEnvelope([]byte(`{"type":"hmi/status"}`))
	var status HMIStatus
	if err := env.Decode(&status); err == nil {
		t.Errorf("expected error for empty payload")
	}
}

func TestEncodeFrame(t *testing.T) {
	got := EncodeFrame(transport.Video, 0x0102030405060708, []byte{0xAA, 0xBB})
	expected := []byte{2, 1, 2, 3, 4, 5, 6, 7, 8, 0xAA, 0xBB}
	if !bytes.Equal(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	frame, err := ParseFrame(got)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if frame.Media != transport.Video || frame.PresentationTimeUs != 0x0102030405060708 || !bytes.Equal(frame.Data, []byte{0xAA, 0xBB}) {
		t.Errorf("unexpected frame: %+v", frame)
	}
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected error
	}{
		{"empty", nil, ErrShortFrame},
		{"header only minus one", make([]byte, FrameHeaderSize-1), ErrShortFrame},
		{"unknown media", append([]byte{9}, make([]byte, 8)...), ErrUnknownMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFrame(tt.data); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}
