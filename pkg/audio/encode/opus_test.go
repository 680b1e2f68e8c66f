// ABOUTME: Unit tests for the Opus packet-stream writer
// ABOUTME: Round-trips a tone through the writer and decode.OpusEngine
package encode

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio/decode"
)

func TestNewOpusWriter(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		wantErr    bool
	}{
		{"48kHz stereo", 48000, 2, false},
		{"16kHz mono", 16000, 1, false},
		{"unsupported rate", 44100, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewOpusWriter(&bytes.Buffer{}, tt.sampleRate, tt.channels)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.frameSize != tt.sampleRate/50 {
				t.Errorf("expected frame size %d, got %d", tt.sampleRate/50, w.frameSize)
			}
		})
	}
}

func TestOpusWriterRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	w, err := NewOpusWriter(&stream, 48000, 1)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	// 100ms of 440 Hz, written in uneven chunks
	pcm := make([]int16, 4800)
	for i := range pcm {
		pcm[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/48000))
	}
	if err := w.WriteSamples(pcm[:1000]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.WriteSamples(pcm[1000:]); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if w.Packets() != 5 {
		t.Errorf("expected 5 packets, got %d", w.Packets())
	}

	engine := decode.NewOpusEngine()
	format, err := engine.Open(&stream, decode.EngineOptions{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if format.SampleRate != 48000 || format.Channels != 1 || format.Encoding != decode.EncodingPCM16 {
		t.Errorf("unexpected format %v", format)
	}

	total := 0
	for {
		buf, err := engine.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		total += len(buf.Data) / 2
	}
	if total != 4800 {
		t.Errorf("expected 4800 decoded samples, got %d", total)
	}
}
