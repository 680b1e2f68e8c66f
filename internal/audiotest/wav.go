// ABOUTME: Test fixtures for authoring WAV files
// ABOUTME: Writes square-wave resources with go-audio/wav
package audiotest

import (
	"fmt"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SquareWave describes a generated square-wave resource
type SquareWave struct {
	SampleRate  int
	BitDepth    int // 8 or 16
	Channels    int
	FrequencyHz float64
	Amplitude   float64 // 0..1
	Duration    time.Duration
}

// DefaultSquareWave is a 250 Hz, 80% amplitude, one second mono wave
func DefaultSquareWave() SquareWave {
	return SquareWave{
		SampleRate:  44100,
		BitDepth:    16,
		Channels:    1,
		FrequencyHz: 250,
		Amplitude:   0.8,
		Duration:    time.Second,
	}
}

// Frames returns the number of frames the wave spans
func (w SquareWave) Frames() int {
	return int(w.Duration.Seconds() * float64(w.SampleRate))
}

// Value returns the normalized value of frame i: positive for the first half
// of every period, negative for the second.
func (w SquareWave) Value(i int) float64 {
	phase := math.Mod(float64(i)*w.FrequencyHz/float64(w.SampleRate), 1)
	if phase < 0.5 {
		return w.Amplitude
	}
	return -w.Amplitude
}

// WriteSquareWAV writes the wave as a PCM WAV file at path
func WriteSquareWAV(path string, w SquareWave) error {
	if w.Channels < 1 {
		w.Channels = 1
	}
	if w.BitDepth != 8 && w.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d", w.BitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, w.SampleRate, w.BitDepth, w.Channels, 1)

	frames := w.Frames()
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.Channels, SampleRate: w.SampleRate},
		Data:           make([]int, frames*w.Channels),
		SourceBitDepth: w.BitDepth,
	}
	for i := 0; i < frames; i++ {
		v := w.Value(i)
		var s int
		if w.BitDepth == 8 {
			// 8-bit WAV is unsigned around 128
			s = 128 + int(math.Round(v*127))
		} else {
			s = int(math.Round(v * 32767))
		}
		for c := 0; c < w.Channels; c++ {
			buf.Data[i*w.Channels+c] = s
		}
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}
