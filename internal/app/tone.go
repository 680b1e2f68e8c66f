// ABOUTME: Test tone generator for the audio stream
// ABOUTME: Generates a sine wave as a raw PCM resource
package app

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/decode"
)

const (
	toneFrequency  = 440.0 // A4 note
	toneSampleRate = 48000
)

// ToneResource returns a mono 16-bit 48kHz sine wave at half volume
func ToneResource(d time.Duration) decode.PCMResource {
	frames := int(d.Seconds() * toneSampleRate)
	data := make([]byte, frames*2)

	for i := 0; i < frames; i++ {
		t := float64(i) / toneSampleRate
		sample := math.Sin(2 * math.Pi * toneFrequency * t)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(sample*32767.0*0.5)))
	}

	return decode.PCMResource{
		Label:  fmt.Sprintf("%.0fHz tone", toneFrequency),
		Data:   data,
		Format: audio.Format{Channels: 1, SampleRate: toneSampleRate, SampleType: audio.Signed16},
	}
}
