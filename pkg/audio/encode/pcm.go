// ABOUTME: PCM audio encoder
// ABOUTME: Encodes normalized frames as u8, s16 or f32 little-endian PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	format audio.Format
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for PCM encoder: %w", err)
	}
	return &PCMEncoder{format: format}, nil
}

// Encode converts a block to PCM bytes
func (e *PCMEncoder) Encode(block audio.Block) ([]byte, error) {
	if block.Format.Channels != e.format.Channels {
		return nil, fmt.Errorf("channel mismatch: block has %d, encoder expects %d", block.Format.Channels, e.format.Channels)
	}

	out, err := audio.Allocate(block.Frames(), e.format.SampleType, binary.LittleEndian, e.format.Channels)
	if err != nil {
		return nil, err
	}
	for i := 0; i < out.Len(); i++ {
		if err := out.Put(i, block.Samples[i]); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
