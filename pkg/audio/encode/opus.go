// ABOUTME: Opus packet-stream writer
// ABOUTME: Encodes 16-bit PCM into length-prefixed Opus packets
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/decode"
	"gopkg.in/hraban/opus.v2"
)

const maxOpusPacket = 4000

// OpusWriter writes an Opus packet stream readable by decode.OpusEngine
type OpusWriter struct {
	w             io.Writer
	encoder       *opus.Encoder
	sampleRate    int
	channels      int
	frameSize     int // samples per channel in one 20ms packet
	pending       []int16
	headerWritten bool
	packets       int
}

// NewOpusWriter creates a writer. Opus supports 8, 12, 16, 24 and 48 kHz.
func NewOpusWriter(w io.Writer, sampleRate, channels int) (*OpusWriter, error) {
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusWriter{
		w:          w,
		encoder:    encoder,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  sampleRate / 50, // 20ms frame
	}, nil
}

// WriteSamples buffers interleaved PCM and writes every complete packet
func (o *OpusWriter) WriteSamples(pcm []int16) error {
	if err := o.writeHeader(); err != nil {
		return err
	}

	o.pending = append(o.pending, pcm...)
	n := o.frameSize * o.channels
	for len(o.pending) >= n {
		if err := o.writePacket(o.pending[:n]); err != nil {
			return err
		}
		o.pending = o.pending[n:]
	}
	return nil
}

// Encode appends a normalized block, implementing Encoder by returning
// the packet bytes written for it.
func (o *OpusWriter) Encode(block audio.Block) ([]byte, error) {
	pcm := make([]int16, len(block.Samples))
	for i, v := range block.Samples {
		pcm[i] = audio.ToInt16(v)
	}
	return nil, o.WriteSamples(pcm)
}

// Flush pads the final partial packet with silence and writes it
func (o *OpusWriter) Flush() error {
	if err := o.writeHeader(); err != nil {
		return err
	}
	if len(o.pending) == 0 {
		return nil
	}
	frame := make([]int16, o.frameSize*o.channels)
	copy(frame, o.pending)
	o.pending = o.pending[:0]
	return o.writePacket(frame)
}

// Packets returns the number of packets written
func (o *OpusWriter) Packets() int {
	return o.packets
}

// Close flushes pending samples
func (o *OpusWriter) Close() error {
	return o.Flush()
}

func (o *OpusWriter) writeHeader() error {
	if o.headerWritten {
		return nil
	}
	header := make([]byte, decode.OpusStreamHeaderSize)
	copy(header, decode.OpusStreamMagic)
	binary.BigEndian.PutUint32(header[4:8], uint32(o.sampleRate))
	header[8] = byte(o.channels)
	if _, err := o.w.Write(header); err != nil {
		return fmt.Errorf("failed to write opus header: %w", err)
	}
	o.headerWritten = true
	return nil
}

func (o *OpusWriter) writePacket(frame []int16) error {
	data := make([]byte, maxOpusPacket)
	n, err := o.encoder.Encode(frame, data)
	if err != nil {
		return fmt.Errorf("opus encode error: %w", err)
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(n))
	if _, err := o.w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := o.w.Write(data[:n]); err != nil {
		return err
	}
	o.packets++
	return nil
}
