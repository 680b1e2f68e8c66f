// ABOUTME: Opus packet-stream decode engine
// ABOUTME: Decodes length-prefixed Opus packets to 16-bit PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

// Opus packet stream layout:
//
//	"OPUS" | uint32 BE sample rate | uint8 channels
//	then repeated: uint16 BE packet length | packet
const (
	OpusStreamMagic      = "OPUS"
	OpusStreamHeaderSize = 9

	opusMaxFrameSamples = 5760 // 120ms at 48kHz
)

// OpusEngine decodes an Opus packet stream
type OpusEngine struct {
	r       io.Reader
	decoder *opus.Decoder
	format  MediaFormat
	pcm     []int16
	frames  int64
}

// NewOpusEngine creates an Opus engine
func NewOpusEngine() Engine {
	return &OpusEngine{}
}

// Open reads the stream header and creates the decoder
func (e *OpusEngine) Open(r io.Reader, opts EngineOptions) (MediaFormat, error) {
	header := make([]byte, OpusStreamHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return MediaFormat{}, fmt.Errorf("failed to read opus stream header: %w", err)
	}
	if string(header[:4]) != OpusStreamMagic {
		return MediaFormat{}, fmt.Errorf("invalid opus stream magic: %q", header[:4])
	}

	rate := int(binary.BigEndian.Uint32(header[4:8]))
	channels := int(header[8])

	decoder, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return MediaFormat{}, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	e.r = r
	e.decoder = decoder
	e.format = MediaFormat{
		Channels:   channels,
		SampleRate: rate,
		Encoding:   encodingForBits(16, opts.Legacy),
	}
	e.pcm = make([]int16, opusMaxFrameSamples*channels)
	return e.format, nil
}

// Next decodes one packet
func (e *OpusEngine) Next() (RawBuffer, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(e.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return RawBuffer{}, io.EOF
		}
		return RawBuffer{}, fmt.Errorf("truncated opus packet header: %w", err)
	}

	packet := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(e.r, packet); err != nil {
		return RawBuffer{}, fmt.Errorf("truncated opus packet: %w", err)
	}

	n, err := e.decoder.Decode(packet, e.pcm)
	if err != nil {
		return RawBuffer{}, fmt.Errorf("opus decode failed: %w", err)
	}

	samples := n * e.format.Channels
	data := make([]byte, 0, samples*2)
	for _, s := range e.pcm[:samples] {
		data = binary.LittleEndian.AppendUint16(data, uint16(s))
	}

	out := RawBuffer{Data: data, PresentationTimeUs: framesToUs(e.frames, e.format.SampleRate)}
	e.frames += int64(n)
	return out, nil
}

// Close releases decoder resources
func (e *OpusEngine) Close() error {
	return nil
}
