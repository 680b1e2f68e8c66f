// ABOUTME: Video streaming parameters negotiated from the head unit capability
// ABOUTME: Picks resolution, bitrate, frame rate and codec/protocol pair
package session

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

const (
	DefaultFrameRate   = 30
	DefaultBitrateKbps = 512
)

// DefaultVideoFormats is the codec preference used when none is configured
var DefaultVideoFormats = []transport.VideoFormat{
	{Protocol: "RAW", Codec: "H264"},
	{Protocol: "RTP", Codec: "H264"},
}

// VideoParams are the parameters an encoder should produce
type VideoParams struct {
	Width       int
	Height      int
	BitrateKbps int
	FrameRate   int
	Format      transport.VideoFormat
}

func (p VideoParams) String() string {
	return fmt.Sprintf("%dx%d@%dfps %dkbps %s/%s", p.Width, p.Height, p.FrameRate, p.BitrateKbps, p.Format.Codec, p.Format.Protocol)
}

// NegotiateVideoParams matches the capability against the preferred formats.
// A capability listing no formats accepts the first preference.
func NegotiateVideoParams(capability *transport.VideoCapability, preferred []transport.VideoFormat, frameRate int) (VideoParams, error) {
	if capability == nil {
		return VideoParams{}, fmt.Errorf("%w: no video capability", ErrCapabilityUnavailable)
	}
	if capability.Width <= 0 || capability.Height <= 0 {
		return VideoParams{}, fmt.Errorf("%w: invalid resolution %dx%d", ErrCapabilityUnavailable, capability.Width, capability.Height)
	}
	if len(preferred) == 0 {
		preferred = DefaultVideoFormats
	}
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	params := VideoParams{
		Width:       capability.Width,
		Height:      capability.Height,
		BitrateKbps: DefaultBitrateKbps,
		FrameRate:   frameRate,
	}
	if capability.MaxBitrate > 0 {
		params.BitrateKbps = capability.MaxBitrate
	}
	if capability.FrameRate > 0 && capability.FrameRate < params.FrameRate {
		params.FrameRate = capability.FrameRate
	}

	if len(capability.Formats) == 0 {
		params.Format = preferred[0]
		return params, nil
	}
	for _, want := range preferred {
		for _, have := range capability.Formats {
			if strings.EqualFold(want.Protocol, have.Protocol) && strings.EqualFold(want.Codec, have.Codec) {
				params.Format = want
				return params, nil
			}
		}
	}
	return VideoParams{}, fmt.Errorf("%w: no supported video format in %v", ErrCapabilityUnavailable, capability.Formats)
}
