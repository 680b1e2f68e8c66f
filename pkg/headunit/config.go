// ABOUTME: Head unit simulator configuration
// ABOUTME: Capabilities, HMI script and playback settings
package headunit

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/headunit-go/internal/metrics"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/output"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

const (
	DefaultPort            = 12000
	DefaultPath            = "/headunit"
	DefaultName            = "Resonate Head Unit"
	DefaultProtocolVersion = 5
	DefaultPlayoutDelay    = 200 * time.Millisecond

	// MinVideoVersion is the lowest protocol version that carries video
	MinVideoVersion = 5
)

// HMIStep changes the HMI level After the app connects
type HMIStep struct {
	Level transport.HMILevel
	After time.Duration
}

// Config configures a head unit simulator
type Config struct {
	// Port to listen on (default: 12000, negative picks a free port)
	Port int

	// Path of the websocket endpoint (default: /headunit)
	Path string

	// Name of the head unit
	Name string

	// ProtocolVersion is the highest version spoken (default: 5)
	ProtocolVersion int

	// Audio and Video capabilities; nil means the service is refused
	Audio *transport.AudioCapability
	Video *transport.VideoCapability

	// InitialHMI is the level reported in headunit/hello
	InitialHMI transport.HMILevel

	// HMIScript runs once for every app connection
	HMIScript []HMIStep

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	// Output plays scheduled audio (default: discard)
	Output output.Output

	// PlayoutDelay is the time between the first audio frame and its playback
	PlayoutDelay time.Duration

	// RecordPath writes received audio as an Opus packet stream when set
	RecordPath string

	// Metrics receives simulator metrics (default: a fresh registry)
	Metrics *metrics.Metrics
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = DefaultProtocolVersion
	}
	if c.Output == nil {
		c.Output = output.NewDiscard()
	}
	if c.PlayoutDelay == 0 {
		c.PlayoutDelay = DefaultPlayoutDelay
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewMetrics()
	}
}

func (c *Config) validate() error {
	if c.ProtocolVersion < 1 {
		return fmt.Errorf("invalid protocol version: %d", c.ProtocolVersion)
	}
	if c.Audio != nil {
		if _, err := audioFormat(c.Audio); err != nil {
			return err
		}
	}
	if c.Video != nil && (c.Video.Width <= 0 || c.Video.Height <= 0) {
		return fmt.Errorf("invalid video size: %dx%d", c.Video.Width, c.Video.Height)
	}
	return nil
}

// audioFormat is the mono PCM format frames arrive in
func audioFormat(c *transport.AudioCapability) (audio.Format, error) {
	t, err := audio.SampleTypeForBits(c.BitsPerSample)
	if err != nil {
		return audio.Format{}, err
	}
	f := audio.Format{Channels: 1, SampleRate: c.SamplingRate, SampleType: t}
	if err := f.Validate(); err != nil {
		return audio.Format{}, err
	}
	return f, nil
}
