// ABOUTME: YAML head unit profile for the simulator
// ABOUTME: Loads, defaults and validates capabilities and the HMI script
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/headunit-go/pkg/headunit"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

// Profile describes a simulated head unit
type Profile struct {
	Name            string                     `yaml:"name"`
	Port            int                        `yaml:"port"`
	ProtocolVersion int                        `yaml:"protocol_version"`
	InitialHMI      string                     `yaml:"initial_hmi"`
	Audio           *transport.AudioCapability `yaml:"audio"`
	Video           *transport.VideoCapability `yaml:"video"`
	HMIScript       []HMIStep                  `yaml:"hmi_script"`
	PlayoutDelay    time.Duration              `yaml:"playout_delay"`
	Record          string                     `yaml:"record"`       // Opus recording path
	MetricsAddr     string                     `yaml:"metrics_addr"` // extra listener for /metrics
}

// HMIStep sets Level once After has passed since the app connected
type HMIStep struct {
	Level string        `yaml:"level"`
	After time.Duration `yaml:"after"`
}

// Default returns a head unit with 16kHz audio and 800x480 video
func Default() *Profile {
	p := &Profile{
		InitialHMI: "FULL",
		Audio:      &transport.AudioCapability{SamplingRate: 16000, BitsPerSample: 16, AudioType: "PCM"},
		Video: &transport.VideoCapability{
			Width:      800,
			Height:     480,
			MaxBitrate: 2048,
			FrameRate:  30,
			Formats:    []transport.VideoFormat{{Protocol: "RAW", Codec: "H264"}},
		},
	}
	p.applyDefaults()
	return p
}

// Load reads and parses a profile file
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	profile.applyDefaults()

	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &profile, nil
}

func (p *Profile) applyDefaults() {
	if p.Name == "" {
		p.Name = headunit.DefaultName
	}
	if p.Port == 0 {
		p.Port = headunit.DefaultPort
	}
	if p.ProtocolVersion == 0 {
		p.ProtocolVersion = headunit.DefaultProtocolVersion
	}
	if p.InitialHMI == "" {
		p.InitialHMI = "NONE"
	}
	if p.PlayoutDelay == 0 {
		p.PlayoutDelay = headunit.DefaultPlayoutDelay
	}
	if p.Audio != nil && p.Audio.AudioType == "" {
		p.Audio.AudioType = "PCM"
	}
}

// Validate checks ranges and HMI level names
func (p *Profile) Validate() error {
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", p.Port)
	}
	if p.ProtocolVersion < 1 {
		return fmt.Errorf("protocol_version must be positive, got %d", p.ProtocolVersion)
	}
	if _, err := transport.ParseHMILevel(p.InitialHMI); err != nil {
		return fmt.Errorf("initial_hmi: %w", err)
	}
	if p.PlayoutDelay < 0 {
		return fmt.Errorf("playout_delay must not be negative")
	}

	if a := p.Audio; a != nil {
		if a.SamplingRate < 8000 || a.SamplingRate > 48000 {
			return fmt.Errorf("audio: sample_rate must be between 8000 and 48000, got %d", a.SamplingRate)
		}
		if a.BitsPerSample != 8 && a.BitsPerSample != 16 {
			return fmt.Errorf("audio: bits_per_sample must be 8 or 16, got %d", a.BitsPerSample)
		}
		if !strings.EqualFold(a.AudioType, "PCM") {
			return fmt.Errorf("audio: unsupported audio_type %q", a.AudioType)
		}
	}

	if v := p.Video; v != nil {
		if v.Width <= 0 || v.Height <= 0 {
			return fmt.Errorf("video: invalid size %dx%d", v.Width, v.Height)
		}
		if v.MaxBitrate < 0 || v.FrameRate < 0 {
			return fmt.Errorf("video: max_bitrate and frame_rate must not be negative")
		}
		for i, f := range v.Formats {
			if f.Protocol == "" || f.Codec == "" {
				return fmt.Errorf("video: format %d needs protocol and codec", i)
			}
		}
	}

	var last time.Duration
	for i, step := range p.HMIScript {
		if _, err := transport.ParseHMILevel(step.Level); err != nil {
			return fmt.Errorf("hmi_script[%d]: %w", i, err)
		}
		if step.After < last {
			return fmt.Errorf("hmi_script[%d]: steps must be in time order", i)
		}
		last = step.After
	}

	return nil
}

// HeadUnitConfig converts the profile into simulator configuration
func (p *Profile) HeadUnitConfig() (headunit.Config, error) {
	if err := p.Validate(); err != nil {
		return headunit.Config{}, err
	}

	initial, _ := transport.ParseHMILevel(p.InitialHMI)
	config := headunit.Config{
		Port:            p.Port,
		Name:            p.Name,
		ProtocolVersion: p.ProtocolVersion,
		Audio:           p.Audio,
		Video:           p.Video,
		InitialHMI:      initial,
		PlayoutDelay:    p.PlayoutDelay,
		RecordPath:      p.Record,
	}
	for _, step := range p.HMIScript {
		level, _ := transport.ParseHMILevel(step.Level)
		config.HMIScript = append(config.HMIScript, headunit.HMIStep{Level: level, After: step.After})
	}
	return config, nil
}
