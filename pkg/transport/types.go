// ABOUTME: Value types exchanged with the transport
// ABOUTME: Media types, HMI levels, capabilities and notifications
package transport

import (
	"fmt"
	"strings"
)

// MediaType identifies a media service
type MediaType int

const (
	Audio MediaType = iota + 1
	Video
)

func (m MediaType) String() string {
	switch m {
	case Audio:
		return "PCM"
	case Video:
		return "NAV"
	default:
		return fmt.Sprintf("MediaType(%d)", int(m))
	}
}

// ParseMediaType parses "PCM" or "NAV"
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToUpper(s) {
	case "PCM", "AUDIO":
		return Audio, nil
	case "NAV", "VIDEO":
		return Video, nil
	default:
		return 0, fmt.Errorf("unknown media type: %s", s)
	}
}

// NotificationKind identifies a notification stream
type NotificationKind int

const (
	HMIStatus NotificationKind = iota + 1
	TouchEvent
)

func (k NotificationKind) String() string {
	switch k {
	case HMIStatus:
		return "hmi_status"
	case TouchEvent:
		return "touch_event"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// HMILevel is the head unit's focus state for the app
type HMILevel int

const (
	HMINone HMILevel = iota
	HMIBackground
	HMILimited
	HMIFull
)

func (l HMILevel) String() string {
	switch l {
	case HMIBackground:
		return "BACKGROUND"
	case HMILimited:
		return "LIMITED"
	case HMIFull:
		return "FULL"
	default:
		return "NONE"
	}
}

// ParseHMILevel parses FULL, LIMITED, BACKGROUND or NONE
func ParseHMILevel(s string) (HMILevel, error) {
	switch strings.ToUpper(s) {
	case "FULL":
		return HMIFull, nil
	case "LIMITED":
		return HMILimited, nil
	case "BACKGROUND":
		return HMIBackground, nil
	case "NONE":
		return HMINone, nil
	default:
		return HMINone, fmt.Errorf("unknown HMI level: %s", s)
	}
}

// AudioCapability describes the PCM format a head unit accepts
type AudioCapability struct {
	SamplingRate  int    `json:"sampling_rate" yaml:"sample_rate"`
	BitsPerSample int    `json:"bits_per_sample" yaml:"bits_per_sample"`
	AudioType     string `json:"audio_type" yaml:"audio_type"` // "PCM"
}

// VideoFormat is one supported protocol/codec pair
type VideoFormat struct {
	Protocol string `json:"protocol" yaml:"protocol"` // "RAW", "RTP"
	Codec    string `json:"codec" yaml:"codec"`       // "H264", "H265"
}

// VideoCapability describes the video stream a head unit accepts
type VideoCapability struct {
	Width      int           `json:"width" yaml:"width"`
	Height     int           `json:"height" yaml:"height"`
	MaxBitrate int           `json:"max_bitrate" yaml:"max_bitrate"` // kbps
	FrameRate  int           `json:"frame_rate,omitempty" yaml:"frame_rate"`
	Formats    []VideoFormat `json:"formats" yaml:"formats"`
}

// Capability holds what a head unit reported for one media type
type Capability struct {
	Audio *AudioCapability `json:"audio,omitempty"`
	Video *VideoCapability `json:"video,omitempty"`
}

// Touch is one touch event from the head unit screen
type Touch struct {
	Type        string `json:"type"` // BEGIN, MOVE, END, CANCEL
	ID          int    `json:"id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	TimestampMs int64  `json:"ts"`
}

// Notification is delivered to notification listeners
type Notification struct {
	Kind     NotificationKind
	HMILevel HMILevel
	Touch    *Touch
}
