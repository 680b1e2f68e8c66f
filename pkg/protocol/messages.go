// ABOUTME: Head unit protocol message type definitions
// ABOUTME: Handshake, service lifecycle, HMI and touch messages
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

// Message types
const (
	TypeAppHello       = "app/hello"
	TypeHeadUnitHello  = "headunit/hello"
	TypeServiceStart   = "service/start"
	TypeServiceStarted = "service/started"
	TypeServiceNack    = "service/nack"
	TypeServiceStop    = "service/stop"
	TypeServiceEnded   = "service/ended"
	TypeHMIStatus      = "hmi/status"
	TypeTouchEvent     = "touch/event"
	TypeAppGoodbye     = "app/goodbye"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is a received message with its payload left undecoded
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEnvelope reads the type of a text message
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("invalid message: %w", err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("invalid message: missing type")
	}
	return env, nil
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", e.Type, err)
	}
	return nil
}

// DeviceInfo contains app identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// AppHello is sent by the app to initiate the handshake
type AppHello struct {
	AppID      string      `json:"app_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"` // highest protocol version the app speaks
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// HeadUnitHello is the head unit's response to app/hello
type HeadUnitHello struct {
	HeadUnitID      string                     `json:"headunit_id"`
	Name            string                     `json:"name"`
	ProtocolVersion int                        `json:"protocol_version"` // negotiated version
	Audio           *transport.AudioCapability `json:"audio,omitempty"`
	Video           *transport.VideoCapability `json:"video,omitempty"`
	HMILevel        string                     `json:"hmi_level"`
}

// ServiceStart asks the head unit to open a media service
type ServiceStart struct {
	Media     string `json:"media"` // "PCM" or "NAV"
	Encrypted bool   `json:"encrypted"`
}

// ServiceStarted acknowledges service/start
type ServiceStarted struct {
	Media     string `json:"media"`
	Encrypted bool   `json:"encrypted"`
}

// ServiceNack refuses service/start
type ServiceNack struct {
	Media  string `json:"media"`
	Reason string `json:"reason"`
}

// ServiceStop asks the head unit to close a media service
type ServiceStop struct {
	Media string `json:"media"`
}

// ServiceEnded reports a closed service, requested or not
type ServiceEnded struct {
	Media  string `json:"media"`
	Reason string `json:"reason,omitempty"`
}

// HMIStatus reports the app's focus state on the head unit
type HMIStatus struct {
	Level string `json:"level"` // FULL, LIMITED, BACKGROUND, NONE
}

// TouchEvent carries one touch on the head unit screen
type TouchEvent = transport.Touch

// AppGoodbye is sent before graceful disconnect
type AppGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "restart", "user_request"
}
