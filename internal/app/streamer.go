// ABOUTME: Main streamer application orchestration
// ABOUTME: Coordinates discovery, transport, audio and video sessions
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/headunit-go/internal/discovery"
	"github.com/Resonate-Protocol/headunit-go/internal/ui"
	"github.com/Resonate-Protocol/headunit-go/internal/version"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/headunit-go/pkg/protocol"
	"github.com/Resonate-Protocol/headunit-go/pkg/session"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport/ws"
)

const (
	discoveryTimeout = 10 * time.Second
	toneDuration     = 5 * time.Second
)

// Config holds streamer configuration
type Config struct {
	ServerAddr string // head unit host:port; empty browses mDNS
	Name       string
	Source     string // file path or http(s) URL; empty plays a test tone
	Loop       bool
	Video      bool
	FrameRate  int

	// ToneDuration is the test tone length (default: 5s)
	ToneDuration time.Duration

	// OnStatus receives periodic state for the TUI
	OnStatus func(ui.StatusMsg)
}

// Streamer streams audio (and optionally synthetic video) to a head unit
type Streamer struct {
	config    Config
	transport *ws.Transport
	audio     *session.AudioManager
	video     *session.VideoManager

	mu      sync.Mutex
	playing bool
	plays   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new streamer
func New(config Config) *Streamer {
	if config.FrameRate <= 0 {
		config.FrameRate = session.DefaultFrameRate
	}
	if config.ToneDuration <= 0 {
		config.ToneDuration = toneDuration
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Streamer{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Source returns the resource the streamer plays
func (s *Streamer) Source() decode.Resource {
	src := s.config.Source
	switch {
	case src == "":
		return ToneResource(s.config.ToneDuration)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return decode.HTTPResource{URL: src}
	default:
		return decode.FileResource{Path: src}
	}
}

// Connect finds the head unit, connects and starts the media sessions
func (s *Streamer) Connect() error {
	addr, path := s.config.ServerAddr, ws.DefaultPath
	if addr == "" {
		hu, err := s.discover()
		if err != nil {
			return err
		}
		addr, path = hu.Addr(), hu.Path
	}

	s.transport = ws.New(ws.Config{
		ServerAddr: addr,
		Path:       path,
		AppID:      uuid.New().String(),
		Name:       s.config.Name,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})
	if err := s.transport.Connect(); err != nil {
		return err
	}
	log.Printf("Connected to head unit: %s", addr)

	s.audio = session.NewAudioManager(session.AudioConfig{Transport: s.transport})
	s.audio.Start(false, func(success bool, err error) {
		if !success {
			log.Printf("Audio stream failed to start: %v", err)
			return
		}
		s.Play()
	})

	if s.config.Video {
		s.video = session.NewVideoManager(session.VideoConfig{
			Transport: s.transport,
			FrameRate: s.config.FrameRate,
			OnTouch: func(touch protocol.TouchEvent) {
				log.Printf("Touch %s at (%d,%d)", touch.Type, touch.X, touch.Y)
			},
		})
		s.video.Start(false, func(success bool, err error) {
			if !success {
				log.Printf("Video stream failed to start: %v", err)
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.streamVideo()
			}()
		})
	}

	if s.config.OnStatus != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statusLoop()
		}()
	}
	return nil
}

func (s *Streamer) discover() (*discovery.HeadUnitInfo, error) {
	log.Printf("Starting head unit discovery...")
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()
	disc.Browse()

	select {
	case hu := <-disc.HeadUnits():
		log.Printf("Discovered head unit %s at %s", hu.Name, hu.Addr())
		return hu, nil
	case <-time.After(discoveryTimeout):
		return nil, fmt.Errorf("no head unit found after %v", discoveryTimeout)
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

// Play queues the source on the audio stream unless it is already playing
func (s *Streamer) Play() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	s.mu.Unlock()

	res := s.Source()
	log.Printf("Playing %s", res.Name())
	err := s.audio.PushResource(res, func(success bool, err error) {
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()

		switch {
		case success:
			s.plays.Add(1)
			log.Printf("Finished %s", res.Name())
			if s.config.Loop && s.ctx.Err() == nil {
				s.Play()
			}
		case errors.Is(err, decode.ErrStopped):
			log.Printf("Stopped %s", res.Name())
		default:
			log.Printf("Playback of %s failed: %v", res.Name(), err)
		}
	})
	if err != nil {
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()
		log.Printf("Cannot play %s: %v", res.Name(), err)
	}
}

// Plays returns how many times the source has played to the end
func (s *Streamer) Plays() int64 {
	return s.plays.Load()
}

// HandleCommand applies a TUI command
func (s *Streamer) HandleCommand(cmd ui.Command) {
	switch cmd {
	case ui.CommandStopAudio:
		if s.audio == nil {
			return
		}
		err := s.audio.Stop(func(success bool, err error) {
			log.Printf("Audio stream stopped (success=%v)", success)
		})
		if err != nil {
			log.Printf("Stop failed: %v", err)
		}
	case ui.CommandReplay:
		if s.audio != nil {
			s.Play()
		}
	}
}

// streamVideo submits synthetic frames at the configured rate
func (s *Streamer) streamVideo() {
	if err := s.video.StartEncoder(); err != nil {
		log.Printf("Failed to start video encoder: %v", err)
		return
	}

	interval := time.Second / time.Duration(s.config.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	var n uint32
	for {
		select {
		case <-ticker.C:
			frame := syntheticFrame(n)
			n++
			if err := s.video.SendFrame(frame, time.Since(start).Microseconds()); err != nil {
				log.Printf("Video stream ended: %v", err)
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// syntheticFrame is an H.264 access-unit delimiter followed by a counter
func syntheticFrame(n uint32) []byte {
	return []byte{0, 0, 0, 1, 0x09, 0xf0, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

// Status returns the state shown by the TUI
func (s *Streamer) Status() ui.StatusMsg {
	connected := s.transport != nil && s.transport.IsConnected()
	msg := ui.StatusMsg{Connected: &connected, Source: s.Source().Name()}

	if s.transport != nil {
		hu := s.transport.HeadUnit()
		msg.HeadUnit = hu.Name
		msg.ProtocolVersion = hu.ProtocolVersion
	}
	if s.audio != nil {
		msg.AudioState = s.audio.CurrentState().String()
		msg.HMILevel = s.audio.HMILevel().String()
		if f, ok := s.audio.Format(); ok {
			msg.AudioFormat = f.String()
		}
		stats := s.audio.Stats()
		msg.AudioFrames = int64(stats.FramesSent)
		msg.AudioBytes = int64(stats.BytesSent)
		msg.AudioDropped = int64(stats.FramesDropped)
	}
	if s.video != nil {
		msg.VideoState = s.video.CurrentState().String()
		msg.VideoPaused = s.video.IsPaused()
		if p, ok := s.video.Params(); ok {
			msg.VideoParams = p.String()
		}
		stats := s.video.Stats()
		msg.VideoFrames = int64(stats.FramesSent)
		msg.VideoDropped = int64(stats.FramesDropped)
	}
	return msg
}

// statusLoop periodically reports state
func (s *Streamer) statusLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.config.OnStatus(s.Status())
		case <-s.ctx.Done():
			return
		}
	}
}

// Close disposes the sessions and disconnects
func (s *Streamer) Close() error {
	s.cancel()

	var errs []error
	if s.video != nil {
		errs = append(errs, s.video.Dispose())
	}
	if s.audio != nil {
		errs = append(errs, s.audio.Dispose())
	}
	s.wg.Wait()

	if s.transport != nil {
		if err := s.transport.SendGoodbye("shutdown"); err != nil {
			log.Printf("Failed to send goodbye: %v", err)
		}
		s.transport.Close()
	}
	return errors.Join(errs...)
}
