// ABOUTME: Tests for the websocket head unit transport
// ABOUTME: Runs the handshake, service messages and frames against an httptest server
package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/headunit-go/pkg/protocol"
	"github.com/Resonate-Protocol/headunit-go/pkg/transport"
)

type events struct {
	started chan transport.MediaType
	ended   chan transport.MediaType
	errors  chan string
	hmi     chan transport.HMILevel
}

func newEvents() *events {
	return &events{
		started: make(chan transport.MediaType, 4),
		ended:   make(chan transport.MediaType, 4),
		errors:  make(chan string, 4),
		hmi:     make(chan transport.HMILevel, 4),
	}
}

func (e *events) OnServiceStarted(media transport.MediaType, _ bool) { e.started <- media }
func (e *events) OnServiceEnded(media transport.MediaType) { e.ended <- media }
func (e *events) OnServiceError(_ transport.MediaType, reason string) { e.errors <- reason }
func (e *events) OnNotification(n transport.Notification) { e.hmi <- n.HMILevel }

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

// fakeHeadUnit acks PCM, refuses NAV and reports received binary frames
func fakeHeadUnit(t *testing.T, frames chan<- protocol.Frame) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if env, err := protocol.ParseEnvelope(data); err != nil || env.Type != protocol.TypeAppHello {
			t.Errorf("expected app/hello, got %s", data)
			return
		}
		conn.WriteJSON(protocol.Message{Type: protocol.TypeHeadUnitHello, Payload: protocol.HeadUnitHello{
			HeadUnitID:      "hu-test",
			Name:            "Test Head Unit",
			ProtocolVersion: 5,
			Audio:           &transport.AudioCapability{SamplingRate: 16000, BitsPerSample: 16, AudioType: "PCM"},
			HMILevel:        "FULL",
		}})

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.BinaryMessage {
				frame, err := protocol.ParseFrame(data)
				if err == nil {
					frames <- frame
				}
				continue
			}

			env, _ := protocol.ParseEnvelope(data)
			switch env.Type {
			case protocol.TypeServiceStart:
				var start protocol.ServiceStart
				env.Decode(&start)
				if start.Media == "NAV" {
					conn.WriteJSON(protocol.Message{Type: protocol.TypeServiceNack, Payload: protocol.ServiceNack{Media: "NAV", Reason: "no video"}})
					continue
				}
				conn.WriteJSON(protocol.Message{Type: protocol.TypeServiceStarted, Payload: protocol.ServiceStarted{Media: start.Media}})
			case protocol.TypeServiceStop:
				var stop protocol.ServiceStop
				env.Decode(&stop)
				conn.WriteJSON(protocol.Message{Type: protocol.TypeServiceEnded, Payload: protocol.ServiceEnded{Media: stop.Media}})
			case protocol.TypeAppGoodbye:
				return
			}
		}
	}))
}

func connect(t *testing.T, server *httptest.Server) *Transport {
	t.Helper()
	tr := New(Config{ServerAddr: strings.TrimPrefix(server.URL, "http://"), AppID: "app-1", Name: "Test App"})
	if err := tr.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return tr
}

func TestTransportHandshake(t *testing.T) {
	server := fakeHeadUnit(t, make(chan protocol.Frame, 1))
	defer server.Close()

	tr := connect(t, server)
	defer tr.Close()

	if !tr.IsConnected() {
		t.Fatalf("expected connected")
	}
	if tr.ProtocolVersion() != 5 {
		t.Errorf("expected protocol 5, got %d", tr.ProtocolVersion())
	}
	capability := tr.Capability(transport.Audio)
	if capability == nil || capability.Audio.SamplingRate != 16000 {
		t.Errorf("unexpected audio capability: %+v", capability)
	}
	if tr.Capability(transport.Video) != nil {
		t.Errorf("expected no video capability")
	}

	// late HMI listeners get the current level
	ev := newEvents()
	tr.AddNotificationListener(transport.HMIStatus, ev)
	if level := receive(t, ev.hmi); level != transport.HMIFull {
		t.Errorf("expected FULL, got %v", level)
	}
}

func TestTransportServices(t *testing.T) {
	frames := make(chan protocol.Frame, 4)
	server := fakeHeadUnit(t, frames)
	defer server.Close()

	tr := connect(t, server)
	defer tr.Close()

	ev := newEvents()
	tr.AddServiceListener(transport.Audio, ev)
	tr.AddServiceListener(transport.Video, ev)

	if err := tr.StartService(transport.Audio, false); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if media := receive(t, ev.started); media != transport.Audio {
		t.Errorf("expected PCM started, got %v", media)
	}

	tr.StartService(transport.Video, false)
	if reason := receive(t, ev.errors); reason != "no video" {
		t.Errorf("expected nack reason, got %q", reason)
	}

	sink, err := tr.OpenStreamSink(transport.Audio)
	if err != nil {
		t.Fatalf("open sink failed: %v", err)
	}
	if err := sink.SendFrame([]byte{1, 2, 3, 4}, 62500); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	frame := receive(t, frames)
	if frame.Media != transport.Audio || frame.PresentationTimeUs != 62500 || len(frame.Data) != 4 {
		t.Errorf("unexpected frame: %+v", frame)
	}

	sink.Close()
	if err := sink.SendFrame([]byte{1}, 0); err != ErrSinkClosed {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}

	tr.StopService(transport.Audio)
	if media := receive(t, ev.ended); media != transport.Audio {
		t.Errorf("expected PCM ended, got %v", media)
	}
}

func TestTransportLossEndsServices(t *testing.T) {
	server := fakeHeadUnit(t, make(chan protocol.Frame, 1))
	defer server.Close()

	tr := connect(t, server)
	ev := newEvents()
	tr.AddServiceListener(transport.Audio, ev)
	tr.StartService(transport.Audio, false)
	receive(t, ev.started)

	// the fake head unit hangs up on goodbye
	tr.SendGoodbye("shutdown")

	if media := receive(t, ev.ended); media != transport.Audio {
		t.Errorf("expected PCM ended on connection loss, got %v", media)
	}
	if tr.IsConnected() {
		t.Errorf("expected disconnected")
	}
	if err := tr.StartService(transport.Audio, false); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
