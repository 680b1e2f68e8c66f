// ABOUTME: Streaming session managers for audio and video services
// ABOUTME: Negotiate capabilities, own listeners and drive the stream lifecycle
// Package session manages one audio or video streaming service over a
// transport.Transport.
//
// A session negotiates the head unit's capability, registers its listeners,
// asks the transport to start the service and moves through the stream
// lifecycle (NONE, READY, STARTED, STOPPED). Dispose always removes every
// listener the session registered.
//
// Audio sessions decode pushed resources with pkg/audio/decode and send PCM
// to the transport sink. Video sessions forward encoded frames and pause
// while the head unit does not give the app full focus.
package session
