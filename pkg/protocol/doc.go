// ABOUTME: Head unit wire protocol package
// ABOUTME: Defines control messages and the binary media frame layout
// Package protocol implements the websocket protocol spoken between an app
// and a head unit.
//
// Control messages are JSON objects {"type": ..., "payload": ...}. Media
// travels in binary websocket messages framed as one media byte, an 8-byte
// big-endian presentation time in microseconds, then the payload.
//
// Example:
//
//	data := protocol.EncodeFrame(transport.Audio, ptsUs, pcm)
//	frame, err := protocol.ParseFrame(data)
package protocol
