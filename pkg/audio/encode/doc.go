// ABOUTME: Audio encoder package for turning normalized frames into wire bytes
// ABOUTME: Provides Encoder interface, PCM encoder and Opus packet-stream writer
// Package encode converts normalized output blocks to bytes.
//
// PCMEncoder writes little-endian PCM in the negotiated sample type and is what
// the audio session hands to the transport sink. OpusWriter produces the Opus
// packet streams the decode package reads back.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(block)
package encode
