// ABOUTME: Audio decode pipeline and platform decode engines
// ABOUTME: Turns source resources into normalized, resampled output blocks
// Package decode turns an opaque source resource into output PCM blocks in a
// negotiated format.
//
// An Engine wraps one container/codec (WAV, MP3, FLAC, Ogg Vorbis, Opus packet
// streams, raw PCM, or an ffmpeg subprocess) and yields raw buffers tagged with
// presentation timestamps. The Decoder drives an engine on its own goroutine,
// tracks the engine's reported output format, and resamples every buffer to
// the target format one output frame per output period.
//
// Example:
//
//	d := decode.NewDecoder(decode.Config{})
//	d.Start(decode.FileResource{Path: "tone.wav"}, target,
//	    func(b audio.Block) { sink.Write(b) },
//	    func(ok bool, err error) { log.Printf("done: %v %v", ok, err) })
package decode
