// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded buffers to the negotiated output rate and channel layout
// Package resample converts timestamped sample buffers to an output cadence.
//
// SampleAtTargetTime is the pure per-sample primitive: it estimates the value of
// a buffer at an arbitrary microsecond timestamp. Resampler drives it once per
// output period and keeps the state needed across buffer boundaries.
//
// Example:
//
//	r := resample.New(audio.Format{Channels: 1, SampleRate: 16000, SampleType: audio.Signed16})
//	block, err := r.Process(buf, 44100)
package resample
