// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines sample types, formats, sample buffers and output blocks
// Package audio provides the sample-level types shared by the decode, resample
// and encode packages.
//
//   - SampleType: Unsigned8, Signed16 or Float32 storage
//   - Format: channel count, sample rate and sample type of a PCM stream
//   - SampleBuffer: a read-only typed view over raw PCM bytes, normalized to float64
//   - Block: a run of normalized output frames with a presentation timestamp
//
// Example:
//
//	buf, err := audio.Wrap(raw, audio.Signed16, 0)
//	if err != nil {
//	    return err
//	}
//	for i := 0; i < buf.Limit(); i++ {
//	    v, _ := buf.Get(i) // -1.0 .. 1.0
//	}
package audio
