// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface, oto device output and a discard sink
// Package output provides audio playback for the head-unit simulator.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(16000, 1)
//	err = out.Write(samples)
package output
