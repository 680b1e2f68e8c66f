// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends
package output

import "sync"

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs 16-bit interleaved samples (blocks until written)
	Write(samples []int16) error

	// Close releases output resources
	Close() error
}

// Discard is an Output that drops audio and counts samples
type Discard struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	samples    int64
}

// NewDiscard creates a discarding output
func NewDiscard() *Discard {
	return &Discard{}
}

func (d *Discard) Open(sampleRate, channels int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sampleRate = sampleRate
	d.channels = channels
	return nil
}

func (d *Discard) Write(samples []int16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples += int64(len(samples))
	return nil
}

func (d *Discard) Close() error { return nil }

// Samples returns the number of samples written
func (d *Discard) Samples() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samples
}
