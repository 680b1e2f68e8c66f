// ABOUTME: Polarity checker for decoded square-wave output
// ABOUTME: Counts samples that match the expected wave or sit on an edge
package audiotest

import (
	"math"
	"sync"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// SquareChecker classifies output samples of a 250 Hz square wave.
//
// A sample is correct when its polarity-adjusted value lies in (0.7, 0.95) or
// it is within one output period of a wave edge.
type SquareChecker struct {
	SampleRate int
	PeriodUs   float64 // full wave period, 4000us for 250 Hz

	mu      sync.Mutex
	correct int
	wrong   int
}

// NewSquareChecker creates a checker for output at sampleRate
func NewSquareChecker(sampleRate int, frequencyHz float64) *SquareChecker {
	return &SquareChecker{
		SampleRate: sampleRate,
		PeriodUs:   1_000_000 / frequencyHz,
	}
}

// Check classifies every sample of a mono output buffer
func (c *SquareChecker) Check(buf audio.Samples) {
	sampleDurationUs := 1_000_000 / float64(c.SampleRate)
	half := c.PeriodUs / 2
	timeUs := float64(buf.PresentationTimeUs())

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < buf.Limit(); i++ {
		sample, err := buf.Get(i)
		if err != nil {
			c.wrong++
			continue
		}

		edge := math.Mod(timeUs, c.PeriodUs)
		if edge > half {
			sample = -sample
		}
		edge = math.Mod(edge, half)

		if (sample > 0.7 && sample < 0.95) || edge < sampleDurationUs || half-sampleDurationUs < edge {
			c.correct++
		} else {
			c.wrong++
		}
		timeUs += sampleDurationUs
	}
}

// Counts returns the correct and wrong sample counts
func (c *SquareChecker) Counts() (correct, wrong int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correct, c.wrong
}

// WrongPercent returns 100 * wrong / correct
func (c *SquareChecker) WrongPercent() float64 {
	correct, wrong := c.Counts()
	if correct == 0 {
		return math.Inf(1)
	}
	return 100 * float64(wrong) / float64(correct)
}
