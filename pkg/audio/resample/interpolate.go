// ABOUTME: Timestamp-driven sample interpolation
// ABOUTME: Estimates a buffer's value at an arbitrary target time
package resample

import (
	"math"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// snapTolerance is the fraction of an output period within which a target
// time is treated as landing exactly on a source sample.
const snapTolerance = 1e-6

// SampleAtTargetTime returns the value of buf at targetTimeUs.
//
// The fractional source index is (target - pts) / sourceFrameDurationUs. A
// target that lands on a source sample returns that sample exactly; one between
// two samples is linearly interpolated. lastOutputSample stands in for the
// sample at index -1, so targets up to one source period before buf start
// interpolate from it. Any other target outside buf yields
// (lastOutputSample, false).
func SampleAtTargetTime(lastOutputSample float64, buf audio.Samples, targetTimeUs, sourceFrameDurationUs, outputFrameDurationUs float64) (float64, bool) {
	limit := buf.Limit()
	if limit == 0 || sourceFrameDurationUs <= 0 {
		return lastOutputSample, false
	}

	offset := targetTimeUs - float64(buf.PresentationTimeUs())
	idx := offset / sourceFrameDurationUs
	if math.IsNaN(idx) || math.IsInf(idx, 0) {
		return lastOutputSample, false
	}

	k := math.Round(idx)
	if math.Abs(idx-k)*sourceFrameDurationUs <= snapTolerance*outputFrameDurationUs {
		if k == -1 {
			return lastOutputSample, true
		}
		if k < 0 || k >= float64(limit) {
			return lastOutputSample, false
		}
		v, err := buf.Get(int(k))
		if err != nil {
			return lastOutputSample, false
		}
		return v, true
	}

	if idx < -1 {
		return lastOutputSample, false
	}
	if idx < 0 {
		first, err := buf.Get(0)
		if err != nil {
			return lastOutputSample, false
		}
		return lastOutputSample + (first-lastOutputSample)*(idx+1), true
	}

	lo := int(math.Floor(idx))
	if lo+1 >= limit {
		return lastOutputSample, false
	}

	a, err := buf.Get(lo)
	if err != nil {
		return lastOutputSample, false
	}
	b, err := buf.Get(lo + 1)
	if err != nil {
		return lastOutputSample, false
	}

	frac := idx - float64(lo)
	return a + (b-a)*frac, true
}
