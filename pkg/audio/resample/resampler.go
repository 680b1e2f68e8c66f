// ABOUTME: Stateful resampler producing one output frame per output period
// ABOUTME: Maps channels and interpolates across decoded buffer boundaries
package resample

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// Resampler converts decoded buffers to a fixed output format.
// It is not safe for concurrent use; one resampler serves one decode stream.
type Resampler struct {
	format  audio.Format
	outDur  float64
	origin  float64
	emitted int64
	started bool

	last []float64 // last output value per output channel

	// last frame of the previous input buffer, per input channel
	tail     []float64
	tailTime float64
	hasTail  bool
}

// New creates a resampler emitting frames in the given output format
func New(output audio.Format) *Resampler {
	return &Resampler{
		format: output,
		outDur: output.FrameDurationUs(),
		last:   make([]float64, output.Channels),
	}
}

// Format returns the output format
func (r *Resampler) Format() audio.Format {
	return r.format
}

// NextTimeUs returns the presentation time of the next frame to be emitted
func (r *Resampler) NextTimeUs() int64 {
	return int64(math.Round(r.origin + float64(r.emitted)*r.outDur))
}

// Process emits every output frame whose time falls within buf.
// The first buffer processed fixes the output time origin.
func (r *Resampler) Process(buf *audio.SampleBuffer, sourceRate int) (audio.Block, error) {
	block := audio.Block{Format: r.format}
	if sourceRate <= 0 {
		return block, fmt.Errorf("invalid source rate: %d", sourceRate)
	}

	limit := buf.Limit()
	if limit == 0 {
		block.PresentationTimeUs = r.NextTimeUs()
		return block, nil
	}

	inCh := buf.Channels()
	views := make([]audio.Samples, inCh)
	for c := 0; c < inCh; c++ {
		v, err := buf.Channel(c)
		if err != nil {
			return block, err
		}
		views[c] = v
	}

	if r.hasTail && len(r.tail) != inCh {
		r.hasTail = false
	}

	srcDur := 1_000_000 / float64(sourceRate)
	pts := float64(buf.PresentationTimeUs())
	if !r.started {
		r.origin = pts
		r.started = true
	}

	end := pts + float64(limit-1)*srcDur
	eps := snapTolerance * r.outDur
	block.PresentationTimeUs = r.NextTimeUs()

	in := make([]float64, inCh)
	for {
		t := r.origin + float64(r.emitted)*r.outDur
		if t > end+eps {
			break
		}

		for c := 0; c < inCh; c++ {
			in[c] = r.valueAt(views[c], c, t, pts, srcDur)
		}

		for ch := 0; ch < r.format.Channels; ch++ {
			v := r.mapChannel(in, ch)
			r.last[ch] = v
			block.Samples = append(block.Samples, v)
		}
		r.emitted++
	}

	if len(r.tail) != inCh {
		r.tail = make([]float64, inCh)
	}
	for c := 0; c < inCh; c++ {
		r.tail[c], _ = views[c].Get(limit - 1)
	}
	r.tailTime = end
	r.hasTail = true

	return block, nil
}

// valueAt estimates input channel c at time t, bridging from the previous buffer's tail
func (r *Resampler) valueAt(view audio.Samples, c int, t, pts, srcDur float64) float64 {
	fallback := r.fallback(c)

	if r.hasTail && t < pts && t >= r.tailTime {
		first, err := view.Get(0)
		if err != nil {
			return fallback
		}
		span := pts - r.tailTime
		if span <= 0 {
			return first
		}
		return r.tail[c] + (first-r.tail[c])*((t-r.tailTime)/span)
	}

	v, _ := SampleAtTargetTime(fallback, view, t, srcDur, r.outDur)
	return v
}

// fallback returns the last emitted value of the output channel fed by input channel c
func (r *Resampler) fallback(c int) float64 {
	if len(r.last) == 0 {
		return 0
	}
	if c >= len(r.last) {
		c = len(r.last) - 1
	}
	return r.last[c]
}

// mapChannel derives output channel ch from one input frame.
// Mono output averages all inputs; extra output channels repeat the last input.
func (r *Resampler) mapChannel(in []float64, ch int) float64 {
	if r.format.Channels == 1 && len(in) > 1 {
		sum := 0.0
		for _, v := range in {
			sum += v
		}
		return sum / float64(len(in))
	}
	if ch >= len(in) {
		ch = len(in) - 1
	}
	return in[ch]
}

// Reset clears all stream state
func (r *Resampler) Reset() {
	r.origin = 0
	r.emitted = 0
	r.started = false
	r.hasTail = false
	r.tailTime = 0
	for i := range r.last {
		r.last[i] = 0
	}
}
