package bounce

import (
	"math"

	"github.com/Bojan20/reelforge/pkg/dsp/interpolation"
)

// Resampler converts between sample rates on planar float64 blocks.
type Resampler interface {
	// Process consumes one input block (per-channel slices) and
	// appends converted frames to out.
	Process(in [][]float64, out [][]float64) [][]float64
	// Reset clears converter state.
	Reset()
}

// NewResampler picks a converter for the configured quality. Equal
// rates return nil (no conversion).
func NewResampler(sourceRate, targetRate uint32, channels int, quality ResampleQuality) Resampler {
	if sourceRate == targetRate || sourceRate == 0 || targetRate == 0 {
		return nil
	}
	if quality == ResampleLinear {
		return newLinearResampler(sourceRate, targetRate, channels)
	}
	return newSincResampler(sourceRate, targetRate, channels)
}

// linearResampler interpolates between adjacent frames. Cheap, with
// audible imaging above half the lower rate; used when speed beats
// quality.
type linearResampler struct {
	ratio  float64
	phase  float64
	last   []float64
	primed bool
}

func newLinearResampler(sourceRate, targetRate uint32, channels int) *linearResampler {
	return &linearResampler{
		ratio: float64(sourceRate) / float64(targetRate),
		last:  make([]float64, channels),
	}
}

func (r *linearResampler) Process(in [][]float64, out [][]float64) [][]float64 {
	if len(in) == 0 || len(in[0]) == 0 {
		return out
	}
	channels := len(in)
	frames := len(in[0])

	for r.phase < float64(frames) {
		pos := r.phase
		idx := int(pos)
		frac := pos - float64(idx)

		for ch := 0; ch < channels; ch++ {
			var a float64
			if idx == 0 && r.primed {
				// Interpolate across the block boundary.
				a = r.last[ch]
				if frac > 0 {
					a = r.last[ch] + (in[ch][0]-r.last[ch])*frac
				}
				out[ch] = append(out[ch], a)
				continue
			}
			a = in[ch][idx]
			b := a
			if idx+1 < frames {
				b = in[ch][idx+1]
			}
			out[ch] = append(out[ch], a+(b-a)*frac)
		}
		r.phase += r.ratio
	}

	r.phase -= float64(frames)
	for ch := 0; ch < channels; ch++ {
		r.last[ch] = in[ch][frames-1]
	}
	r.primed = true
	return out
}

func (r *linearResampler) Reset() {
	r.phase = 0
	r.primed = false
	for i := range r.last {
		r.last[i] = 0
	}
}

// sincResampler is a 6-tap Kaiser-windowed Lanczos-3 converter. It
// keeps a short history across blocks so taps never read outside the
// delivered audio.
type sincResampler struct {
	ratio   float64
	phase   float64
	history [][]float64 // taps*2 frames per channel
	taps    int
}

func newSincResampler(sourceRate, targetRate uint32, channels int) *sincResampler {
	const taps = 3
	h := make([][]float64, channels)
	for ch := range h {
		h[ch] = make([]float64, 0, taps*2)
	}
	return &sincResampler{
		ratio:   float64(sourceRate) / float64(targetRate),
		history: h,
		taps:    taps,
	}
}

func (r *sincResampler) Process(in [][]float64, out [][]float64) [][]float64 {
	if len(in) == 0 || len(in[0]) == 0 {
		return out
	}
	channels := len(in)

	// Work on history + block so the kernel has left context.
	histLen := len(r.history[0])
	frames := histLen + len(in[0])

	sampleAt := func(ch, idx int) float64 {
		if idx < 0 {
			return 0
		}
		if idx < histLen {
			return r.history[ch][idx]
		}
		if idx-histLen < len(in[ch]) {
			return in[ch][idx-histLen]
		}
		return 0
	}

	// Render only positions whose right taps are available.
	limit := float64(frames - r.taps)
	for r.phase+float64(histLen) < limit {
		center := r.phase + float64(histLen)
		idx := int(math.Floor(center))
		frac := center - float64(idx)

		for ch := 0; ch < channels; ch++ {
			var acc, norm float64
			for k := -r.taps + 1; k <= r.taps; k++ {
				x := float64(k) - frac
				w := interpolation.Lanczos3(x) * interpolation.KaiserWindow(x, float64(r.taps))
				acc += sampleAt(ch, idx+k) * w
				norm += w
			}
			if norm != 0 {
				acc /= norm
			}
			out[ch] = append(out[ch], acc)
		}
		r.phase += r.ratio
	}

	// Keep the last taps*2 frames as context for the next block.
	keep := r.taps * 2
	if frames < keep {
		keep = frames
	}
	for ch := 0; ch < channels; ch++ {
		hist := r.history[ch][:0]
		for i := frames - keep; i < frames; i++ {
			hist = append(hist, sampleAt(ch, i))
		}
		r.history[ch] = hist
	}
	r.phase -= float64(frames - histLen)
	if r.phase < -float64(keep) {
		r.phase = 0
	}
	return out
}

func (r *sincResampler) Reset() {
	r.phase = 0
	for ch := range r.history {
		r.history[ch] = r.history[ch][:0]
	}
}
