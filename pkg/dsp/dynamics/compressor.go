package dynamics

import (
	"math"

	"github.com/Bojan20/reelforge/pkg/dsp/envelope"
	"github.com/Bojan20/reelforge/pkg/dsp/gain"
)

// Compressor implements a feed-forward compressor with soft knee.
type Compressor struct {
	sampleRate float64

	threshold float64 // dB
	ratio     float64
	kneeWidth float64 // dB
	makeup    float64 // dB

	detector *envelope.Detector

	gainReduction float64 // dB
}

// NewCompressor creates a compressor with -18 dB threshold, 4:1 ratio,
// 6 dB knee, 5 ms attack and 100 ms release.
func NewCompressor(sampleRate float64) *Compressor {
	c := &Compressor{
		sampleRate: sampleRate,
		threshold:  -18.0,
		ratio:      4.0,
		kneeWidth:  6.0,
		detector:   envelope.NewDetector(sampleRate, envelope.ModePeak),
	}
	c.detector.SetAttack(0.005)
	c.detector.SetRelease(0.100)
	return c
}

// SetThreshold sets the threshold in dB.
func (c *Compressor) SetThreshold(db float64) { c.threshold = db }

// SetRatio sets the compression ratio (clamped to >= 1).
func (c *Compressor) SetRatio(ratio float64) { c.ratio = math.Max(1, ratio) }

// SetKneeWidth sets the soft knee width in dB.
func (c *Compressor) SetKneeWidth(db float64) { c.kneeWidth = math.Max(0, db) }

// SetMakeupGain sets the output makeup gain in dB.
func (c *Compressor) SetMakeupGain(db float64) { c.makeup = db }

// SetAttack sets the attack time in seconds.
func (c *Compressor) SetAttack(seconds float64) { c.detector.SetAttack(seconds) }

// SetRelease sets the release time in seconds.
func (c *Compressor) SetRelease(seconds float64) { c.detector.SetRelease(seconds) }

// GainReduction returns the current gain reduction in dB (>= 0).
func (c *Compressor) GainReduction() float64 { return c.gainReduction }

// ProcessStereo compresses a stereo pair in place with linked detection.
func (c *Compressor) ProcessStereo(left, right []float32) {
	makeupLin := gain.DbToLinear(c.makeup)
	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	for i := 0; i < n; i++ {
		peak := math.Max(math.Abs(float64(left[i])), math.Abs(float64(right[i])))
		env := c.detector.Process(peak)
		levelDb := gain.LinearToDb(env)

		reductionDb := c.computeGainDb(levelDb)
		c.gainReduction = -reductionDb

		g := gain.DbToLinear(reductionDb) * makeupLin
		left[i] = float32(float64(left[i]) * g)
		right[i] = float32(float64(right[i]) * g)
	}
}

// computeGainDb returns the (negative) gain change for an input level.
func (c *Compressor) computeGainDb(levelDb float64) float64 {
	over := levelDb - c.threshold

	if c.kneeWidth > 0 && math.Abs(over) <= c.kneeWidth/2 {
		// Soft knee: quadratic interpolation through the knee region
		x := over + c.kneeWidth/2
		return -(1 - 1/c.ratio) * x * x / (2 * c.kneeWidth)
	}
	if over <= 0 {
		return 0
	}
	return -over * (1 - 1/c.ratio)
}

// Reset clears compressor state.
func (c *Compressor) Reset() {
	c.detector.Reset()
	c.gainReduction = 0
}
