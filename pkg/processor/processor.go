// Package processor defines the polymorphic audio processor chain
// used by the master path and the offline renderer.
package processor

import (
	"github.com/Bojan20/reelforge/pkg/dsp/dynamics"
	"github.com/Bojan20/reelforge/pkg/dsp/filter"
	"github.com/Bojan20/reelforge/pkg/dsp/gain"
	"github.com/Bojan20/reelforge/pkg/dsp/pan"
)

// Processor is the capability set every chain element implements.
type Processor interface {
	// Process transforms a stereo block in place.
	Process(left, right []float32)
	// Latency reports the samples of delay the processor introduces.
	Latency() int
	// Reset clears internal state.
	Reset()
}

// Chain runs processors in order.
type Chain struct {
	procs []Processor
}

// NewChain creates a chain from the given processors.
func NewChain(procs ...Processor) *Chain {
	return &Chain{procs: procs}
}

// Append adds a processor to the end of the chain.
func (c *Chain) Append(p Processor) {
	c.procs = append(c.procs, p)
}

// Len returns the number of processors.
func (c *Chain) Len() int {
	return len(c.procs)
}

// Process runs the whole chain on a stereo block.
func (c *Chain) Process(left, right []float32) {
	for _, p := range c.procs {
		p.Process(left, right)
	}
}

// Latency sums the chain's latencies.
func (c *Chain) Latency() int {
	total := 0
	for _, p := range c.procs {
		total += p.Latency()
	}
	return total
}

// Reset resets every processor.
func (c *Chain) Reset() {
	for _, p := range c.procs {
		p.Reset()
	}
}

// Passthrough leaves audio untouched.
type Passthrough struct{}

// Process is a no-op.
func (Passthrough) Process(left, right []float32) {}

// Latency is zero.
func (Passthrough) Latency() int { return 0 }

// Reset is a no-op.
func (Passthrough) Reset() {}

// GainStage applies a fixed dB gain.
type GainStage struct {
	linear float32
}

// NewGainStage creates a gain stage.
func NewGainStage(db float64) *GainStage {
	return &GainStage{linear: float32(gain.DbToLinear(db))}
}

// SetGainDB changes the gain.
func (g *GainStage) SetGainDB(db float64) {
	g.linear = float32(gain.DbToLinear(db))
}

// Process scales both channels.
func (g *GainStage) Process(left, right []float32) {
	for i := range left {
		left[i] *= g.linear
	}
	for i := range right {
		right[i] *= g.linear
	}
}

// Latency is zero.
func (g *GainStage) Latency() int { return 0 }

// Reset is a no-op.
func (g *GainStage) Reset() {}

// DcBlock removes DC offset from the chain input.
type DcBlock struct {
	blocker *filter.StereoDcBlocker
}

// NewDcBlock creates a DC blocking stage.
func NewDcBlock(sampleRate float64) *DcBlock {
	return &DcBlock{blocker: filter.NewStereoDcBlocker(sampleRate)}
}

// Process filters both channels.
func (d *DcBlock) Process(left, right []float32) {
	d.blocker.ProcessBuffers(left, right)
}

// Latency is zero.
func (d *DcBlock) Latency() int { return 0 }

// Reset clears filter state.
func (d *DcBlock) Reset() { d.blocker.Reset() }

// Limiter wraps the brick-wall limiter as a chain element.
type Limiter struct {
	lim *dynamics.Limiter
}

// NewLimiter creates a limiter stage with the given ceiling.
func NewLimiter(sampleRate, thresholdDb float64) *Limiter {
	l := &Limiter{lim: dynamics.NewLimiter(sampleRate)}
	l.lim.SetThreshold(thresholdDb)
	return l
}

// SetThreshold changes the ceiling in dB.
func (l *Limiter) SetThreshold(db float64) {
	l.lim.SetThreshold(db)
}

// GainReduction returns the current reduction in dB.
func (l *Limiter) GainReduction() float64 {
	return l.lim.GainReduction()
}

// Process limits the block.
func (l *Limiter) Process(left, right []float32) {
	l.lim.ProcessStereo(left, right)
}

// Latency is the lookahead delay.
func (l *Limiter) Latency() int { return l.lim.Latency() }

// Reset clears limiter state.
func (l *Limiter) Reset() { l.lim.Reset() }

// Compressor wraps the soft-knee compressor as a chain element.
type Compressor struct {
	comp *dynamics.Compressor
}

// NewCompressor creates a compressor stage.
func NewCompressor(sampleRate float64) *Compressor {
	return &Compressor{comp: dynamics.NewCompressor(sampleRate)}
}

// Inner exposes the underlying compressor for parameter setting.
func (c *Compressor) Inner() *dynamics.Compressor { return c.comp }

// Process compresses the block.
func (c *Compressor) Process(left, right []float32) {
	c.comp.ProcessStereo(left, right)
}

// Latency is zero.
func (c *Compressor) Latency() int { return 0 }

// Reset clears compressor state.
func (c *Compressor) Reset() { c.comp.Reset() }

// EQBand is one parametric band configuration.
type EQBand struct {
	Type   filter.BiquadType
	Freq   float64
	Q      float64
	GainDB float64
}

// EQ is a multi-band parametric equalizer.
type EQ struct {
	sampleRate float64
	bands      []EQBand
	left       []filter.Biquad
	right      []filter.Biquad
}

// NewEQ creates an equalizer with the given bands.
func NewEQ(sampleRate float64, bands ...EQBand) *EQ {
	eq := &EQ{sampleRate: sampleRate}
	eq.SetBands(bands...)
	return eq
}

// SetBands reconfigures every band.
func (e *EQ) SetBands(bands ...EQBand) {
	e.bands = bands
	e.left = make([]filter.Biquad, len(bands))
	e.right = make([]filter.Biquad, len(bands))
	for i, b := range bands {
		e.left[i].Configure(b.Type, b.Freq, b.Q, b.GainDB, e.sampleRate)
		e.right[i].Configure(b.Type, b.Freq, b.Q, b.GainDB, e.sampleRate)
	}
}

// Process filters the block through every band.
func (e *EQ) Process(left, right []float32) {
	for i := range e.left {
		e.left[i].ProcessBuffer(left)
		e.right[i].ProcessBuffer(right)
	}
}

// Latency is zero (IIR).
func (e *EQ) Latency() int { return 0 }

// Reset clears all band states.
func (e *EQ) Reset() {
	for i := range e.left {
		e.left[i].Reset()
		e.right[i].Reset()
	}
}

// StereoWidth adjusts the stereo image via mid/side scaling. Dual
// panning is the separate DualPan stage.
type StereoWidth struct {
	width float64
}

// NewStereoWidth creates a width stage; 1.0 is unchanged, 0 collapses
// to mono, 2.0 doubles the side signal.
func NewStereoWidth(width float64) *StereoWidth {
	return &StereoWidth{width: width}
}

// SetWidth changes the width factor.
func (s *StereoWidth) SetWidth(width float64) {
	if width < 0 {
		width = 0
	}
	s.width = width
}

// Process rescales the side channel.
func (s *StereoWidth) Process(left, right []float32) {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	w := float32(s.width)
	for i := 0; i < n; i++ {
		mid := (left[i] + right[i]) * 0.5
		side := (left[i] - right[i]) * 0.5 * w
		left[i] = mid + side
		right[i] = mid - side
	}
}

// Latency is zero.
func (s *StereoWidth) Latency() int { return 0 }

// Reset is a no-op.
func (s *StereoWidth) Reset() {}

// DualPan repositions a stereo signal with independent left/right
// channel pans.
type DualPan struct {
	panL float64
	panR float64
}

// NewDualPan creates a dual-pan stage.
func NewDualPan(panL, panR float64) *DualPan {
	return &DualPan{panL: panL, panR: panR}
}

// SetPans changes both pan positions.
func (d *DualPan) SetPans(panL, panR float64) {
	d.panL = panL
	d.panR = panR
}

// Process applies the dual pan law.
func (d *DualPan) Process(left, right []float32) {
	pan.ProcessStereo(left, right, d.panL, d.panR)
}

// Latency is zero.
func (d *DualPan) Latency() int { return 0 }

// Reset is a no-op.
func (d *DualPan) Reset() {}
