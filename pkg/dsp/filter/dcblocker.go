package filter

import "math"

// DcBlocker removes DC offset with a ~5 Hz one-pole high-pass.
// DC bias steals headroom before the limiter; this runs first in the
// master chain.
type DcBlocker struct {
	r  float64
	x1 float64
	y1 float64
}

// NewDcBlocker creates a DC blocker for the given sample rate.
func NewDcBlocker(sampleRate float64) *DcBlocker {
	const cutoff = 5.0
	return &DcBlocker{r: 1.0 - (2 * math.Pi * cutoff / sampleRate)}
}

// Process filters one sample: y[n] = x[n] - x[n-1] + R*y[n-1].
func (dc *DcBlocker) Process(input float64) float64 {
	out := input - dc.x1 + dc.r*dc.y1
	dc.x1 = input
	dc.y1 = out
	return out
}

// ProcessBuffer filters a buffer in place.
func (dc *DcBlocker) ProcessBuffer(buffer []float32) {
	for i := range buffer {
		buffer[i] = float32(dc.Process(float64(buffer[i])))
	}
}

// Reset clears filter state.
func (dc *DcBlocker) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// StereoDcBlocker pairs two DC blockers for a stereo path.
type StereoDcBlocker struct {
	left  DcBlocker
	right DcBlocker
}

// NewStereoDcBlocker creates a stereo DC blocker.
func NewStereoDcBlocker(sampleRate float64) *StereoDcBlocker {
	mono := NewDcBlocker(sampleRate)
	return &StereoDcBlocker{left: *mono, right: *mono}
}

// ProcessBuffers filters both channels in place.
func (dc *StereoDcBlocker) ProcessBuffers(left, right []float32) {
	dc.left.ProcessBuffer(left)
	dc.right.ProcessBuffer(right)
}

// Reset clears both channels.
func (dc *StereoDcBlocker) Reset() {
	dc.left.Reset()
	dc.right.Reset()
}
