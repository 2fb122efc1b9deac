package analysis

import (
	"math"
)

// CorrelationMeter measures the Pearson correlation of the left and
// right channels over a sliding window. +1 means mono-compatible,
// -1 means fully out of phase. When either channel is silent over the
// window the meter reports +1.0.
type CorrelationMeter struct {
	bufferL  []float64
	bufferR  []float64
	writePos int
	count    int
}

// NewCorrelationMeter creates a meter with the given window in samples.
func NewCorrelationMeter(windowSamples int) *CorrelationMeter {
	if windowSamples < 2 {
		windowSamples = 2
	}
	return &CorrelationMeter{
		bufferL: make([]float64, windowSamples),
		bufferR: make([]float64, windowSamples),
	}
}

// Process feeds a stereo block and returns the current correlation.
func (cm *CorrelationMeter) Process(left, right []float32) float64 {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		cm.bufferL[cm.writePos] = float64(left[i])
		cm.bufferR[cm.writePos] = float64(right[i])
		cm.writePos++
		if cm.writePos >= len(cm.bufferL) {
			cm.writePos = 0
		}
		if cm.count < len(cm.bufferL) {
			cm.count++
		}
	}
	return cm.Value()
}

// Value computes the Pearson correlation over the filled window.
func (cm *CorrelationMeter) Value() float64 {
	if cm.count < 2 {
		return 1.0
	}

	var sumL, sumR float64
	for i := 0; i < cm.count; i++ {
		sumL += cm.bufferL[i]
		sumR += cm.bufferR[i]
	}
	meanL := sumL / float64(cm.count)
	meanR := sumR / float64(cm.count)

	var cov, varL, varR float64
	for i := 0; i < cm.count; i++ {
		dl := cm.bufferL[i] - meanL
		dr := cm.bufferR[i] - meanR
		cov += dl * dr
		varL += dl * dl
		varR += dr * dr
	}

	if varL < 1e-12 || varR < 1e-12 {
		return 1.0
	}

	c := cov / math.Sqrt(varL*varR)
	if c > 1 {
		c = 1
	}
	if c < -1 {
		c = -1
	}
	return c
}

// Reset clears the window.
func (cm *CorrelationMeter) Reset() {
	for i := range cm.bufferL {
		cm.bufferL[i] = 0
		cm.bufferR[i] = 0
	}
	cm.writePos = 0
	cm.count = 0
}
