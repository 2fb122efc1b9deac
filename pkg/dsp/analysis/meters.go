// Package analysis provides level metering and stereo analysis.
package analysis

import (
	"math"
)

// PeakMeter tracks the decayed maximum of the absolute sample value.
// The decay constant follows a 300 ms fall time. Not goroutine-safe;
// the audio thread owns it and publishes readings through atomics.
type PeakMeter struct {
	peak       float64
	sampleRate float64
}

// NewPeakMeter creates a peak meter.
func NewPeakMeter(sampleRate float64) *PeakMeter {
	return &PeakMeter{sampleRate: sampleRate}
}

// Process updates the meter with a block and returns the current peak.
func (pm *PeakMeter) Process(samples []float32) float64 {
	if len(samples) == 0 {
		return pm.peak
	}

	blockPeak := 0.0
	for _, s := range samples {
		a := math.Abs(float64(s))
		if a > blockPeak {
			blockPeak = a
		}
	}

	// decay = exp(-blockSize / (rate * 0.3))
	decay := math.Exp(-float64(len(samples)) / (pm.sampleRate * 0.3))
	pm.peak *= decay
	if blockPeak > pm.peak {
		pm.peak = blockPeak
	}
	return pm.peak
}

// Peak returns the current decayed peak (linear).
func (pm *PeakMeter) Peak() float64 {
	return pm.peak
}

// Reset clears the meter.
func (pm *PeakMeter) Reset() {
	pm.peak = 0
}

// RMSMeter computes a sliding-window RMS over a fixed window
// (50 ms for the engine's bus meters). The window buffer is
// preallocated; Process is allocation-free.
type RMSMeter struct {
	buffer   []float64
	writePos int
	sum      float64
	count    int
}

// NewRMSMeter creates an RMS meter with the given window in samples.
func NewRMSMeter(windowSamples int) *RMSMeter {
	if windowSamples < 1 {
		windowSamples = 1
	}
	return &RMSMeter{buffer: make([]float64, windowSamples)}
}

// Process feeds a block and returns the current RMS value.
func (rm *RMSMeter) Process(samples []float32) float64 {
	for _, s := range samples {
		sq := float64(s) * float64(s)
		rm.sum -= rm.buffer[rm.writePos]
		rm.buffer[rm.writePos] = sq
		rm.sum += sq
		rm.writePos++
		if rm.writePos >= len(rm.buffer) {
			rm.writePos = 0
		}
		if rm.count < len(rm.buffer) {
			rm.count++
		}
	}
	return rm.Value()
}

// Value returns the current RMS level.
func (rm *RMSMeter) Value() float64 {
	if rm.count == 0 {
		return 0
	}
	mean := rm.sum / float64(rm.count)
	if mean < 0 {
		mean = 0
	}
	return math.Sqrt(mean)
}

// Reset clears the window.
func (rm *RMSMeter) Reset() {
	for i := range rm.buffer {
		rm.buffer[i] = 0
	}
	rm.writePos = 0
	rm.sum = 0
	rm.count = 0
}
