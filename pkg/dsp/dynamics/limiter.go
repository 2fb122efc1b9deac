// Package dynamics provides dynamic range processors.
package dynamics

import (
	"math"

	"github.com/Bojan20/reelforge/pkg/dsp/envelope"
	"github.com/Bojan20/reelforge/pkg/dsp/gain"
)

// Limiter implements a brick-wall limiter with lookahead.
type Limiter struct {
	sampleRate float64

	threshold float64 // ceiling in dB
	release   float64 // seconds
	lookahead float64 // seconds

	detector *envelope.Detector

	delayL       []float32
	delayR       []float32
	delayIndex   int
	delaySamples int

	gainReduction float64 // current reduction in dB
}

// NewLimiter creates a limiter with a -0.3 dB ceiling, 50 ms release
// and 5 ms lookahead.
func NewLimiter(sampleRate float64) *Limiter {
	l := &Limiter{
		sampleRate: sampleRate,
		threshold:  -0.3,
		release:    0.050,
		lookahead:  0.005,
		detector:   envelope.NewDetector(sampleRate, envelope.ModePeak),
	}
	l.detector.SetAttack(0.0001)
	l.detector.SetRelease(l.release)
	l.updateLookahead()
	return l
}

// SetThreshold sets the ceiling in dB (clamped to <= 0).
func (l *Limiter) SetThreshold(db float64) {
	l.threshold = math.Min(0.0, db)
}

// Threshold returns the ceiling in dB.
func (l *Limiter) Threshold() float64 {
	return l.threshold
}

// SetRelease sets the release time in seconds.
func (l *Limiter) SetRelease(seconds float64) {
	l.release = math.Max(0.001, seconds)
	l.detector.SetRelease(l.release)
}

// SetLookahead sets the lookahead time in seconds (max 10 ms).
func (l *Limiter) SetLookahead(seconds float64) {
	l.lookahead = math.Max(0, math.Min(0.010, seconds))
	l.updateLookahead()
}

// GainReduction returns the current gain reduction in dB (>= 0).
func (l *Limiter) GainReduction() float64 {
	return l.gainReduction
}

// Latency returns the lookahead delay in samples.
func (l *Limiter) Latency() int {
	return l.delaySamples
}

// ProcessStereo limits a stereo pair in place.
func (l *Limiter) ProcessStereo(left, right []float32) {
	ceiling := gain.DbToLinear(l.threshold)
	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	for i := 0; i < n; i++ {
		inL := left[i]
		inR := right[i]

		// Detect on the louder channel before the delay
		peak := math.Max(math.Abs(float64(inL)), math.Abs(float64(inR)))
		env := l.detector.Process(peak)

		reduction := 1.0
		if env > ceiling && env > 0 {
			reduction = ceiling / env
		}
		l.gainReduction = -gain.LinearToDb(reduction)
		if l.gainReduction < 0 {
			l.gainReduction = 0
		}

		outL := inL
		outR := inR
		if l.delaySamples > 0 {
			outL = l.delayL[l.delayIndex]
			outR = l.delayR[l.delayIndex]
			l.delayL[l.delayIndex] = inL
			l.delayR[l.delayIndex] = inR
			l.delayIndex++
			if l.delayIndex >= l.delaySamples {
				l.delayIndex = 0
			}
		}

		left[i] = float32(float64(outL) * reduction)
		right[i] = float32(float64(outR) * reduction)
	}
}

// Reset clears limiter state.
func (l *Limiter) Reset() {
	l.detector.Reset()
	for i := range l.delayL {
		l.delayL[i] = 0
		l.delayR[i] = 0
	}
	l.delayIndex = 0
	l.gainReduction = 0
}

func (l *Limiter) updateLookahead() {
	l.delaySamples = int(l.lookahead * l.sampleRate)
	if l.delaySamples > 0 {
		l.delayL = make([]float32, l.delaySamples)
		l.delayR = make([]float32, l.delaySamples)
	} else {
		l.delayL = nil
		l.delayR = nil
	}
	l.delayIndex = 0
}
