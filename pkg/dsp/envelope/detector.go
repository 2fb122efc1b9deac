package envelope

import "math"

// DetectorMode selects what the detector tracks.
type DetectorMode int

const (
	// ModePeak tracks the absolute peak of the signal
	ModePeak DetectorMode = iota
	// ModeRMS tracks the RMS level
	ModeRMS
)

// Detector is a classic attack/release envelope follower used by the
// dynamics processors.
type Detector struct {
	mode       DetectorMode
	sampleRate float64
	attackCo   float64
	releaseCo  float64
	envelope   float64
	rmsState   float64
}

// NewDetector creates a detector with 1 ms attack and 50 ms release.
func NewDetector(sampleRate float64, mode DetectorMode) *Detector {
	d := &Detector{
		mode:       mode,
		sampleRate: sampleRate,
	}
	d.SetAttack(0.001)
	d.SetRelease(0.050)
	return d
}

// SetAttack sets the attack time in seconds.
func (d *Detector) SetAttack(seconds float64) {
	d.attackCo = timeCoefficient(seconds, d.sampleRate)
}

// SetRelease sets the release time in seconds.
func (d *Detector) SetRelease(seconds float64) {
	d.releaseCo = timeCoefficient(seconds, d.sampleRate)
}

// Process feeds one sample and returns the envelope value.
func (d *Detector) Process(input float64) float64 {
	level := math.Abs(input)
	if d.mode == ModeRMS {
		// One-pole smoothed square, 1000-sample time constant
		// (~21 ms at 48 kHz)
		d.rmsState += 0.001 * (input*input - d.rmsState)
		level = math.Sqrt(math.Max(0, d.rmsState))
	}

	if level > d.envelope {
		d.envelope = level + d.attackCo*(d.envelope-level)
	} else {
		d.envelope = level + d.releaseCo*(d.envelope-level)
	}
	return d.envelope
}

// Value returns the current envelope without advancing.
func (d *Detector) Value() float64 {
	return d.envelope
}

// Reset clears detector state.
func (d *Detector) Reset() {
	d.envelope = 0
	d.rmsState = 0
}

// timeCoefficient converts a time constant to a one-pole coefficient.
func timeCoefficient(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (seconds * sampleRate))
}
