// Package pan provides stereo panning operations.
package pan

import (
	"math"
)

// ConstantPower computes constant-power pan gains for a pan position.
// pan: -1.0 = hard left, 0.0 = center, 1.0 = hard right.
// L = cos((p+1)·π/4), R = sin((p+1)·π/4), so center sits at -3 dB.
func ConstantPower(pan float64) (left, right float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}

// DualGains computes the four cross-mix gains for dual panning of a
// stereo source. panL positions the source's left channel, panR the
// right channel; each contributes to both output channels with
// constant-power weighting. Narrowing both pans toward center
// collapses the image, spreading them widens it.
func DualGains(panL, panR float64) (ll, lr, rl, rr float64) {
	ll, lr = ConstantPower(panL)
	rl, rr = ConstantPower(panR)
	return ll, lr, rl, rr
}

// ProcessStereo applies dual panning to a stereo buffer pair in place.
func ProcessStereo(left, right []float32, panL, panR float64) {
	ll, lr, rl, rr := DualGains(panL, panR)
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		l := float64(left[i])
		r := float64(right[i])
		left[i] = float32(l*ll + r*rl)
		right[i] = float32(l*lr + r*rr)
	}
}

// MonoToStereo pans a mono sample to stereo using the constant-power law.
func MonoToStereo(sample float32, pan float64) (left, right float32) {
	lg, rg := ConstantPower(pan)
	return sample * float32(lg), sample * float32(rg)
}
