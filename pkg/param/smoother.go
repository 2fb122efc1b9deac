package param

import (
	"math"
)

// Smoother removes zipper noise from parameter changes with a one-pole
// lowpass. The default time constant is 5 ms.
type Smoother struct {
	current     float64
	target      float64
	coefficient float64
	threshold   float64
	smoothing   bool
}

// DefaultSmoothingMs is the engine-wide smoothing time constant.
const DefaultSmoothingMs = 5.0

// NewSmoother creates a smoother settled at value with the given time
// constant.
func NewSmoother(value, sampleRate, timeMs float64) *Smoother {
	s := &Smoother{
		current:   value,
		target:    value,
		threshold: 1e-4,
	}
	s.SetTime(sampleRate, timeMs)
	return s
}

// SetTime derives the one-pole coefficient reaching -60 dB of the
// remaining distance in timeMs.
func (s *Smoother) SetTime(sampleRate, timeMs float64) {
	if sampleRate <= 0 || timeMs <= 0 {
		s.coefficient = 0
		return
	}
	s.coefficient = math.Exp(-6.908 / (sampleRate * timeMs / 1000.0))
}

// SetTarget sets the value the smoother moves toward.
func (s *Smoother) SetTarget(target float64) {
	if math.Abs(target-s.target) < s.threshold && !s.smoothing {
		return
	}
	s.target = target
	s.smoothing = math.Abs(target-s.current) >= s.threshold
	if !s.smoothing {
		s.current = target
	}
}

// Next advances one sample and returns the smoothed value.
func (s *Smoother) Next() float64 {
	if !s.smoothing {
		return s.current
	}
	s.current = s.target + (s.current-s.target)*s.coefficient
	if math.Abs(s.current-s.target) < s.threshold {
		s.current = s.target
		s.smoothing = false
	}
	return s.current
}

// NextBlock advances blockSize samples at once and returns the value
// at the end of the block. Used where per-sample smoothing is not
// audible (bus and master pan).
func (s *Smoother) NextBlock(blockSize int) float64 {
	if !s.smoothing || blockSize <= 0 {
		return s.current
	}
	co := math.Pow(s.coefficient, float64(blockSize))
	s.current = s.target + (s.current-s.target)*co
	if math.Abs(s.current-s.target) < s.threshold {
		s.current = s.target
		s.smoothing = false
	}
	return s.current
}

// Value returns the current value without advancing.
func (s *Smoother) Value() float64 {
	return s.current
}

// IsSmoothing reports whether the smoother is still moving.
func (s *Smoother) IsSmoothing() bool {
	return s.smoothing
}

// Reset jumps to value and stops smoothing.
func (s *Smoother) Reset(value float64) {
	s.current = value
	s.target = value
	s.smoothing = false
}

// Bank is a dense array of smoothers the audio thread iterates
// contiguously, one per smoothed engine parameter. Indices are
// assigned at engine construction and stay fixed.
type Bank struct {
	smoothers []Smoother
}

// NewBank creates a bank of n smoothers settled at their initial
// values.
func NewBank(n int, initial float64, sampleRate, timeMs float64) *Bank {
	b := &Bank{smoothers: make([]Smoother, n)}
	for i := range b.smoothers {
		b.smoothers[i] = *NewSmoother(initial, sampleRate, timeMs)
	}
	return b
}

// Len returns the number of smoothers.
func (b *Bank) Len() int {
	return len(b.smoothers)
}

// At returns the smoother at index, or nil when out of range.
func (b *Bank) At(index int) *Smoother {
	if index < 0 || index >= len(b.smoothers) {
		return nil
	}
	return &b.smoothers[index]
}

// SetTarget sets the target of one smoother; out-of-range indices are
// ignored.
func (b *Bank) SetTarget(index int, target float64) {
	if s := b.At(index); s != nil {
		s.SetTarget(target)
	}
}

// NextBlock advances every smoother by blockSize samples.
func (b *Bank) NextBlock(blockSize int) {
	for i := range b.smoothers {
		b.smoothers[i].NextBlock(blockSize)
	}
}

// Value returns the current value of one smoother (0 out of range).
func (b *Bank) Value(index int) float64 {
	if s := b.At(index); s != nil {
		return s.Value()
	}
	return 0
}
