package timeline

import (
	"math"
)

// CrossfadeCurve shapes the blend between two overlapping events.
type CrossfadeCurve int

const (
	// CrossfadeLinear blends with complementary straight lines
	CrossfadeLinear CrossfadeCurve = iota
	// CrossfadeEqualPower blends with sine/cosine quadrants
	CrossfadeEqualPower
	// CrossfadeSCurve blends with a raised cosine
	CrossfadeSCurve
)

// Crossfade blends the tail of one event into the head of the next on
// the same track. Center and Length place the fade region inside the
// events' overlap.
type Crossfade struct {
	LeftEventID  EventID        `json:"left_event_id"`
	RightEventID EventID        `json:"right_event_id"`
	Center       uint64         `json:"center"`
	Length       uint64         `json:"length"`
	Curve        CrossfadeCurve `json:"curve"`
	// Asymmetry in [-1, 1] shifts the crossing point.
	Asymmetry float64 `json:"asymmetry"`
}

// NewCrossfade creates an equal-power crossfade.
func NewCrossfade(leftID, rightID EventID, center, length uint64) Crossfade {
	return Crossfade{
		LeftEventID:  leftID,
		RightEventID: rightID,
		Center:       center,
		Length:       length,
		Curve:        CrossfadeEqualPower,
	}
}

// Start returns the first sample of the fade region.
func (x *Crossfade) Start() uint64 {
	return x.Center - x.Length/2
}

// End returns the first sample past the fade region.
func (x *Crossfade) End() uint64 {
	return x.Center + x.Length/2
}

// GainsAt returns the (left, right) gains at a timeline sample.
// Before the region the left event is at full level; after it the
// right event is.
func (x *Crossfade) GainsAt(pos uint64) (float64, float64) {
	start := x.Start()
	end := x.End()

	if pos < start {
		return 1, 0
	}
	if pos >= end || x.Length == 0 {
		return 0, 1
	}

	t := float64(pos-start) / float64(x.Length)
	if x.Asymmetry != 0 {
		// Bend the crossing point without moving the endpoints.
		t = math.Pow(t, math.Pow(2, x.Asymmetry))
	}

	switch x.Curve {
	case CrossfadeEqualPower:
		angle := t * math.Pi / 2
		return math.Cos(angle), math.Sin(angle)
	case CrossfadeSCurve:
		s := (1 - math.Cos(t*math.Pi)) * 0.5
		return 1 - s, s
	default:
		return 1 - t, t
	}
}
