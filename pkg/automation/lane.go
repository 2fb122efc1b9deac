package automation

import (
	"sort"

	"github.com/Bojan20/reelforge/pkg/param"
)

// pointReplaceTolerance merges points landing within one sample.
const pointReplaceTolerance = 1

// Lane is the automation curve of a single parameter. Points are kept
// strictly sorted by time; two points never share a sample.
type Lane struct {
	ParamID param.ID `json:"param_id"`
	Name    string   `json:"name"`
	Points  []Point  `json:"points"`
	Enabled bool     `json:"enabled"`

	DefaultValue float64 `json:"default_value"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Unit         string  `json:"unit"`
}

// NewLane creates an enabled lane with a [0,1] range and 0.5 default.
func NewLane(id param.ID, name string) *Lane {
	return &Lane{
		ParamID:      id,
		Name:         name,
		Enabled:      true,
		DefaultValue: 0.5,
		Min:          0,
		Max:          1,
	}
}

// WithRange sets min/max/default and returns the lane.
func (l *Lane) WithRange(min, max, def float64) *Lane {
	l.Min = min
	l.Max = max
	l.DefaultValue = def
	return l
}

// WithUnit sets the display unit and returns the lane.
func (l *Lane) WithUnit(unit string) *Lane {
	l.Unit = unit
	return l
}

// AddPoint inserts a point keeping sort order. A point within one
// sample of an existing one replaces it.
func (l *Lane) AddPoint(p Point) {
	p.Value = clamp01(p.Value)

	for i := range l.Points {
		d := int64(l.Points[i].TimeSamples) - int64(p.TimeSamples)
		if d >= -pointReplaceTolerance && d <= pointReplaceTolerance {
			p.TimeSamples = l.Points[i].TimeSamples
			l.Points[i] = p
			return
		}
	}

	idx := sort.Search(len(l.Points), func(i int) bool {
		return l.Points[i].TimeSamples > p.TimeSamples
	})
	l.Points = append(l.Points, Point{})
	copy(l.Points[idx+1:], l.Points[idx:])
	l.Points[idx] = p
}

// RemovePointAt removes the first point within tolerance samples of
// time. Returns whether one was removed.
func (l *Lane) RemovePointAt(time uint64, tolerance uint64) bool {
	for i := range l.Points {
		d := int64(l.Points[i].TimeSamples) - int64(time)
		if d < 0 {
			d = -d
		}
		if uint64(d) <= tolerance {
			l.Points = append(l.Points[:i], l.Points[i+1:]...)
			return true
		}
	}
	return false
}

// ValueAt returns the interpolated value at a sample position. Before
// the first point it returns the first point's value, after the last
// the last's; an empty lane returns the default value.
func (l *Lane) ValueAt(time uint64) float64 {
	if len(l.Points) == 0 {
		return l.DefaultValue
	}
	if time <= l.Points[0].TimeSamples {
		return l.Points[0].Value
	}
	last := l.Points[len(l.Points)-1]
	if time >= last.TimeSamples {
		return last.Value
	}

	idx := sort.Search(len(l.Points), func(i int) bool {
		return l.Points[i].TimeSamples > time
	})
	p1 := l.Points[idx-1]
	p2 := l.Points[idx]

	t := float64(time-p1.TimeSamples) / float64(p2.TimeSamples-p1.TimeSamples)
	return interpolate(p1, p2, t)
}

// PlainValueAt maps ValueAt into the lane's [Min, Max] range.
func (l *Lane) PlainValueAt(time uint64) float64 {
	return l.Min + l.ValueAt(time)*(l.Max-l.Min)
}

// PointsInRange returns the points with time in [start, end].
func (l *Lane) PointsInRange(start, end uint64) []Point {
	var out []Point
	for _, p := range l.Points {
		if p.TimeSamples >= start && p.TimeSamples <= end {
			out = append(out, p)
		}
	}
	return out
}

// Clear removes all points.
func (l *Lane) Clear() {
	l.Points = nil
}

// ScaleValues multiplies every point value by factor, clamping to
// [0, 1].
func (l *Lane) ScaleValues(factor float64) {
	for i := range l.Points {
		l.Points[i].Value = clamp01(l.Points[i].Value * factor)
	}
}

// OffsetTime shifts every point by delta samples, saturating at zero.
func (l *Lane) OffsetTime(delta int64) {
	for i := range l.Points {
		if delta >= 0 {
			l.Points[i].TimeSamples += uint64(delta)
		} else {
			neg := uint64(-delta)
			if neg > l.Points[i].TimeSamples {
				l.Points[i].TimeSamples = 0
			} else {
				l.Points[i].TimeSamples -= neg
			}
		}
	}
	// Saturation can collide points at zero; of the points sharing a
	// sample only the last (originally latest) one is kept, so the
	// lane stays strictly sorted.
	sort.SliceStable(l.Points, func(i, j int) bool {
		return l.Points[i].TimeSamples < l.Points[j].TimeSamples
	})
	kept := l.Points[:0]
	for _, p := range l.Points {
		if n := len(kept); n > 0 && kept[n-1].TimeSamples == p.TimeSamples {
			kept[n-1] = p
			continue
		}
		kept = append(kept, p)
	}
	l.Points = kept
}
