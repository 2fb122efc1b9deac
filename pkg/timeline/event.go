package timeline

import (
	"math"
)

// AudioEvent places a window of an audio clip on a track. The event
// never owns sample data; edits move the visible window, not the
// source.
type AudioEvent struct {
	ID      EventID `json:"id"`
	ClipID  ClipID  `json:"clip_id"`
	TrackID uint64  `json:"track_id"`
	Name    string  `json:"name"`

	// Position and Length are timeline samples; ClipOffset is the
	// read offset into the source clip.
	Position   uint64 `json:"position"`
	Length     uint64 `json:"length"`
	ClipOffset uint64 `json:"clip_offset"`

	GainDB  float64      `json:"gain_db"`
	FadeIn  FadeSettings `json:"fade_in"`
	FadeOut FadeSettings `json:"fade_out"`

	// StretchRatio 1.0 = no stretch; 2.0 plays at half speed.
	StretchRatio float64 `json:"stretch_ratio"`
	// PitchShift in semitones.
	PitchShift float64 `json:"pitch_shift"`

	Reversed bool `json:"reversed"`
	Muted    bool `json:"muted"`
	Locked   bool `json:"locked"`

	ColorOverride *Color   `json:"color_override,omitempty"`
	GroupID       *GroupID `json:"group_id,omitempty"`
}

// NewAudioEvent creates an event; the ID is assigned by the manager.
func NewAudioEvent(clipID ClipID, trackID, position, length uint64) AudioEvent {
	return AudioEvent{
		ClipID:       clipID,
		TrackID:      trackID,
		Position:     position,
		Length:       length,
		StretchRatio: 1.0,
	}
}

// End returns the first timeline sample past the event.
func (e *AudioEvent) End() uint64 {
	return e.Position + e.Length
}

// Contains reports whether a timeline sample falls inside the event.
func (e *AudioEvent) Contains(pos uint64) bool {
	return pos >= e.Position && pos < e.End()
}

// Overlaps reports whether the event intersects [start, end).
func (e *AudioEvent) Overlaps(start, end uint64) bool {
	return e.Position < end && e.End() > start
}

// SourceIndex maps a transport sample inside the event to a
// fractional read index into the source clip, applying clip offset,
// stretch, pitch and reverse. clipLength is the source length used for
// the reverse mirror.
func (e *AudioEvent) SourceIndex(transportPos uint64, clipLength uint64) float64 {
	if transportPos < e.Position {
		return float64(e.ClipOffset)
	}

	d := float64(transportPos - e.Position)
	rate := 1.0
	if e.StretchRatio > 0 {
		rate = 1.0 / e.StretchRatio
	}
	rate *= math.Pow(2, e.PitchShift/12)

	idx := float64(e.ClipOffset) + d*rate
	if e.Reversed {
		window := float64(e.Length) * rate
		end := float64(e.ClipOffset) + window
		if end > float64(clipLength) {
			end = float64(clipLength)
		}
		idx = end - d*rate
		if idx < 0 {
			idx = 0
		}
	}
	return idx
}

// GainAt returns the combined event gain (dB gain times fade factors)
// at a transport sample.
func (e *AudioEvent) GainAt(transportPos uint64) float64 {
	if e.Muted || !e.Contains(transportPos) {
		return 0
	}

	g := math.Pow(10, e.GainDB/20)
	d := transportPos - e.Position

	if e.FadeIn.Length > 0 && d < e.FadeIn.Length {
		g *= e.FadeIn.GainAt(d)
	}
	if e.FadeOut.Length > 0 {
		fromEnd := e.End() - transportPos
		if fromEnd <= e.FadeOut.Length {
			g *= e.FadeOut.GainAt(fromEnd)
		}
	}
	return g
}

// split returns the two halves of the event at an interior position,
// or false when the position is not strictly inside. The halves
// together cover the exact sample content of the source; edge fades
// at the cut are reset.
func (e *AudioEvent) split(at uint64) (AudioEvent, AudioEvent, bool) {
	if at <= e.Position || at >= e.End() {
		return AudioEvent{}, AudioEvent{}, false
	}

	offset := at - e.Position

	left := *e
	left.Length = offset
	left.FadeOut = FadeSettings{}

	right := *e
	right.Position = at
	right.Length = e.Length - offset
	right.ClipOffset = e.ClipOffset + offset
	right.FadeIn = FadeSettings{}

	return left, right, true
}

// trimStart moves the event start, keeping the remaining audio at the
// same timeline position (slip edit). No-op when the new position
// would leave minLength samples or fewer.
func (e *AudioEvent) trimStart(newPosition uint64, minLength uint64) {
	if newPosition+minLength >= e.End() {
		return
	}

	delta := int64(newPosition) - int64(e.Position)
	newOffset := int64(e.ClipOffset) + delta
	if newOffset < 0 {
		newOffset = 0
	}
	e.ClipOffset = uint64(newOffset)
	e.Length = uint64(int64(e.Length) - delta)
	e.Position = newPosition
}

// trimEnd moves the event end. No-op at or below the minimum length.
func (e *AudioEvent) trimEnd(newEnd uint64, minLength uint64) {
	if newEnd <= e.Position+minLength {
		return
	}
	e.Length = newEnd - e.Position
}

// MidiEvent places a window of a MIDI clip on a track, positioned in
// ticks.
type MidiEvent struct {
	ID      EventID `json:"id"`
	ClipID  ClipID  `json:"clip_id"`
	TrackID uint64  `json:"track_id"`
	Name    string  `json:"name"`

	PositionTicks   uint64 `json:"position_ticks"`
	LengthTicks     uint64 `json:"length_ticks"`
	ClipOffsetTicks uint64 `json:"clip_offset_ticks"`

	Transpose     int8    `json:"transpose"`
	VelocityScale float64 `json:"velocity_scale"`

	Muted  bool `json:"muted"`
	Locked bool `json:"locked"`

	ColorOverride *Color   `json:"color_override,omitempty"`
	GroupID       *GroupID `json:"group_id,omitempty"`
}

// NewMidiEvent creates a MIDI event; the ID is assigned by the manager.
func NewMidiEvent(clipID ClipID, trackID, positionTicks, lengthTicks uint64) MidiEvent {
	return MidiEvent{
		ClipID:        clipID,
		TrackID:       trackID,
		PositionTicks: positionTicks,
		LengthTicks:   lengthTicks,
		VelocityScale: 1.0,
	}
}

// End returns the first tick past the event.
func (e *MidiEvent) End() uint64 {
	return e.PositionTicks + e.LengthTicks
}

// Overlaps reports whether the event intersects [start, end) in ticks.
func (e *MidiEvent) Overlaps(start, end uint64) bool {
	return e.PositionTicks < end && e.End() > start
}
