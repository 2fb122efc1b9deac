package timeline

import (
	"sort"
)

// Note is a single MIDI note inside a clip.
type Note struct {
	StartTick     uint64 `json:"start_tick"`
	DurationTicks uint64 `json:"duration_ticks"`
	Pitch         uint8  `json:"pitch"`    // 0..127
	Velocity      uint8  `json:"velocity"` // 0..127
	Channel       uint8  `json:"channel"`  // 0..15
}

// EndTick returns the tick the note releases at.
func (n Note) EndTick() uint64 {
	return n.StartTick + n.DurationTicks
}

// ControlChange is a CC event inside a clip.
type ControlChange struct {
	Tick       uint64 `json:"tick"`
	Controller uint8  `json:"controller"`
	Value      uint8  `json:"value"`
	Channel    uint8  `json:"channel"`
}

// PitchBend is a pitch-bend event inside a clip. Value is the raw
// 14-bit bend, 8192 = center.
type PitchBend struct {
	Tick    uint64 `json:"tick"`
	Value   uint16 `json:"value"`
	Channel uint8  `json:"channel"`
}

// ProgramChange selects an instrument program.
type ProgramChange struct {
	Tick    uint64 `json:"tick"`
	Program uint8  `json:"program"`
	Channel uint8  `json:"channel"`
}

// MidiClip is a pool entry holding MIDI material. Notes are kept
// sorted by start tick; LengthTicks never shrinks below the last note
// release.
type MidiClip struct {
	ID   ClipID `json:"id"`
	Name string `json:"name"`

	Notes          []Note          `json:"notes"`
	CCs            []ControlChange `json:"ccs,omitempty"`
	PitchBends     []PitchBend     `json:"pitch_bends,omitempty"`
	ProgramChanges []ProgramChange `json:"program_changes,omitempty"`

	LengthTicks uint64 `json:"length_ticks"`
	Color       Color  `json:"color"`

	UsageCount uint32 `json:"usage_count"`
}

// NewMidiClip creates an empty MIDI clip. The ID is assigned by the pool.
func NewMidiClip(name string) MidiClip {
	return MidiClip{Name: name, Color: ColorPurple}
}

// AddNote inserts a note keeping sort order and grows the clip length
// to cover it.
func (c *MidiClip) AddNote(n Note) {
	if n.Pitch > 127 {
		n.Pitch = 127
	}
	if n.Velocity > 127 {
		n.Velocity = 127
	}
	if n.Channel > 15 {
		n.Channel = 15
	}

	idx := sort.Search(len(c.Notes), func(i int) bool { return c.Notes[i].StartTick > n.StartTick })
	c.Notes = append(c.Notes, Note{})
	copy(c.Notes[idx+1:], c.Notes[idx:])
	c.Notes[idx] = n

	if end := n.EndTick(); end > c.LengthTicks {
		c.LengthTicks = end
	}
}

// RemoveNoteAt removes the first note starting exactly at tick with
// the given pitch. Returns false if none matched.
func (c *MidiClip) RemoveNoteAt(tick uint64, pitch uint8) bool {
	for i, n := range c.Notes {
		if n.StartTick == tick && n.Pitch == pitch {
			c.Notes = append(c.Notes[:i], c.Notes[i+1:]...)
			return true
		}
	}
	return false
}

// NotesInRange returns the notes sounding within [startTick, endTick).
func (c *MidiClip) NotesInRange(startTick, endTick uint64) []Note {
	var out []Note
	for _, n := range c.Notes {
		if n.StartTick < endTick && n.EndTick() > startTick {
			out = append(out, n)
		}
	}
	return out
}

// Quantize snaps note starts toward the grid. strength 1.0 lands
// exactly on the grid, 0.5 moves half way.
func (c *MidiClip) Quantize(gridTicks uint64, strength float64) {
	if gridTicks == 0 {
		return
	}
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	for i := range c.Notes {
		start := c.Notes[i].StartTick
		snapped := (start + gridTicks/2) / gridTicks * gridTicks
		delta := float64(snapped) - float64(start)
		c.Notes[i].StartTick = uint64(float64(start) + delta*strength)
		if end := c.Notes[i].EndTick(); end > c.LengthTicks {
			c.LengthTicks = end
		}
	}

	sort.Slice(c.Notes, func(i, j int) bool { return c.Notes[i].StartTick < c.Notes[j].StartTick })
}

// Transpose shifts every note by semitones, clamping to the MIDI range.
func (c *MidiClip) Transpose(semitones int8) {
	for i := range c.Notes {
		p := int(c.Notes[i].Pitch) + int(semitones)
		if p < 0 {
			p = 0
		}
		if p > 127 {
			p = 127
		}
		c.Notes[i].Pitch = uint8(p)
	}
}
