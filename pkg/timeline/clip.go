// Package timeline provides the non-destructive clip/event data model:
// the clip pool owning audio and MIDI source material, and the event
// manager placing references to it on tracks.
package timeline

// ClipID identifies a pool entry. IDs are allocated by the pool from a
// monotonic counter and are never recycled.
type ClipID uint64

// EventID identifies a timeline event. Allocated by the event manager,
// never recycled.
type EventID uint64

// GroupID identifies an event group.
type GroupID uint64

// Color is an RGB clip/event color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// The default palette, matching the mixer's track colors.
var (
	ColorRed    = Color{0xff, 0x40, 0x60}
	ColorOrange = Color{0xff, 0x90, 0x40}
	ColorYellow = Color{0xff, 0xff, 0x40}
	ColorGreen  = Color{0x40, 0xff, 0x90}
	ColorCyan   = Color{0x40, 0xc8, 0xff}
	ColorBlue   = Color{0x4a, 0x9e, 0xff}
	ColorPurple = Color{0xa0, 0x60, 0xff}
	ColorPink   = Color{0xff, 0x60, 0xc0}
	ColorGray   = Color{0x80, 0x80, 0x80}
)

// FromU32 unpacks a 0xRRGGBB color.
func FromU32(c uint32) Color {
	return Color{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c)}
}

// U32 packs the color as 0xRRGGBB.
func (c Color) U32() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// MusicalMode holds the optional musical-mode parameters of an audio
// clip used for tempo-synced stretching.
type MusicalMode struct {
	RootNote      uint8   `json:"root_note"`
	OriginalTempo float64 `json:"original_tempo"`
}

// AudioClip is a pool entry for imported audio. Events reference clips
// by ID; UsageCount tracks how many do.
type AudioClip struct {
	ID         ClipID `json:"id"`
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	SampleRate uint32 `json:"sample_rate"`
	// Length is the total source length in samples (per channel).
	Length   uint64 `json:"length"`
	Channels uint8  `json:"channels"`

	Waveform *WaveformData `json:"waveform,omitempty"`
	Musical  *MusicalMode  `json:"musical,omitempty"`
	Color    Color         `json:"color"`

	// UsageCount equals the number of events referencing this clip.
	// Maintained by the event manager.
	UsageCount uint32 `json:"usage_count"`
}

// NewAudioClip creates a pool entry. The ID is assigned by the pool.
func NewAudioClip(name, sourcePath string, sampleRate uint32, length uint64, channels uint8) AudioClip {
	return AudioClip{
		Name:       name,
		SourcePath: sourcePath,
		SampleRate: sampleRate,
		Length:     length,
		Channels:   channels,
		Color:      ColorBlue,
	}
}

// DurationSecs returns the clip duration in seconds.
func (c *AudioClip) DurationSecs() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(c.Length) / float64(c.SampleRate)
}

// DurationAtRate returns the clip length in samples at another rate.
func (c *AudioClip) DurationAtRate(targetRate uint32) uint64 {
	if c.SampleRate == 0 {
		return 0
	}
	return uint64(float64(c.Length) * float64(targetRate) / float64(c.SampleRate))
}
