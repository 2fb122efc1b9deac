package midifile

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/Bojan20/reelforge/pkg/importer"
	"github.com/Bojan20/reelforge/pkg/tempo"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

// renderBlock is the synthesis block size in frames.
const renderBlock = 512

// ClipRenderer turns MIDI clips into audio through a SoundFont. Used
// by the offline bounce path; not realtime-safe.
type ClipRenderer struct {
	soundFont  *meltysynth.SoundFont
	sampleRate int32
}

// NewClipRenderer loads a SoundFont from the reader.
func NewClipRenderer(sf2 io.Reader, sampleRate uint32) (*ClipRenderer, error) {
	soundFont, err := meltysynth.NewSoundFont(sf2)
	if err != nil {
		return nil, fmt.Errorf("load soundfont: %w", err)
	}
	return &ClipRenderer{soundFont: soundFont, sampleRate: int32(sampleRate)}, nil
}

// Render synthesizes a clip against the tempo map, honoring the
// event's transpose and velocity scale, and returns stereo audio
// covering the clip plus a release tail.
func (cr *ClipRenderer) Render(clip *timeline.MidiClip, ev *timeline.MidiEvent, tmap *tempo.Map, tailSecs float64) (*importer.ImportedAudio, error) {
	settings := meltysynth.NewSynthesizerSettings(cr.sampleRate)
	synth, err := meltysynth.NewSynthesizer(cr.soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}

	transpose := int32(0)
	velScale := 1.0
	if ev != nil {
		transpose = int32(ev.Transpose)
		if ev.VelocityScale > 0 {
			velScale = ev.VelocityScale
		}
	}

	// Flatten the clip into absolute-sample on/off commands.
	type midiCmd struct {
		frame uint64
		on    bool
		key   int32
		vel   int32
		ch    int32
	}
	var cmds []midiCmd

	for _, pc := range clip.ProgramChanges {
		synth.ProcessMidiMessage(int32(pc.Channel), 0xC0, int32(pc.Program), 0)
	}

	for _, n := range clip.Notes {
		key := int32(n.Pitch) + transpose
		if key < 0 || key > 127 {
			continue
		}
		vel := int32(math.Min(127, math.Max(1, float64(n.Velocity)*velScale)))

		cmds = append(cmds,
			midiCmd{frame: tmap.TicksToSamples(n.StartTick), on: true, key: key, vel: vel, ch: int32(n.Channel)},
			midiCmd{frame: tmap.TicksToSamples(n.EndTick()), on: false, key: key, ch: int32(n.Channel)},
		)
	}
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].frame != cmds[j].frame {
			return cmds[i].frame < cmds[j].frame
		}
		return !cmds[i].on && cmds[j].on
	})

	endFrame := tmap.TicksToSamples(clip.LengthTicks)
	totalFrames := endFrame + uint64(tailSecs*float64(cr.sampleRate))
	if totalFrames == 0 {
		return importer.FromSamples(clip.Name, nil, uint32(cr.sampleRate), 2), nil
	}

	left := make([]float32, renderBlock)
	right := make([]float32, renderBlock)
	out := make([]float32, 0, totalFrames*2)

	next := 0
	for frame := uint64(0); frame < totalFrames; frame += renderBlock {
		for next < len(cmds) && cmds[next].frame < frame+renderBlock {
			c := cmds[next]
			if c.on {
				synth.NoteOn(c.ch, c.key, c.vel)
			} else {
				synth.NoteOff(c.ch, c.key)
			}
			next++
		}

		synth.Render(left, right)
		n := uint64(renderBlock)
		if frame+n > totalFrames {
			n = totalFrames - frame
		}
		for i := uint64(0); i < n; i++ {
			out = append(out, left[i], right[i])
		}
	}

	return importer.FromSamples(clip.Name, out, uint32(cr.sampleRate), 2), nil
}
