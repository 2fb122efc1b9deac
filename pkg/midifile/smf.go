// Package midifile converts between the pool's MIDI clips and
// standard MIDI files, and renders clips to audio through a SoundFont
// for offline bounce.
package midifile

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Bojan20/reelforge/pkg/tempo"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

// ReadClip loads every track of a standard MIDI file into one MIDI
// clip, rescaling ticks to the engine's PPQ.
func ReadClip(path string) (*timeline.MidiClip, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SMF %s: %w", path, err)
	}

	resolution := uint32(960)
	if metric, ok := s.TimeFormat.(smf.MetricTicks); ok {
		resolution = uint32(metric.Resolution())
	}
	if resolution == 0 {
		resolution = 960
	}

	clip := timeline.NewMidiClip(path)

	// Open note-on bookkeeping: key -> (startTick, velocity, channel).
	type openNote struct {
		tick     uint64
		velocity uint8
		channel  uint8
	}

	for _, track := range s.Tracks {
		open := make(map[uint8]openNote)
		var absTicks uint64

		for _, ev := range track {
			absTicks += uint64(ev.Delta)
			tick := absTicks * tempo.PPQ / uint64(resolution)

			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				open[key] = openNote{tick: tick, velocity: vel, channel: ch}
			case ev.Message.GetNoteEnd(&ch, &key):
				if on, ok := open[key]; ok {
					delete(open, key)
					duration := tick - on.tick
					if duration == 0 {
						duration = 1
					}
					clip.AddNote(timeline.Note{
						StartTick:     on.tick,
						DurationTicks: duration,
						Pitch:         key,
						Velocity:      on.velocity,
						Channel:       on.channel,
					})
				}
			default:
				var cc, val, prog uint8
				var rel int16
				var abs uint16
				switch {
				case ev.Message.GetControlChange(&ch, &cc, &val):
					clip.CCs = append(clip.CCs, timeline.ControlChange{
						Tick: tick, Controller: cc, Value: val, Channel: ch,
					})
				case ev.Message.GetPitchBend(&ch, &rel, &abs):
					clip.PitchBends = append(clip.PitchBends, timeline.PitchBend{
						Tick: tick, Value: abs, Channel: ch,
					})
				case ev.Message.GetProgramChange(&ch, &prog):
					clip.ProgramChanges = append(clip.ProgramChanges, timeline.ProgramChange{
						Tick: tick, Program: prog, Channel: ch,
					})
				}
			}
		}
	}

	return &clip, nil
}

// WriteClip writes a MIDI clip as a single-track SMF at the engine's
// PPQ.
func WriteClip(clip *timeline.MidiClip, path string) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(tempo.PPQ)

	// Flatten note on/off plus CC into one absolute-tick event list.
	type timedMsg struct {
		tick uint64
		msg  midi.Message
	}
	var events []timedMsg

	for _, n := range clip.Notes {
		events = append(events,
			timedMsg{n.StartTick, midi.NoteOn(n.Channel, n.Pitch, n.Velocity)},
			timedMsg{n.EndTick(), midi.NoteOff(n.Channel, n.Pitch)},
		)
	}
	for _, cc := range clip.CCs {
		events = append(events, timedMsg{cc.Tick, midi.ControlChange(cc.Channel, cc.Controller, cc.Value)})
	}
	for _, pc := range clip.ProgramChanges {
		events = append(events, timedMsg{pc.Tick, midi.ProgramChange(pc.Channel, pc.Program)})
	}
	for _, pb := range clip.PitchBends {
		events = append(events, timedMsg{pb.Tick, midi.Pitchbend(pb.Channel, int16(int32(pb.Value)-8192))})
	}

	// Stable sort by tick, note-offs before other messages at equal
	// ticks so retriggers survive.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].msg.Is(midi.NoteOffMsg) && !events[j].msg.Is(midi.NoteOffMsg)
	})

	var tr smf.Track
	var lastTick uint64
	for _, ev := range events {
		delta := uint32(ev.tick - lastTick)
		lastTick = ev.tick
		tr.Add(delta, ev.msg)
	}
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("add SMF track: %w", err)
	}

	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("write SMF %s: %w", path, err)
	}
	return nil
}

