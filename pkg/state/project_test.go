package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bojan20/reelforge/pkg/automation"
	"github.com/Bojan20/reelforge/pkg/param"
	"github.com/Bojan20/reelforge/pkg/tempo"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

func TestProjectRoundTrip(t *testing.T) {
	p := NewProject("demo", 48000)
	p.TempoMap.SetTempo(tempo.PPQ*8, 140)
	p.TempoMap.SetTimeSignature(4, tempo.NewTimeSignature(3, 4))

	clipID := p.Pool.AddAudioClip(timeline.NewAudioClip("Kick.wav", "/a/Kick.wav", 48000, 96000, 2))
	ev := timeline.NewAudioEvent(clipID, 1, 1000, 48000)
	ev.GainDB = -3.5
	ev.FadeIn = timeline.FadeSettings{Length: 256, Curve: timeline.FadeEqualPower}
	evID := p.Events.AddAudioEvent(ev)

	midiID := p.Pool.AddMidiClip(timeline.NewMidiClip("Riff"))
	midi := p.Pool.MidiClip(midiID)
	midi.AddNote(timeline.Note{StartTick: 0, DurationTicks: 480, Pitch: 60, Velocity: 100})

	auto := automation.NewEngine()
	auto.AddPoint(param.TrackVolume(1), automation.NewPoint(0, 0.25))
	auto.AddPoint(param.TrackVolume(1), automation.NewPoint(48000, 0.75).WithCurve(automation.CurveSCurve))
	p.ExportLanes(auto)

	p.BusStates[2] = BusState{Volume: 0.8, Pan: -0.25, PanRight: 0.25, Muted: true}

	data, err := p.Encode()
	require.NoError(t, err)

	restored, err := Decode(data)
	require.NoError(t, err)

	// Tempo survives with identical conversions.
	assert.Equal(t, p.TempoMap.Events(), restored.TempoMap.Events())
	assert.Equal(t,
		p.TempoMap.TicksToSamples(tempo.PPQ*16),
		restored.TempoMap.TicksToSamples(tempo.PPQ*16))

	// Pool and events are field-exact.
	gotClip := restored.Pool.AudioClip(clipID)
	require.NotNil(t, gotClip)
	assert.Equal(t, *p.Pool.AudioClip(clipID), *gotClip)

	gotEvent := restored.Events.AudioEvent(evID)
	require.NotNil(t, gotEvent)
	assert.Equal(t, *p.Events.AudioEvent(evID), *gotEvent)

	gotMidi := restored.Pool.MidiClip(midiID)
	require.NotNil(t, gotMidi)
	assert.Equal(t, midi.Notes, gotMidi.Notes)

	// Lanes restore into a fresh automation engine.
	auto2 := automation.NewEngine()
	restored.ImportLanes(auto2)
	v1, ok1 := auto.ValueAt(param.TrackVolume(1), 24000)
	v2, ok2 := auto2.ValueAt(param.TrackVolume(1), 24000)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.InDelta(t, v1, v2, 1e-12)

	assert.Equal(t, p.BusStates, restored.BusStates)

	// ID allocation continues past restored entries.
	newID := restored.Pool.AddAudioClip(timeline.NewAudioClip("New.wav", "/a/New.wav", 48000, 10, 1))
	assert.Greater(t, newID, midiID)
}
