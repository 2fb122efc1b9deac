package engine

import (
	"math"

	"github.com/Bojan20/reelforge/pkg/dsp/envelope"
	"github.com/Bojan20/reelforge/pkg/dsp/pan"
	"github.com/Bojan20/reelforge/pkg/importer"
	"github.com/Bojan20/reelforge/pkg/param"
)

// Pool sizes.
const (
	// MaxOneShotVoices is the one-shot polyphony limit.
	MaxOneShotVoices = 32
	// MaxLoopingVoices is the looping pool size.
	MaxLoopingVoices = 16
)

// Fade and ramp times.
const (
	// stealFadeMs ramps a stolen voice to silence.
	stealFadeMs = 3.0
	// stopFadeMs ramps an explicitly stopped voice to silence.
	stopFadeMs = 5.0
	// endFadeMs ramps a naturally completing voice to silence.
	endFadeMs = 3.0
	// pitchRampMs smooths pitch discontinuities.
	pitchRampMs = 5.0
)

// voiceState is the per-slot lifecycle state.
type voiceState uint8

const (
	voiceIdle voiceState = iota
	voiceFadingIn
	voicePlaying
	voiceFadingOut
)

// voice is one preallocated slot in the pool. All fields are owned by
// the audio thread after the start command is realized.
type voice struct {
	id    uint64
	state voiceState
	// allocSeq orders voices by creation for stealing.
	allocSeq uint64

	audio  *importer.ImportedAudio
	cursor float64
	// startFrame/endFrame are the trimmed play window in source frames.
	startFrame float64
	endFrame   float64

	volume float64
	panL   float64
	panR   float64

	pitch param.Smoother
	// srcRatio converts source frames per output sample at unity pitch.
	srcRatio float64

	bus     int
	source  PlaybackSource
	looping bool

	fade           envelope.Ramp
	endFadeSamples float64
	stopAfterFade  bool
}

// start arms the slot from a play command. Runs on the audio thread.
func (v *voice) start(cmd *command, id, allocSeq uint64, engineRate float64) {
	audio := cmd.audio
	v.id = id
	v.allocSeq = allocSeq
	v.audio = audio
	v.volume = clampf(cmd.volume, 0, 2)
	v.panL, v.panR = pan.ConstantPower(cmd.pan)
	v.bus = cmd.bus
	v.source = cmd.source
	v.looping = cmd.looping
	v.stopAfterFade = false

	v.srcRatio = 1.0
	if engineRate > 0 && audio.SampleRate > 0 {
		v.srcRatio = float64(audio.SampleRate) / engineRate
	}

	v.pitch.Reset(1.0)
	v.pitch.SetTime(engineRate, pitchRampMs)
	if cmd.pitchSemis != 0 {
		v.pitch.Reset(math.Pow(2, clampf(cmd.pitchSemis, -24, 24)/12))
	}

	total := float64(audio.SampleCount)
	v.startFrame = math.Min(float64(cmd.trimStart), total)
	v.endFrame = total
	if cmd.trimEnd > 0 && float64(cmd.trimEnd) < total {
		v.endFrame = total - float64(cmd.trimEnd)
	}
	if v.endFrame < v.startFrame {
		v.endFrame = v.startFrame
	}
	v.cursor = v.startFrame

	v.endFadeSamples = endFadeMs / 1000 * engineRate
	if cmd.fadeOutMs > 0 {
		v.endFadeSamples = cmd.fadeOutMs / 1000 * engineRate
	}

	if cmd.fadeInMs > 0 {
		v.fade.Reset(0)
		v.fade.RampTo(1, int(cmd.fadeInMs/1000*engineRate))
		v.state = voiceFadingIn
	} else {
		v.fade.Reset(1)
		v.state = voicePlaying
	}
}

// beginFadeOut ramps the voice to silence over ms, then frees the
// slot.
func (v *voice) beginFadeOut(ms, engineRate float64) {
	if v.state == voiceIdle {
		return
	}
	if ms < 1 {
		ms = 1
	}
	v.fade.RampTo(0, int(ms/1000*engineRate))
	v.stopAfterFade = true
	v.state = voiceFadingOut
}

// setPitch retargets the pitch ratio; the smoother spreads the jump
// over the pitch ramp time.
func (v *voice) setPitch(semitones float64) {
	v.pitch.SetTarget(math.Pow(2, clampf(semitones, -24, 24)/12))
}

// active reports whether the slot is occupied.
func (v *voice) active() bool {
	return v.state != voiceIdle
}

// free releases the slot.
func (v *voice) free() {
	v.state = voiceIdle
	v.audio = nil
}

// advanceFadeSilent progresses a fade for a voice that is not being
// rendered (paused by the section filter) so stops still free the
// slot. Returns false when the voice freed itself.
func (v *voice) advanceFadeSilent(n int) bool {
	if !v.stopAfterFade {
		return true
	}
	for i := 0; i < n; i++ {
		v.fade.Next()
		if !v.fade.IsActive() {
			v.free()
			return false
		}
	}
	return true
}

// render mixes n samples into the destination buffers, applying
// per-sample pitch, fades and the global rate multipliers. Returns
// false when the voice finished and freed its slot.
func (v *voice) render(dstL, dstR []float32, rates []float64, n int) bool {
	audio := v.audio
	if audio == nil || audio.SampleCount == 0 {
		v.free()
		return false
	}

	stereo := audio.Channels >= 2
	channels := uint64(audio.Channels)
	samples := audio.Samples
	lastFrame := audio.SampleCount - 1

	for i := 0; i < n; i++ {
		if v.cursor >= v.endFrame {
			if v.looping && v.endFrame > v.startFrame {
				v.cursor = v.startFrame + math.Mod(v.cursor-v.startFrame, v.endFrame-v.startFrame)
			} else {
				v.free()
				return false
			}
		}

		g := float64(v.fade.Next()) * v.volume
		if v.state == voiceFadingIn && !v.fade.IsActive() {
			v.state = voicePlaying
		}
		if v.stopAfterFade && !v.fade.IsActive() {
			v.free()
			return false
		}

		// Approaching the end of a one-shot, ramp to silence.
		if !v.looping && v.endFadeSamples > 0 {
			remaining := v.endFrame - v.cursor
			if remaining < v.endFadeSamples {
				g *= remaining / v.endFadeSamples
			}
		}

		frame := uint64(v.cursor)
		frac := float32(v.cursor - float64(frame))
		next := frame
		if frame < lastFrame {
			next = frame + 1
		}

		var sl, sr float32
		if stereo {
			base := frame * channels
			nbase := next * channels
			sl = samples[base] + (samples[nbase]-samples[base])*frac
			sr = samples[base+1] + (samples[nbase+1]-samples[base+1])*frac
		} else {
			s := samples[frame] + (samples[next]-samples[frame])*frac
			sl = s
			sr = s
		}

		dstL[i] += sl * float32(g*v.panL)
		dstR[i] += sr * float32(g*v.panR)

		v.cursor += rates[i] * v.pitch.Next() * v.srcRatio
	}

	return true
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
