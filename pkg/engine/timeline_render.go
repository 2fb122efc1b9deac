package engine

import (
	"github.com/Bojan20/reelforge/pkg/dsp/pan"
	"github.com/Bojan20/reelforge/pkg/param"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

// renderTimeline mixes the timeline's audio events for the current
// block into the bus buffers. The project state is read under a
// non-blocking try-lock; when an editor mutation holds the write lock
// the timeline contribution is skipped for this block (edits land
// within one block, so this is inaudible).
func (e *Engine) renderTimeline(n int) {
	if !e.playing.Load() {
		return
	}
	if !e.projMu.TryRLock() {
		return
	}
	defer e.projMu.RUnlock()

	proj := e.project
	if proj.pool == nil || proj.events == nil {
		return
	}

	start := e.position.Load()
	end := start + uint64(n)

	for trackID, route := range proj.tracks {
		bus := route.Bus
		if bus < 0 || bus >= NumBuses {
			continue
		}
		dstL := e.busL[bus][:n]
		dstR := e.busR[bus][:n]

		// Per-track volume automation: sparse block values applied
		// stepwise between change offsets.
		volume := route.Volume
		if volume == 0 {
			volume = 1
		}
		var autoValues []automationStep
		if proj.auto != nil {
			for _, bv := range proj.auto.BlockValues(param.TrackVolume(trackID), start, n) {
				autoValues = append(autoValues, automationStep{offset: bv.Offset, value: bv.Value})
			}
		}

		for _, ev := range proj.events.AudioEventsInRange(trackID, start, end) {
			e.renderEvent(proj, ev, dstL, dstR, start, n, volume, route.Pan, autoValues)
		}
	}
}

// automationStep is one stepwise automation segment boundary.
type automationStep struct {
	offset int
	value  float64
}

// stepValue returns the automation value active at offset, or 1 when
// no automation is present.
func stepValue(steps []automationStep, offset int) float64 {
	if len(steps) == 0 {
		return 1
	}
	v := steps[0].value
	for _, s := range steps {
		if s.offset > offset {
			break
		}
		v = s.value
	}
	return v
}

// renderEvent mixes one audio event's overlap with the block.
func (e *Engine) renderEvent(proj *timelineRefs, ev *timeline.AudioEvent,
	dstL, dstR []float32, blockStart uint64, n int,
	trackVolume, trackPan float64, autoValues []automationStep) {

	if ev.Muted {
		return
	}
	clip := proj.pool.AudioClip(ev.ClipID)
	if clip == nil {
		return
	}
	audio := e.cache.Get(clip.SourcePath)
	if audio == nil || audio.SampleCount == 0 {
		return
	}

	xf := proj.events.CrossfadeFor(ev.ID)
	isLeftOfFade := xf != nil && xf.LeftEventID == ev.ID

	from := ev.Position
	if blockStart > from {
		from = blockStart
	}
	to := ev.End()
	if blockStart+uint64(n) < to {
		to = blockStart + uint64(n)
	}
	if to <= from {
		return
	}

	stereo := audio.Channels >= 2
	channels := uint64(audio.Channels)
	samples := audio.Samples
	lastFrame := audio.SampleCount - 1

	lGain, rGain := 1.0, 1.0
	if trackPan != 0 {
		lGain, rGain = pan.ConstantPower(trackPan)
	}

	for t := from; t < to; t++ {
		i := int(t - blockStart)

		g := ev.GainAt(t) * trackVolume * stepValue(autoValues, i)
		if g == 0 {
			continue
		}
		if xf != nil {
			lg, rg := xf.GainsAt(t)
			if isLeftOfFade {
				g *= lg
			} else {
				g *= rg
			}
		}

		idx := ev.SourceIndex(t, clip.Length)
		frame := uint64(idx)
		if frame > lastFrame {
			continue
		}
		frac := float32(idx - float64(frame))
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

		dstL[i] += sl * float32(g*lGain)
		dstR[i] += sr * float32(g*rGain)
	}
}

