package engine

import (
	"github.com/Bojan20/reelforge/pkg/dsp"
	"github.com/Bojan20/reelforge/pkg/dsp/pan"
)

// Process is the audio callback. It fills exactly len(outL) samples
// (outL and outR must be the same length, inside [MinBlockSize,
// MaxBlockSize]) and consumes the input block. Commands drain from the
// ring, project state is read under a non-blocking try-lock, and the
// voice and bus buffers are preallocated. The timeline pass is neither
// allocation-free nor lock-free: it builds per-block slices of events
// and automation steps, and reads automation under the automation
// engine's blocking read lock.
func (e *Engine) Process(outL, outR, inL, inR []float32, timestamp uint64) {
	n := len(outL)
	if len(outR) < n {
		n = len(outR)
	}
	if n == 0 {
		return
	}
	if n > MaxBlockSize {
		n = MaxBlockSize
	}

	e.dispatchCommands()

	for bus := 0; bus < NumBuses; bus++ {
		dsp.Clear(e.busL[bus][:n])
		dsp.Clear(e.busR[bus][:n])
	}

	e.fillRates(n)
	e.renderVoices(n)
	e.renderTimeline(n)

	if e.inputMonitor.Load() {
		dsp.Add(e.busL[BusMaster][:n], inL)
		dsp.Add(e.busR[BusMaster][:n], inR)
	}

	e.mixBuses(outL[:n], outR[:n], n)
	e.publishStats()

	if e.playing.Load() {
		e.advanceTransport(uint64(n))
	}
}

// fillRates precomputes the per-sample global rate multiplier from
// the varispeed smoother.
func (e *Engine) fillRates(n int) {
	target := 1.0
	if e.varispeedEnabled.Load() {
		target = e.varispeedRate.Load()
	}
	e.varispeedSmooth.SetTarget(target)
	for i := 0; i < n; i++ {
		e.rates[i] = e.varispeedSmooth.Next()
	}
}

// dispatchCommands retries deferred steals, then drains the ring.
func (e *Engine) dispatchCommands() {
	if len(e.deferred) > 0 {
		pending := e.deferred
		e.deferred = e.deferred[:0]
		for i := range pending {
			e.startVoice(&pending[i], false)
		}
	}

	for i := 0; i < CommandRingCapacity; i++ {
		cmd, ok := e.ring.Pop()
		if !ok {
			break
		}
		e.applyCommand(&cmd)
	}
}

func (e *Engine) applyCommand(cmd *command) {
	switch cmd.kind {
	case cmdPlay:
		e.startVoice(cmd, true)
	case cmdStopVoice:
		if v := e.findVoice(cmd.voiceID); v != nil {
			v.beginFadeOut(stopFadeMs, e.sampleRate)
		}
	case cmdFadeOutVoice:
		if v := e.findVoice(cmd.voiceID); v != nil {
			ms := cmd.durationMs
			if ms <= 0 {
				ms = stopFadeMs
			}
			v.beginFadeOut(ms, e.sampleRate)
		}
	case cmdSetVoicePitch:
		if v := e.findVoice(cmd.voiceID); v != nil {
			v.setPitch(cmd.pitchSemis)
		}
	case cmdStopAll:
		e.eachVoice(func(v *voice) {
			v.beginFadeOut(stopFadeMs, e.sampleRate)
		})
	case cmdStopSource:
		e.eachVoice(func(v *voice) {
			if v.source == cmd.source {
				v.beginFadeOut(stopFadeMs, e.sampleRate)
			}
		})
	case cmdSetActiveSection:
		e.activeSection.Store(uint32(cmd.source))
	}
}

// startVoice allocates a slot for a play command. When the one-shot
// pool is full it steals the oldest voice not currently fading in and
// defers the command to the next block, by which time the victim's
// ramp has freed its slot.
func (e *Engine) startVoice(cmd *command, allowSteal bool) {
	pool := e.oneShots[:]
	if cmd.looping {
		pool = e.loops[:]
	}

	for i := range pool {
		if !pool[i].active() {
			e.allocSeq++
			pool[i].start(cmd, cmd.voiceID, e.allocSeq, e.sampleRate)
			return
		}
	}

	if cmd.looping {
		// Looping pool full: the command is dropped.
		return
	}

	if !allowSteal {
		if len(e.deferred) < cap(e.deferred) {
			e.deferred = append(e.deferred, *cmd)
		}
		return
	}

	// Oldest voice not in a fade-in; voices already dying are left to
	// finish. Ties resolve to the lowest slot.
	victim := -1
	for i := range e.oneShots {
		if e.oneShots[i].state == voiceFadingIn || e.oneShots[i].state == voiceFadingOut {
			continue
		}
		if victim == -1 || e.oneShots[i].allocSeq < e.oneShots[victim].allocSeq {
			victim = i
		}
	}
	if victim >= 0 {
		e.oneShots[victim].beginFadeOut(stealFadeMs, e.sampleRate)
	}

	// The freed slot opens once the victim's ramp completes; retry
	// then. Overflowing retries are dropped.
	if len(e.deferred) < cap(e.deferred) {
		e.deferred = append(e.deferred, *cmd)
	}
}

func (e *Engine) findVoice(id uint64) *voice {
	for i := range e.oneShots {
		if e.oneShots[i].active() && e.oneShots[i].id == id {
			return &e.oneShots[i]
		}
	}
	for i := range e.loops {
		if e.loops[i].active() && e.loops[i].id == id {
			return &e.loops[i]
		}
	}
	return nil
}

func (e *Engine) eachVoice(fn func(*voice)) {
	for i := range e.oneShots {
		if e.oneShots[i].active() {
			fn(&e.oneShots[i])
		}
	}
	for i := range e.loops {
		if e.loops[i].active() {
			fn(&e.loops[i])
		}
	}
}

// renderVoices mixes every active voice of the active section into
// its bus buffer. Voices of other sections hold their cursors.
func (e *Engine) renderVoices(n int) {
	section := PlaybackSource(e.activeSection.Load())

	render := func(v *voice) {
		if !v.active() {
			return
		}
		if v.source != section {
			// Paused voices hold their cursors, but a pending stop
			// still completes.
			v.advanceFadeSilent(n)
			return
		}
		bus := v.bus
		if bus < 0 || bus >= NumBuses {
			bus = BusSfx
		}
		v.render(e.busL[bus][:n], e.busR[bus][:n], e.rates, n)
	}

	for i := range e.oneShots {
		render(&e.oneShots[i])
	}
	for i := range e.loops {
		render(&e.loops[i])
	}
}

// mixBuses applies per-bus strips, solo/mute precedence and PDC, sums
// into the master, runs the master chain and writes the output.
func (e *Engine) mixBuses(outL, outR []float32, n int) {
	anySolo := false
	for bus := 1; bus < NumBuses; bus++ {
		if e.buses[bus].soloed.Load() {
			anySolo = true
			break
		}
	}

	masterL := e.busL[BusMaster][:n]
	masterR := e.busR[BusMaster][:n]

	for bus := 1; bus < NumBuses; bus++ {
		strip := &e.buses[bus]
		left := e.busL[bus][:n]
		right := e.busR[bus][:n]

		audible := busAudible(bus, strip.muted.Load(), strip.soloed.Load(), anySolo)

		strip.volSmooth.SetTarget(strip.volume.Load())
		strip.panLSmooth.SetTarget(strip.panLeft.Load())
		strip.panRSmooth.SetTarget(strip.panRight.Load())

		for i := 0; i < n; i++ {
			g := float32(strip.volSmooth.Next())
			left[i] *= g
			right[i] *= g
		}
		pan.ProcessStereo(left, right, strip.panLSmooth.NextBlock(n), strip.panRSmooth.NextBlock(n))

		if e.pdcMgr != nil {
			e.pdcMgr.Process(e.busPdcNode(bus), left, right)
		}

		strip.meter(left, right)

		if audible {
			dsp.Add(masterL, left)
			dsp.Add(masterR, right)
		}
	}

	// Master strip: its own volume and pan, then the chain, then the
	// global master volume.
	master := &e.buses[BusMaster]
	master.volSmooth.SetTarget(master.volume.Load())
	for i := 0; i < n; i++ {
		g := float32(master.volSmooth.Next())
		masterL[i] *= g
		masterR[i] *= g
	}
	pan.ProcessStereo(masterL, masterR,
		master.panLSmooth.NextBlock(n), master.panRSmooth.NextBlock(n))

	if e.pdcMgr != nil {
		e.pdcMgr.Process(e.masterPdcNode(), masterL, masterR)
	}
	if e.masterChain != nil {
		e.masterChain.Process(masterL, masterR)
	}

	e.masterSmooth.SetTarget(e.masterVolume.Load())
	for i := 0; i < n; i++ {
		g := float32(e.masterSmooth.Next())
		masterL[i] *= g
		masterR[i] *= g
	}

	master.meter(masterL, masterR)

	copy(outL, masterL)
	copy(outR, masterR)
}

// publishStats recounts the pool into the observable atomics.
func (e *Engine) publishStats() {
	var active, looping int64
	var bySource [4]int64
	var byBus [NumBuses]int64

	for i := range e.oneShots {
		if e.oneShots[i].active() {
			active++
			bySource[e.oneShots[i].source]++
			if b := e.oneShots[i].bus; b >= 0 && b < NumBuses {
				byBus[b]++
			}
		}
	}
	for i := range e.loops {
		if e.loops[i].active() {
			looping++
			bySource[e.loops[i].source]++
			if b := e.loops[i].bus; b >= 0 && b < NumBuses {
				byBus[b]++
			}
		}
	}

	e.statActive.Store(active)
	e.statLooping.Store(looping)
	for i := range bySource {
		e.statSource[i].Store(bySource[i])
	}
	for i := range byBus {
		e.statBus[i].Store(byBus[i])
	}
}

// advanceTransport moves the play position, honoring the loop region.
func (e *Engine) advanceTransport(n uint64) {
	pos := e.position.Add(n)
	if e.loopEnabled.Load() {
		end := e.loopEnd.Load()
		start := e.loopStart.Load()
		if end > start && pos >= end {
			pos = start + (pos-end)%(end-start)
			e.position.Store(pos)
		}
	}
	if e.projMu.TryRLock() {
		if e.project.auto != nil {
			e.project.auto.SetPosition(e.position.Load())
		}
		e.projMu.RUnlock()
	}
}
