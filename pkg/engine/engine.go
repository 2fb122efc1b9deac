package engine

import (
	"sync"
	"sync/atomic"

	"github.com/Bojan20/reelforge/pkg/automation"
	"github.com/Bojan20/reelforge/pkg/param"
	"github.com/Bojan20/reelforge/pkg/pdc"
	"github.com/Bojan20/reelforge/pkg/processor"
	"github.com/Bojan20/reelforge/pkg/state"
	"github.com/Bojan20/reelforge/pkg/tempo"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

// Block size bounds accepted by the callback.
const (
	MinBlockSize = 64
	MaxBlockSize = 4096
)

// Varispeed limits.
const (
	MinVarispeedRate = 0.25
	MaxVarispeedRate = 4.0
	varispeedRampMs  = 10.0
)

// TrackRoute is the static routing of one timeline track.
type TrackRoute struct {
	Bus    int
	Volume float64
	Pan    float64
}

// timelineRefs bundles the editor-owned state the audio thread reads
// under the project read lock.
type timelineRefs struct {
	pool   *timeline.Pool
	events *timeline.Manager
	tmap   *tempo.Map
	auto   *automation.Engine
	tracks map[uint64]TrackRoute
}

// Engine is the realtime mixer. One Engine maps to one audio stream;
// all realtime work happens in Process, fed by the lock-free command
// ring and the try-locked timeline snapshot.
type Engine struct {
	sampleRate float64

	cache *AudioCache
	ring  *commandRing

	oneShots [MaxOneShotVoices]voice
	loops    [MaxLoopingVoices]voice
	deferred []command // audio-thread only; steal retries

	nextVoiceID atomic.Uint64
	allocSeq    uint64 // audio-thread only

	buses        [NumBuses]busStrip
	masterVolume atomicFloat
	masterSmooth param.Smoother

	activeSection atomic.Uint32

	varispeedEnabled atomic.Bool
	varispeedRate    atomicFloat
	varispeedSmooth  param.Smoother

	inputMonitor atomic.Bool

	playing     atomic.Bool
	recording   atomic.Bool
	position    atomic.Uint64
	loopEnabled atomic.Bool
	loopStart   atomic.Uint64
	loopEnd     atomic.Uint64

	statActive  atomic.Int64
	statLooping atomic.Int64
	statSource  [4]atomic.Int64
	statBus     [NumBuses]atomic.Int64

	pdcMgr      *pdc.Manager
	masterChain *processor.Chain

	projMu  sync.RWMutex
	project *timelineRefs

	// Preallocated block workspace.
	busL  [NumBuses][]float32
	busR  [NumBuses][]float32
	rates []float64
}

// New creates an engine with an empty cache.
func New(sampleRate uint32) *Engine {
	e := &Engine{
		sampleRate: float64(sampleRate),
		cache:      NewAudioCache(),
		ring:       newCommandRing(CommandRingCapacity),
		deferred:   make([]command, 0, MaxOneShotVoices),
	}
	e.nextVoiceID.Store(0)
	e.masterVolume.Store(1)
	e.masterSmooth = *param.NewSmoother(1, e.sampleRate, param.DefaultSmoothingMs)
	e.varispeedRate.Store(1)
	e.varispeedSmooth = *param.NewSmoother(1, e.sampleRate, varispeedRampMs)

	for i := range e.buses {
		e.buses[i].init(e.sampleRate)
		e.busL[i] = make([]float32, MaxBlockSize)
		e.busR[i] = make([]float32, MaxBlockSize)
	}
	e.rates = make([]float64, MaxBlockSize)

	e.project = &timelineRefs{tracks: make(map[uint64]TrackRoute)}
	return e
}

// SampleRate returns the engine sample rate.
func (e *Engine) SampleRate() uint32 {
	return uint32(e.sampleRate)
}

// Cache returns the decoded-audio cache.
func (e *Engine) Cache() *AudioCache {
	return e.cache
}

// AttachPDC wires a delay compensation manager. The engine registers
// one node per bus feeding a master node and processes each bus
// through its compensation delay.
func (e *Engine) AttachPDC(m *pdc.Manager) {
	e.pdcMgr = m
	if m == nil {
		return
	}
	m.RegisterNode(e.masterPdcNode(), pdc.NodeMaster)
	for bus := 1; bus < NumBuses; bus++ {
		m.RegisterNode(e.busPdcNode(bus), pdc.NodeGroup)
		m.AddConnection(e.busPdcNode(bus), e.masterPdcNode(), pdc.ConnDirect)
	}
}

func (e *Engine) busPdcNode(bus int) pdc.NodeID {
	return pdc.NodeID(0xB0 + bus)
}

func (e *Engine) masterPdcNode() pdc.NodeID {
	return pdc.NodeID(0xBF)
}

// AttachMasterChain installs a processor chain on the master path.
func (e *Engine) AttachMasterChain(c *processor.Chain) {
	e.masterChain = c
}

// SetTimeline installs the editor-owned timeline state. It takes the
// project write lock itself, so it must not be called from inside
// WithTimelineEdit.
func (e *Engine) SetTimeline(pool *timeline.Pool, events *timeline.Manager, tmap *tempo.Map, auto *automation.Engine) {
	e.projMu.Lock()
	e.project.pool = pool
	e.project.events = events
	e.project.tmap = tmap
	e.project.auto = auto
	e.projMu.Unlock()
}

// RegisterTrack routes a timeline track to a bus.
func (e *Engine) RegisterTrack(trackID uint64, route TrackRoute) {
	if route.Bus < 0 || route.Bus >= NumBuses {
		return
	}
	e.projMu.Lock()
	e.project.tracks[trackID] = route
	e.projMu.Unlock()
}

// WithTimelineEdit runs fn holding the project write lock, blocking
// the audio thread's timeline snapshot for its duration.
func (e *Engine) WithTimelineEdit(fn func()) {
	e.projMu.Lock()
	fn()
	e.projMu.Unlock()
}

// ── Play commands ────────────────────────────────────────────────────

// PlayOneShotToBus starts a one-shot voice. Returns the new voice ID,
// or 0 when the path is not in the cache.
func (e *Engine) PlayOneShotToBus(path string, volume, pan float64, bus int, source PlaybackSource) uint64 {
	return e.enqueuePlay(path, volume, pan, bus, source, false, 0, 0, 0, 0, 0)
}

// PlayOneShotToBusEx starts a one-shot with fades, trim and pitch.
func (e *Engine) PlayOneShotToBusEx(path string, volume, pan float64, bus int, source PlaybackSource,
	fadeInMs, fadeOutMs float64, trimStart, trimEnd uint64, pitchSemis float64) uint64 {
	return e.enqueuePlay(path, volume, pan, bus, source, false, fadeInMs, fadeOutMs, trimStart, trimEnd, pitchSemis)
}

// PlayLoopingToBus starts a looping voice.
func (e *Engine) PlayLoopingToBus(path string, volume, pan float64, bus int, source PlaybackSource) uint64 {
	return e.enqueuePlay(path, volume, pan, bus, source, true, 0, 0, 0, 0, 0)
}

func (e *Engine) enqueuePlay(path string, volume, pan float64, bus int, source PlaybackSource,
	looping bool, fadeInMs, fadeOutMs float64, trimStart, trimEnd uint64, pitchSemis float64) uint64 {
	audio := e.cache.Get(path)
	if audio == nil || audio.SampleCount == 0 {
		return 0
	}
	if bus < 0 || bus >= NumBuses {
		return 0
	}

	id := e.nextVoiceID.Add(1)
	e.ring.Push(command{
		kind:       cmdPlay,
		voiceID:    id,
		audio:      audio,
		volume:     volume,
		pan:        clampf(pan, -1, 1),
		bus:        bus,
		source:     source,
		looping:    looping,
		fadeInMs:   fadeInMs,
		fadeOutMs:  fadeOutMs,
		trimStart:  trimStart,
		trimEnd:    trimEnd,
		pitchSemis: pitchSemis,
	})
	return id
}

// StopOneShot ramps a voice to silence and frees it. Unknown IDs are
// ignored.
func (e *Engine) StopOneShot(voiceID uint64) {
	if voiceID == 0 {
		return
	}
	e.ring.Push(command{kind: cmdStopVoice, voiceID: voiceID})
}

// FadeOutOneShot ramps a voice to silence over the given duration.
func (e *Engine) FadeOutOneShot(voiceID uint64, ms float64) {
	if voiceID == 0 {
		return
	}
	e.ring.Push(command{kind: cmdFadeOutVoice, voiceID: voiceID, durationMs: ms})
}

// SetVoicePitch retunes a playing voice in semitones (clamped ±24).
func (e *Engine) SetVoicePitch(voiceID uint64, semitones float64) {
	if voiceID == 0 {
		return
	}
	e.ring.Push(command{kind: cmdSetVoicePitch, voiceID: voiceID, pitchSemis: semitones})
}

// StopAllOneShots stops every voice.
func (e *Engine) StopAllOneShots() {
	e.ring.Push(command{kind: cmdStopAll})
}

// StopSourceOneShots stops every voice with a matching source tag.
func (e *Engine) StopSourceOneShots(source PlaybackSource) {
	e.ring.Push(command{kind: cmdStopSource, source: source})
}

// SetActiveSection renders only voices from the given source; other
// voices pause in place.
func (e *Engine) SetActiveSection(source PlaybackSource) {
	e.ring.Push(command{kind: cmdSetActiveSection, source: source})
}

// ActiveSection returns the current section filter.
func (e *Engine) ActiveSection() PlaybackSource {
	return PlaybackSource(e.activeSection.Load())
}

// ── Bus and master control ───────────────────────────────────────────

// SetMasterVolume sets the global output gain, clamped to [0, 1.5].
func (e *Engine) SetMasterVolume(v float64) {
	e.masterVolume.Store(clampf(v, 0, MaxBusVolume))
}

// MasterVolume returns the global output gain.
func (e *Engine) MasterVolume() float64 {
	return e.masterVolume.Load()
}

// SetBusVolume sets one bus's gain, clamped to [0, 1.5]. Out-of-range
// bus indices are ignored.
func (e *Engine) SetBusVolume(bus int, v float64) {
	if bus < 0 || bus >= NumBuses {
		return
	}
	e.buses[bus].volume.Store(clampf(v, 0, MaxBusVolume))
}

// SetBusPan sets the left-channel pan in [-1, 1].
func (e *Engine) SetBusPan(bus int, pan float64) {
	if bus < 0 || bus >= NumBuses {
		return
	}
	e.buses[bus].panLeft.Store(clampf(pan, -1, 1))
}

// SetBusPanRight sets the right-channel pan in [-1, 1] for dual-pan
// width control.
func (e *Engine) SetBusPanRight(bus int, pan float64) {
	if bus < 0 || bus >= NumBuses {
		return
	}
	e.buses[bus].panRight.Store(clampf(pan, -1, 1))
}

// SetBusMuted mutes or unmutes a bus.
func (e *Engine) SetBusMuted(bus int, muted bool) {
	if bus < 0 || bus >= NumBuses {
		return
	}
	e.buses[bus].muted.Store(muted)
}

// SetBusSoloed solos or unsolos a bus.
func (e *Engine) SetBusSoloed(bus int, soloed bool) {
	if bus < 0 || bus >= NumBuses {
		return
	}
	e.buses[bus].soloed.Store(soloed)
}

// BusState returns one bus's control state, or false for invalid
// indices.
func (e *Engine) BusState(bus int) (state.BusState, bool) {
	if bus < 0 || bus >= NumBuses {
		return state.BusState{}, false
	}
	return e.buses[bus].readState(), true
}

// BusMeter returns one bus's meter snapshot (a silent reading with
// correlation 1 for invalid indices).
func (e *Engine) BusMeter(bus int) state.TrackMeter {
	if bus < 0 || bus >= NumBuses {
		return state.TrackMeter{Correlation: 1}
	}
	return e.buses[bus].readMeter()
}

// MasterMeter returns the master meter snapshot.
func (e *Engine) MasterMeter() state.TrackMeter {
	return e.buses[BusMaster].readMeter()
}

// SetInputMonitor routes the callback's input block to the master bus
// for live monitoring.
func (e *Engine) SetInputMonitor(enabled bool) {
	e.inputMonitor.Store(enabled)
}

// ── Varispeed ────────────────────────────────────────────────────────

// SetVarispeedEnabled toggles the global playback rate multiplier.
func (e *Engine) SetVarispeedEnabled(enabled bool) {
	e.varispeedEnabled.Store(enabled)
}

// IsVarispeedEnabled reports the varispeed switch.
func (e *Engine) IsVarispeedEnabled() bool {
	return e.varispeedEnabled.Load()
}

// SetVarispeedRate sets the rate multiplier, clamped to [0.25, 4].
func (e *Engine) SetVarispeedRate(rate float64) {
	e.varispeedRate.Store(clampf(rate, MinVarispeedRate, MaxVarispeedRate))
}

// VarispeedRate returns the configured rate.
func (e *Engine) VarispeedRate() float64 {
	return e.varispeedRate.Load()
}

// EffectivePlaybackRate returns the rate voices actually use: the
// configured rate when enabled, otherwise 1.
func (e *Engine) EffectivePlaybackRate() float64 {
	if e.varispeedEnabled.Load() {
		return e.varispeedRate.Load()
	}
	return 1
}

// ── Transport ────────────────────────────────────────────────────────

// Play starts the timeline transport.
func (e *Engine) Play() {
	e.playing.Store(true)
	if p := e.projectAuto(); p != nil {
		p.SetPlaying(true)
	}
}

// Stop halts the transport, commits pending automation and clears the
// compensation delay lines.
func (e *Engine) Stop() {
	e.playing.Store(false)
	if p := e.projectAuto(); p != nil {
		p.SetPlaying(false)
		p.CommitAllPending()
	}
	if e.pdcMgr != nil {
		e.pdcMgr.ClearAll()
	}
}

// SetRecording toggles the record flag (automation recording follows).
func (e *Engine) SetRecording(recording bool) {
	e.recording.Store(recording)
	if p := e.projectAuto(); p != nil {
		p.SetRecording(recording)
	}
}

// Seek moves the transport position.
func (e *Engine) Seek(samples uint64) {
	e.position.Store(samples)
	if p := e.projectAuto(); p != nil {
		p.SetPosition(samples)
	}
	if e.pdcMgr != nil {
		e.pdcMgr.ClearAll()
	}
}

// SetLoopRegion configures transport looping.
func (e *Engine) SetLoopRegion(start, end uint64, enabled bool) {
	e.loopStart.Store(start)
	e.loopEnd.Store(end)
	e.loopEnabled.Store(enabled && end > start)
}

// PositionSamples returns the transport position.
func (e *Engine) PositionSamples() uint64 {
	return e.position.Load()
}

// PositionSeconds returns the transport position in seconds.
func (e *Engine) PositionSeconds() float64 {
	return float64(e.position.Load()) / e.sampleRate
}

// TransportState returns the transport snapshot.
func (e *Engine) TransportState() state.TransportState {
	ts := state.TransportState{
		IsPlaying:       e.playing.Load(),
		IsRecording:     e.recording.Load(),
		PositionSamples: e.position.Load(),
		LoopEnabled:     e.loopEnabled.Load(),
		LoopStart:       e.loopStart.Load(),
		LoopEnd:         e.loopEnd.Load(),
		Tempo:           120,
	}
	ts.PositionSeconds = float64(ts.PositionSamples) / e.sampleRate

	e.projMu.RLock()
	if e.project.tmap != nil {
		tick := e.project.tmap.SamplesToTicks(ts.PositionSamples)
		ts.Tempo = e.project.tmap.TempoAtTick(tick)
	}
	e.projMu.RUnlock()
	return ts
}

func (e *Engine) projectAuto() *automation.Engine {
	e.projMu.RLock()
	defer e.projMu.RUnlock()
	return e.project.auto
}

// ── Stats ────────────────────────────────────────────────────────────

// VoicePoolStats returns the published voice pool counters.
func (e *Engine) VoicePoolStats() state.VoicePoolStats {
	return state.VoicePoolStats{
		ActiveCount:  int(e.statActive.Load()),
		MaxVoices:    MaxOneShotVoices,
		LoopingCount: int(e.statLooping.Load()),
		PerSourceCounts: state.SourceCounts{
			Daw:        int(e.statSource[SourceDaw].Load()),
			SlotLab:    int(e.statSource[SourceSlotLab].Load()),
			Middleware: int(e.statSource[SourceMiddleware].Load()),
			Browser:    int(e.statSource[SourceBrowser].Load()),
		},
		PerBusCounts: state.BusCounts{
			Master:   int(e.statBus[BusMaster].Load()),
			Music:    int(e.statBus[BusMusic].Load()),
			Sfx:      int(e.statBus[BusSfx].Load()),
			Voice:    int(e.statBus[BusVoice].Load()),
			Ambience: int(e.statBus[BusAmbience].Load()),
			Aux:      int(e.statBus[BusAux].Load()),
		},
	}
}

// CommandsDropped reports ring overflow discards.
func (e *Engine) CommandsDropped() uint64 {
	return e.ring.Dropped()
}
