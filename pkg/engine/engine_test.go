package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/Bojan20/reelforge/pkg/importer"
)

const testRate = 48000

func testEngine() *Engine {
	return New(testRate)
}

// insertTestAudio caches one second of a quiet 440 Hz stereo sine and
// returns its path key.
func insertTestAudio(e *Engine, name string) string {
	frames := testRate
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(0.25 * math.Sin(2*math.Pi*440*float64(i)/testRate))
		samples[i*2] = v
		samples[i*2+1] = v
	}
	path := fmt.Sprintf("/test/%s.wav", name)
	audio := importer.FromSamples(path, samples, testRate, 2)
	e.cache.Insert(path, audio)
	return path
}

// runBlock processes one block and returns the output buffers.
func runBlock(e *Engine, n int) ([]float32, []float32) {
	outL := make([]float32, n)
	outR := make([]float32, n)
	inL := make([]float32, n)
	inR := make([]float32, n)
	e.Process(outL, outR, inL, inR, 0)
	return outL, outR
}

func blockPeak(buf []float32) float64 {
	peak := 0.0
	for _, s := range buf {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

func TestConstructionDefaults(t *testing.T) {
	e := testEngine()

	if e.MasterVolume() != 1.0 {
		t.Errorf("default master volume should be 1.0, got %f", e.MasterVolume())
	}
	if e.ActiveSection() != SourceDaw {
		t.Error("default active section should be Daw")
	}

	stats := e.VoicePoolStats()
	if stats.ActiveCount != 0 || stats.LoopingCount != 0 {
		t.Error("pool should start empty")
	}
	if stats.MaxVoices != MaxOneShotVoices {
		t.Errorf("max voices should be %d, got %d", MaxOneShotVoices, stats.MaxVoices)
	}
	if e.PositionSamples() != 0 || e.PositionSeconds() != 0 {
		t.Error("position should start at 0")
	}
}

func TestMasterVolumeClamping(t *testing.T) {
	e := testEngine()

	e.SetMasterVolume(0.75)
	if e.MasterVolume() != 0.75 {
		t.Errorf("master volume should be 0.75, got %f", e.MasterVolume())
	}

	e.SetMasterVolume(5.0)
	if e.MasterVolume() != MaxBusVolume {
		t.Errorf("master volume should clamp to %f, got %f", MaxBusVolume, e.MasterVolume())
	}
	e.SetMasterVolume(-1.0)
	if e.MasterVolume() != 0 {
		t.Errorf("master volume should clamp to 0, got %f", e.MasterVolume())
	}
}

func TestBusVolumeIndependence(t *testing.T) {
	e := testEngine()

	volumes := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.1}
	for bus, v := range volumes {
		e.SetBusVolume(bus, v)
	}
	for bus, want := range volumes {
		st, ok := e.BusState(bus)
		if !ok {
			t.Fatalf("bus %d should exist", bus)
		}
		if math.Abs(st.Volume-want) > 1e-12 {
			t.Errorf("bus %d volume should be %f, got %f", bus, want, st.Volume)
		}
	}
}

func TestBusVolumeClamping(t *testing.T) {
	e := testEngine()

	e.SetBusVolume(0, 3.0)
	st, _ := e.BusState(0)
	if st.Volume != MaxBusVolume {
		t.Errorf("bus volume should clamp to %f, got %f", MaxBusVolume, st.Volume)
	}

	e.SetBusVolume(0, -0.5)
	st, _ = e.BusState(0)
	if st.Volume != 0 {
		t.Errorf("bus volume should clamp to 0, got %f", st.Volume)
	}
}

func TestBusPanDualAndClamping(t *testing.T) {
	e := testEngine()

	for bus := 0; bus < NumBuses; bus++ {
		st, _ := e.BusState(bus)
		if st.Pan != 0 || st.PanRight != 0 {
			t.Errorf("bus %d pans should default to center", bus)
		}
	}

	e.SetBusPan(1, -0.5)
	e.SetBusPanRight(1, 0.5)
	st, _ := e.BusState(1)
	if st.Pan != -0.5 || st.PanRight != 0.5 {
		t.Errorf("dual pan should store independently: %+v", st)
	}

	e.SetBusPan(1, -3)
	e.SetBusPanRight(1, 3)
	st, _ = e.BusState(1)
	if st.Pan != -1 || st.PanRight != 1 {
		t.Errorf("pans should clamp to [-1,1]: %+v", st)
	}
}

func TestInvalidBusIndexSilent(t *testing.T) {
	e := testEngine()

	e.SetBusVolume(6, 0.5)
	e.SetBusVolume(-1, 0.5)
	e.SetBusPan(99, 0.5)
	e.SetBusMuted(99, true)
	e.SetBusSoloed(99, true)

	if _, ok := e.BusState(6); ok {
		t.Error("bus 6 must not exist")
	}
	if _, ok := e.BusState(-1); ok {
		t.Error("negative bus must not exist")
	}
}

func TestBusAudibleSoloPrecedence(t *testing.T) {
	// Solo bus 1: master stays audible, bus 1 audible, buses 2-5
	// silenced by solo exclusivity.
	if !busAudible(BusMaster, true, false, true) {
		t.Error("master is never muted or soloed away")
	}
	if !busAudible(1, false, true, true) {
		t.Error("soloed bus should be audible")
	}
	for bus := 2; bus <= 5; bus++ {
		if busAudible(bus, false, false, true) {
			t.Errorf("bus %d should be silenced by solo exclusivity", bus)
		}
	}
	// Without solo, only mute matters.
	if busAudible(2, true, false, false) {
		t.Error("muted bus should be silent")
	}
	if !busAudible(2, false, false, false) {
		t.Error("unmuted bus should be audible")
	}
	// Soloed but muted loses.
	if busAudible(2, true, true, true) {
		t.Error("mute wins over solo on the same bus")
	}
}

func TestSourceFromByte(t *testing.T) {
	cases := map[uint8]PlaybackSource{
		0: SourceDaw, 1: SourceSlotLab, 2: SourceMiddleware, 3: SourceBrowser,
		4: SourceDaw, 255: SourceDaw,
	}
	for b, want := range cases {
		if got := SourceFromByte(b); got != want {
			t.Errorf("byte %d should map to %v, got %v", b, want, got)
		}
	}
}

func TestAudioCache(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "cached")

	if e.Cache().Get(path) == nil {
		t.Error("cached audio should load")
	}
	if e.Cache().Get("/missing.wav") != nil {
		t.Error("cache miss should return nil")
	}
	e.Cache().Clear()
	if e.Cache().Len() != 0 {
		t.Error("clear should empty the cache")
	}
}

func TestPlayOneShotReturnsUniqueIDs(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "beep")

	id1 := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceSlotLab)
	id2 := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceSlotLab)
	id3 := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceSlotLab)

	if id1 == 0 || id2 == 0 || id3 == 0 {
		t.Fatal("valid plays should return non-zero ids")
	}
	if id1 == id2 || id2 == id3 || id1 == id3 {
		t.Error("voice ids must be unique")
	}
}

func TestPlayInvalidPathReturnsZero(t *testing.T) {
	e := testEngine()
	if id := e.PlayOneShotToBus("/missing.wav", 1, 0, BusSfx, SourceDaw); id != 0 {
		t.Errorf("missing clip should return 0, got %d", id)
	}
	if e.VoicePoolStats().ActiveCount != 0 {
		t.Error("no voice should have been allocated")
	}
}

func TestPlayInvalidBusReturnsZero(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "beep")
	if id := e.PlayOneShotToBus(path, 1, 0, 99, SourceDaw); id != 0 {
		t.Errorf("invalid bus should return 0, got %d", id)
	}
}

func TestVoiceCountsAfterBlock(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "beep")

	id := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)
	if id == 0 {
		t.Fatal("play should succeed")
	}
	// Commands are realized at the next block boundary.
	runBlock(e, 512)

	stats := e.VoicePoolStats()
	if stats.ActiveCount != 1 {
		t.Errorf("active count should be 1, got %d", stats.ActiveCount)
	}
	if stats.PerSourceCounts.Daw != 1 {
		t.Errorf("daw source count should be 1: %+v", stats.PerSourceCounts)
	}
	if stats.PerBusCounts.Sfx != 1 {
		t.Errorf("sfx bus count should be 1: %+v", stats.PerBusCounts)
	}
}

func TestPlayProducesAudio(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)

	runBlock(e, 512) // realize
	outL, outR := runBlock(e, 512)

	if blockPeak(outL) < 0.01 || blockPeak(outR) < 0.01 {
		t.Errorf("playing voice should produce audio, peaks %f/%f",
			blockPeak(outL), blockPeak(outR))
	}
}

func TestMutedBusIsSilent(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")
	e.SetBusMuted(BusSfx, true)
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)

	runBlock(e, 512)
	outL, _ := runBlock(e, 512)

	if blockPeak(outL) > 1e-6 {
		t.Errorf("muted bus should be silent, peak %f", blockPeak(outL))
	}
}

func TestSoloSilencesOtherBuses(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")
	e.SetBusSoloed(BusMusic, true)
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)

	runBlock(e, 512)
	outL, _ := runBlock(e, 512)

	if blockPeak(outL) > 1e-6 {
		t.Errorf("non-soloed bus should be silenced, peak %f", blockPeak(outL))
	}
}

func TestStopVoiceFreesSlot(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")
	id := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)

	runBlock(e, 512)
	e.StopOneShot(id)
	// The 5 ms stop ramp completes within 240 samples + one block.
	runBlock(e, 512)
	runBlock(e, 512)

	if e.VoicePoolStats().ActiveCount != 0 {
		t.Errorf("stopped voice should free its slot, active %d",
			e.VoicePoolStats().ActiveCount)
	}
}

func TestStopUnknownVoiceIsSilent(t *testing.T) {
	e := testEngine()
	e.StopOneShot(0)
	e.StopOneShot(99999)
	e.FadeOutOneShot(0, 100)
	e.FadeOutOneShot(424242, 100)
	e.SetVoicePitch(0, 5)
	e.SetVoicePitch(31337, -3)
	runBlock(e, 256) // dispatch without panic
}

func TestStopSource(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceSlotLab)
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceMiddleware)
	runBlock(e, 512)

	e.StopSourceOneShots(SourceSlotLab)
	runBlock(e, 512)
	runBlock(e, 512)

	stats := e.VoicePoolStats()
	if stats.PerSourceCounts.SlotLab != 0 {
		t.Error("slotlab voices should be stopped")
	}
	if stats.PerSourceCounts.Middleware != 1 {
		t.Error("middleware voice should survive")
	}
}

func TestActiveSectionFilter(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")

	e.SetActiveSection(SourceSlotLab)
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw) // paused under SlotLab
	runBlock(e, 512)

	if e.ActiveSection() != SourceSlotLab {
		t.Error("active section should update after dispatch")
	}
	outL, _ := runBlock(e, 512)
	if blockPeak(outL) > 1e-6 {
		t.Error("voices outside the active section must not render")
	}
	// The voice is paused, not dead.
	if e.VoicePoolStats().ActiveCount != 1 {
		t.Error("paused voice should stay allocated")
	}
}

func TestVoiceStealingKeepsPoolBounded(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")

	for i := 0; i < MaxOneShotVoices+8; i++ {
		if id := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw); id == 0 {
			t.Fatal("play should return an id even when stealing")
		}
	}

	for block := 0; block < 8; block++ {
		runBlock(e, 512)
		if got := e.VoicePoolStats().ActiveCount; got > MaxOneShotVoices {
			t.Fatalf("active count %d exceeds the pool limit", got)
		}
	}

	// The pool converges back to full occupancy with the newcomers.
	if got := e.VoicePoolStats().ActiveCount; got != MaxOneShotVoices {
		t.Errorf("pool should be full after steals, got %d", got)
	}
}

func TestLoopingVoicePersists(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "loop")
	id := e.PlayLoopingToBus(path, 1, 0, BusMusic, SourceDaw)
	if id == 0 {
		t.Fatal("looping play should succeed")
	}

	// Render well past the clip length; the loop must survive.
	for block := 0; block < 120; block++ {
		runBlock(e, 1024)
	}
	stats := e.VoicePoolStats()
	if stats.LoopingCount != 1 {
		t.Errorf("looping voice should persist, got %d", stats.LoopingCount)
	}
}

func TestOneShotEndsAtSourceEnd(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "short")
	e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)

	// One second of audio at 48 kHz = under 100 blocks of 512.
	for block := 0; block < 120; block++ {
		runBlock(e, 512)
	}
	if e.VoicePoolStats().ActiveCount != 0 {
		t.Error("one-shot should free its slot at source end")
	}
}

func TestVarispeed(t *testing.T) {
	e := testEngine()

	if e.IsVarispeedEnabled() {
		t.Error("varispeed should default off")
	}
	if e.VarispeedRate() != 1 || e.EffectivePlaybackRate() != 1 {
		t.Error("default rate should be 1")
	}

	e.SetVarispeedEnabled(true)
	e.SetVarispeedRate(2)
	if e.EffectivePlaybackRate() != 2 {
		t.Error("enabled varispeed should report its rate")
	}

	e.SetVarispeedEnabled(false)
	if e.EffectivePlaybackRate() != 1 {
		t.Error("disabled varispeed must report rate 1")
	}

	e.SetVarispeedRate(0.1)
	if e.VarispeedRate() != MinVarispeedRate {
		t.Errorf("rate should clamp to %f, got %f", MinVarispeedRate, e.VarispeedRate())
	}
	e.SetVarispeedRate(100)
	if e.VarispeedRate() != MaxVarispeedRate {
		t.Errorf("rate should clamp to %f, got %f", MaxVarispeedRate, e.VarispeedRate())
	}
}

func TestCommandRingOverflowDropsOldest(t *testing.T) {
	r := newCommandRing(8)
	for i := 0; i < 20; i++ {
		r.Push(command{kind: cmdStopVoice, voiceID: uint64(i + 1)})
	}

	if r.Dropped() != 12 {
		t.Errorf("expected 12 dropped commands, got %d", r.Dropped())
	}

	// The newest 8 survive, oldest first.
	first, ok := r.Pop()
	if !ok || first.voiceID != 13 {
		t.Errorf("oldest surviving command should be 13, got %d", first.voiceID)
	}
	count := 1
	for {
		if _, ok := r.Pop(); !ok {
			break
		}
		count++
	}
	if count != 8 {
		t.Errorf("ring should hold 8 commands, got %d", count)
	}
}

func TestMeterSilentCorrelationIsOne(t *testing.T) {
	e := testEngine()
	runBlock(e, 512)

	m := e.MasterMeter()
	if m.Correlation != 1.0 {
		t.Errorf("silent correlation should be 1.0, got %f", m.Correlation)
	}
	if m.PeakL != 0 || m.RmsL != 0 {
		t.Errorf("silent meters should read 0: %+v", m)
	}
}

func TestMeterTracksSignalAndDecays(t *testing.T) {
	e := testEngine()
	path := insertTestAudio(e, "tone")
	id := e.PlayOneShotToBus(path, 1, 0, BusSfx, SourceDaw)
	runBlock(e, 512)
	for i := 0; i < 10; i++ {
		runBlock(e, 512)
	}

	loud := e.MasterMeter()
	if loud.PeakL < 0.05 {
		t.Fatalf("meter should register signal, peak %f", loud.PeakL)
	}

	e.StopOneShot(id)
	for i := 0; i < 40; i++ {
		runBlock(e, 512)
	}
	quiet := e.MasterMeter()
	if quiet.PeakL >= loud.PeakL {
		t.Errorf("peak should decay after stop: %f -> %f", loud.PeakL, quiet.PeakL)
	}
}

func TestTransportAdvancesOnlyWhilePlaying(t *testing.T) {
	e := testEngine()
	runBlock(e, 512)
	if e.PositionSamples() != 0 {
		t.Error("stopped transport must not advance")
	}

	e.Play()
	runBlock(e, 512)
	if e.PositionSamples() != 512 {
		t.Errorf("playing transport should advance by the block, got %d", e.PositionSamples())
	}

	e.Stop()
	e.Seek(1000)
	if e.PositionSamples() != 1000 {
		t.Error("seek should move the position")
	}
}

func TestTransportLoopWraps(t *testing.T) {
	e := testEngine()
	e.SetLoopRegion(0, 1000, true)
	e.Play()

	for i := 0; i < 4; i++ {
		runBlock(e, 512)
	}
	if pos := e.PositionSamples(); pos >= 1000 {
		t.Errorf("looped position should wrap under 1000, got %d", pos)
	}
}

func TestMultipleEnginesIndependent(t *testing.T) {
	a := testEngine()
	b := testEngine()

	a.SetMasterVolume(0.2)
	b.SetMasterVolume(1.2)
	if a.MasterVolume() == b.MasterVolume() {
		t.Error("engines must not share state")
	}

	pathA := insertTestAudio(a, "a")
	if id := b.PlayOneShotToBus(pathA, 1, 0, BusSfx, SourceDaw); id != 0 {
		t.Error("engine b must not see engine a's cache")
	}
}
