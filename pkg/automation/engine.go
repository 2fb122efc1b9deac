package automation

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Bojan20/reelforge/pkg/param"
)

// Mode is an automation read/write mode.
type Mode int

const (
	// ModeRead plays back automation without recording
	ModeRead Mode = iota
	// ModeTouch records while the parameter is touched
	ModeTouch
	// ModeLatch keeps recording from the first touch until stop
	ModeLatch
	// ModeWrite records continuously
	ModeWrite
	// ModeTrim offsets existing automation by a delta
	ModeTrim
	// ModeOff disables automation entirely
	ModeOff
)

// Change is one recorded parameter move waiting to be committed.
type Change struct {
	ParamID     param.ID
	Value       float64
	TimeSamples uint64
}

// trimState tracks an in-progress Trim gesture.
type trimState struct {
	originalValue float64
	startPos      uint64
	delta         float64
}

// BlockValue is a (offset, value) change inside one audio block.
type BlockValue struct {
	Offset int
	Value  float64
}

// Engine owns all automation lanes and the recording state machine.
// Lane edits and recording happen on the editor thread; the audio
// thread calls the value queries under the project read lock.
type Engine struct {
	mu         sync.RWMutex
	lanes      map[param.ID]*Lane
	paramModes map[param.ID]Mode
	touched    map[param.ID]float64
	trims      map[param.ID]trimState
	pending    []Change
	mode       Mode

	position  atomic.Uint64
	playing   atomic.Bool
	recording atomic.Bool

	history *History
}

// NewEngine creates an automation engine in Read mode.
func NewEngine() *Engine {
	return &Engine{
		lanes:      make(map[param.ID]*Lane),
		paramModes: make(map[param.ID]Mode),
		touched:    make(map[param.ID]float64),
		trims:      make(map[param.ID]trimState),
		history:    NewHistory(),
	}
}

// History returns the undo/redo stack.
func (e *Engine) History() *History {
	return e.history
}

// SetMode sets the global automation mode.
func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()
}

// Mode returns the global automation mode.
func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetParamMode overrides the mode for one parameter.
func (e *Engine) SetParamMode(id param.ID, mode Mode) {
	e.mu.Lock()
	e.paramModes[id] = mode
	e.mu.Unlock()
}

// ParamMode returns the effective mode for a parameter.
func (e *Engine) ParamMode(id param.ID) Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paramModeLocked(id)
}

func (e *Engine) paramModeLocked(id param.ID) Mode {
	if m, ok := e.paramModes[id]; ok {
		return m
	}
	return e.mode
}

// SetPosition sets the transport position used for recording stamps.
func (e *Engine) SetPosition(samples uint64) {
	e.position.Store(samples)
}

// Position returns the transport position.
func (e *Engine) Position() uint64 {
	return e.position.Load()
}

// Advance moves the transport position forward.
func (e *Engine) Advance(samples uint64) {
	e.position.Add(samples)
}

// SetPlaying sets the transport running flag.
func (e *Engine) SetPlaying(playing bool) {
	e.playing.Store(playing)
}

// SetRecording enables or disables automation recording.
func (e *Engine) SetRecording(recording bool) {
	e.recording.Store(recording)
}

// GetOrCreateLane returns the lane for a parameter, creating it if
// needed.
func (e *Engine) GetOrCreateLane(id param.ID, name string) *Lane {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lane, ok := e.lanes[id]; ok {
		return lane
	}
	lane := NewLane(id, name)
	e.lanes[id] = lane
	return lane
}

// Lane returns the lane for a parameter, or nil.
func (e *Engine) Lane(id param.ID) *Lane {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lanes[id]
}

// LaneIDs returns all lane parameter IDs.
func (e *Engine) LaneIDs() []param.ID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]param.ID, 0, len(e.lanes))
	for id := range e.lanes {
		ids = append(ids, id)
	}
	return ids
}

// RemoveLane deletes a lane. Unknown IDs are ignored.
func (e *Engine) RemoveLane(id param.ID) {
	e.mu.Lock()
	delete(e.lanes, id)
	e.mu.Unlock()
}

// ClearAll removes every lane and all recording state.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	e.lanes = make(map[param.ID]*Lane)
	e.pending = nil
	e.touched = make(map[param.ID]float64)
	e.trims = make(map[param.ID]trimState)
	e.mu.Unlock()
}

// AddPoint inserts a point into a parameter's lane, creating the lane
// when missing. The edit is recorded in history.
func (e *Engine) AddPoint(id param.ID, p Point) {
	e.mu.Lock()
	lane, ok := e.lanes[id]
	if !ok {
		lane = NewLane(id, id.Name)
		e.lanes[id] = lane
	}
	lane.AddPoint(p)
	e.mu.Unlock()

	e.history.Push(&AddPointOp{ParamID: id, Point: p})
}

// Value returns the automation value for a parameter at the current
// transport position, honoring the mode matrix. The second return is
// false when automation should be skipped (mode Off, touched
// parameter, or no enabled lane with points).
func (e *Engine) Value(id param.ID) (float64, bool) {
	return e.ValueAt(id, e.position.Load())
}

// ValueAt is Value at an explicit sample position.
func (e *Engine) ValueAt(id param.ID, time uint64) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	mode := e.paramModeLocked(id)
	if mode == ModeOff {
		return 0, false
	}

	// While touched in Touch/Latch/Write the live value wins.
	if mode == ModeTouch || mode == ModeLatch || mode == ModeWrite {
		if _, touched := e.touched[id]; touched {
			return 0, false
		}
	}

	lane, ok := e.lanes[id]
	if !ok || !lane.Enabled || len(lane.Points) == 0 {
		return 0, false
	}

	v := lane.ValueAt(time)

	// Trim mode reads the lane plus the live delta.
	if mode == ModeTrim {
		if trim, touching := e.trims[id]; touching {
			v = clamp01(v + trim.delta)
		}
	}

	return v, true
}

// BlockValues returns the automation changes for one audio block:
// the value at offset 0 plus every lane point falling inside the
// block, sorted by offset. The result is empty when automation is
// skipped for the parameter.
func (e *Engine) BlockValues(id param.ID, start uint64, blockSize int) []BlockValue {
	e.mu.RLock()
	defer e.mu.RUnlock()

	mode := e.paramModeLocked(id)
	if mode == ModeOff || blockSize <= 0 {
		return nil
	}

	lane, ok := e.lanes[id]
	if !ok || !lane.Enabled || len(lane.Points) == 0 {
		return nil
	}

	end := start + uint64(blockSize)
	out := []BlockValue{{Offset: 0, Value: lane.ValueAt(start)}}

	for _, p := range lane.Points {
		if p.TimeSamples <= start || p.TimeSamples >= end {
			continue
		}
		offset := int(p.TimeSamples - start)
		out = append(out, BlockValue{Offset: offset, Value: p.Value})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// TouchParam marks a parameter as human-controlled. In Trim mode the
// current lane value is captured as the trim origin.
func (e *Engine) TouchParam(id param.ID, currentValue float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := e.paramModeLocked(id)
	switch mode {
	case ModeTouch, ModeLatch, ModeWrite, ModeTrim:
		e.touched[id] = currentValue
	default:
		return
	}

	if mode == ModeTrim {
		pos := e.position.Load()
		original := currentValue
		if lane, ok := e.lanes[id]; ok {
			original = lane.ValueAt(pos)
		}
		e.trims[id] = trimState{originalValue: original, startPos: pos}
	}
}

// ReleaseParam ends a touch. Touch mode commits the pending changes;
// Trim applies the delta to the touched range; Latch stays latched
// until the transport stops.
func (e *Engine) ReleaseParam(id param.ID) {
	e.mu.Lock()
	mode := e.paramModeLocked(id)

	switch mode {
	case ModeTouch:
		delete(e.touched, id)
		changes := e.drainPendingLocked(id)
		e.commitChangesLocked(changes)
	case ModeTrim:
		if trim, ok := e.trims[id]; ok {
			delete(e.trims, id)
			e.applyTrimLocked(id, trim.startPos, e.position.Load(), trim.delta)
		}
		delete(e.touched, id)
	}
	e.mu.Unlock()
}

// RecordChange records a live parameter move. Requires the transport
// playing and recording enabled; the mode matrix decides whether it
// lands in the pending buffer (Touch/Latch/Write) or updates the trim
// delta (Trim).
func (e *Engine) RecordChange(id param.ID, value float64) {
	if !e.playing.Load() || !e.recording.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mode := e.paramModeLocked(id)

	if mode == ModeTrim {
		if _, touching := e.touched[id]; touching {
			if trim, ok := e.trims[id]; ok {
				trim.delta = value - trim.originalValue
				e.trims[id] = trim
			}
		}
		return
	}

	record := false
	switch mode {
	case ModeWrite:
		record = true
	case ModeTouch, ModeLatch:
		_, record = e.touched[id]
	}

	if record {
		e.pending = append(e.pending, Change{
			ParamID:     id,
			Value:       value,
			TimeSamples: e.position.Load(),
		})
	}
}

// CommitAllPending drains every pending change into its lane and
// releases all latched parameters. Called at transport stop.
func (e *Engine) CommitAllPending() {
	e.mu.Lock()
	changes := e.pending
	e.pending = nil
	e.commitChangesLocked(changes)
	e.touched = make(map[param.ID]float64)
	e.trims = make(map[param.ID]trimState)
	e.mu.Unlock()
}

// ExportLane returns a copy of a lane for serialization, or nil.
func (e *Engine) ExportLane(id param.ID) *Lane {
	e.mu.RLock()
	defer e.mu.RUnlock()
	lane, ok := e.lanes[id]
	if !ok {
		return nil
	}
	cp := *lane
	cp.Points = append([]Point(nil), lane.Points...)
	return &cp
}

// ImportLane installs a lane, replacing any existing one for the same
// parameter.
func (e *Engine) ImportLane(lane Lane) {
	e.mu.Lock()
	cp := lane
	cp.Points = append([]Point(nil), lane.Points...)
	e.lanes[lane.ParamID] = &cp
	e.mu.Unlock()
}

func (e *Engine) drainPendingLocked(id param.ID) []Change {
	var mine []Change
	kept := e.pending[:0]
	for _, c := range e.pending {
		if c.ParamID == id {
			mine = append(mine, c)
		} else {
			kept = append(kept, c)
		}
	}
	e.pending = kept
	return mine
}

func (e *Engine) commitChangesLocked(changes []Change) {
	for _, c := range changes {
		lane, ok := e.lanes[c.ParamID]
		if !ok {
			lane = NewLane(c.ParamID, c.ParamID.Name)
			e.lanes[c.ParamID] = lane
		}
		lane.AddPoint(NewPoint(c.TimeSamples, c.Value))
	}
}

func (e *Engine) applyTrimLocked(id param.ID, start, end uint64, delta float64) {
	if delta == 0 {
		return
	}
	lane, ok := e.lanes[id]
	if !ok {
		return
	}
	for i := range lane.Points {
		t := lane.Points[i].TimeSamples
		if t >= start && t <= end {
			lane.Points[i].Value = clamp01(lane.Points[i].Value + delta)
		}
	}
}
