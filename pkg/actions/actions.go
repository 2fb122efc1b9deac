// Package actions defines the typed command taxonomy the scripting
// host submits to the core, and the bounded sink it flows through.
// Scripts never execute host code; they only emit these actions.
package actions

import (
	"github.com/Bojan20/reelforge/pkg/param"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

// Kind discriminates actions.
type Kind int

const (
	// Transport
	TransportPlay Kind = iota
	TransportStop
	TransportRecord
	TransportSeek
	TransportSetLoop

	// Tracks
	TrackCreate
	TrackDelete
	TrackRename
	TrackMute
	TrackSolo
	TrackVolume
	TrackPan

	// Clips and events
	ClipCreate
	ClipDelete
	ClipMove
	ClipTrim
	ClipSplit
	ClipDuplicate

	// Selection
	Select
	Deselect

	// Editing
	EditCut
	EditCopy
	EditPaste
	EditUndo
	EditRedo

	// Plugins
	PluginInsert
	PluginRemove
	PluginSetParam

	// Automation
	AutomationWrite
	AutomationClear

	// Markers
	MarkerAdd
	MarkerDelete

	// Project
	ProjectSave
	ProjectExport
)

// Action is one scripted command. Only the fields relevant to the
// Kind are read; the rest stay zero.
type Action struct {
	Kind Kind

	// Transport
	PositionSamples uint64
	LoopStart       uint64
	LoopEnd         uint64
	LoopEnabled     bool

	// Track
	TrackID uint64
	Name    string
	Flag    bool
	Value   float64

	// Clip / event
	EventID     timeline.EventID
	ClipID      timeline.ClipID
	DeltaSample int64
	AtSample    uint64

	// Plugin / automation
	ParamID param.ID
	Slot    uint32

	// Marker / project
	Label string
	Path  string
}

// DefaultSinkCapacity bounds the action channel.
const DefaultSinkCapacity = 256

// Sink is the MPSC channel the script host writes into and the editor
// loop drains. Submission never blocks: a full sink rejects the
// action.
type Sink struct {
	ch chan Action
}

// NewSink creates a sink with the given capacity (<=0 uses the
// default).
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}
	return &Sink{ch: make(chan Action, capacity)}
}

// Submit enqueues an action; returns false when the sink is full.
func (s *Sink) Submit(a Action) bool {
	select {
	case s.ch <- a:
		return true
	default:
		return false
	}
}

// Drain calls fn for every queued action without blocking, returning
// the number handled.
func (s *Sink) Drain(fn func(Action)) int {
	count := 0
	for {
		select {
		case a := <-s.ch:
			fn(a)
			count++
		default:
			return count
		}
	}
}

// Pending returns the queued action count.
func (s *Sink) Pending() int {
	return len(s.ch)
}
