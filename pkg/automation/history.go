package automation

import (
	"github.com/Bojan20/reelforge/pkg/param"
)

// MaxHistoryDepth caps the undo stack; older entries evict FIFO.
const MaxHistoryDepth = 100

// Op is one undoable automation edit.
type Op interface {
	// Apply performs the edit on the engine.
	Apply(e *Engine)
	// ApplyInverse reverts the edit.
	ApplyInverse(e *Engine)
}

// AddPointOp records a point insertion.
type AddPointOp struct {
	ParamID param.ID
	Point   Point
	// Replaced holds a point that the insertion overwrote, if any.
	Replaced *Point
}

// Apply re-inserts the point.
func (op *AddPointOp) Apply(e *Engine) {
	if lane := e.Lane(op.ParamID); lane != nil {
		lane.AddPoint(op.Point)
	}
}

// ApplyInverse removes the point, restoring any replaced one.
func (op *AddPointOp) ApplyInverse(e *Engine) {
	lane := e.Lane(op.ParamID)
	if lane == nil {
		return
	}
	lane.RemovePointAt(op.Point.TimeSamples, pointReplaceTolerance)
	if op.Replaced != nil {
		lane.AddPoint(*op.Replaced)
	}
}

// RemovePointOp records a point removal.
type RemovePointOp struct {
	ParamID param.ID
	Point   Point
}

// Apply removes the point.
func (op *RemovePointOp) Apply(e *Engine) {
	if lane := e.Lane(op.ParamID); lane != nil {
		lane.RemovePointAt(op.Point.TimeSamples, pointReplaceTolerance)
	}
}

// ApplyInverse restores the point.
func (op *RemovePointOp) ApplyInverse(e *Engine) {
	if lane := e.Lane(op.ParamID); lane != nil {
		lane.AddPoint(op.Point)
	}
}

// MovePointOp records a point move (time and/or value).
type MovePointOp struct {
	ParamID param.ID
	From    Point
	To      Point
}

// Apply moves the point to its new place.
func (op *MovePointOp) Apply(e *Engine) {
	lane := e.Lane(op.ParamID)
	if lane == nil {
		return
	}
	lane.RemovePointAt(op.From.TimeSamples, pointReplaceTolerance)
	lane.AddPoint(op.To)
}

// ApplyInverse moves the point back.
func (op *MovePointOp) ApplyInverse(e *Engine) {
	lane := e.Lane(op.ParamID)
	if lane == nil {
		return
	}
	lane.RemovePointAt(op.To.TimeSamples, pointReplaceTolerance)
	lane.AddPoint(op.From)
}

// ChangeValueOp records a value-only change of an existing point.
type ChangeValueOp struct {
	ParamID  param.ID
	Time     uint64
	OldValue float64
	NewValue float64
}

// Apply sets the new value.
func (op *ChangeValueOp) Apply(e *Engine) {
	op.set(e, op.NewValue)
}

// ApplyInverse restores the old value.
func (op *ChangeValueOp) ApplyInverse(e *Engine) {
	op.set(e, op.OldValue)
}

func (op *ChangeValueOp) set(e *Engine, value float64) {
	lane := e.Lane(op.ParamID)
	if lane == nil {
		return
	}
	for i := range lane.Points {
		if lane.Points[i].TimeSamples == op.Time {
			lane.Points[i].Value = clamp01(value)
			return
		}
	}
}

// QuantizeOp records a grid quantize of a lane's points.
type QuantizeOp struct {
	ParamID   param.ID
	GridTicks uint64
	// Before holds the point times prior to quantizing, index-aligned
	// with the lane.
	Before []uint64
}

// Apply snaps every point time to the grid.
func (op *QuantizeOp) Apply(e *Engine) {
	lane := e.Lane(op.ParamID)
	if lane == nil || op.GridTicks == 0 {
		return
	}
	op.Before = op.Before[:0]
	for i := range lane.Points {
		op.Before = append(op.Before, lane.Points[i].TimeSamples)
		t := lane.Points[i].TimeSamples
		lane.Points[i].TimeSamples = (t + op.GridTicks/2) / op.GridTicks * op.GridTicks
	}
}

// ApplyInverse restores the recorded point times.
func (op *QuantizeOp) ApplyInverse(e *Engine) {
	lane := e.Lane(op.ParamID)
	if lane == nil || len(op.Before) != len(lane.Points) {
		return
	}
	for i := range lane.Points {
		lane.Points[i].TimeSamples = op.Before[i]
	}
}

// BatchOp composes several edits into one undo unit.
type BatchOp struct {
	Ops []Op
}

// Apply applies the members in order.
func (op *BatchOp) Apply(e *Engine) {
	for _, o := range op.Ops {
		o.Apply(e)
	}
}

// ApplyInverse reverts the members in reverse order.
func (op *BatchOp) ApplyInverse(e *Engine) {
	for i := len(op.Ops) - 1; i >= 0; i-- {
		op.Ops[i].ApplyInverse(e)
	}
}

// History is the bounded undo/redo stack. Push records an edit that
// has already been performed; Undo/Redo replay inverses against the
// engine.
type History struct {
	undo []Op
	redo []Op
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Push records a performed edit and clears the redo stack. When the
// stack is full the oldest entry evicts.
func (h *History) Push(op Op) {
	h.undo = append(h.undo, op)
	if len(h.undo) > MaxHistoryDepth {
		h.undo = h.undo[1:]
	}
	h.redo = nil
}

// Undo reverts the most recent edit. Returns false when empty.
func (h *History) Undo(e *Engine) bool {
	if len(h.undo) == 0 {
		return false
	}
	op := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	op.ApplyInverse(e)
	h.redo = append(h.redo, op)
	return true
}

// Redo reapplies the most recently undone edit.
func (h *History) Redo(e *Engine) bool {
	if len(h.redo) == 0 {
		return false
	}
	op := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	op.Apply(e)
	h.undo = append(h.undo, op)
	return true
}

// CanUndo reports whether an undo is available.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether a redo is available.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the undo stack depth.
func (h *History) Depth() int { return len(h.undo) }
