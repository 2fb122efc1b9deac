package automation

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Bojan20/reelforge/pkg/param"
)

func TestValueAtLinear(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)

	e.AddPoint(id, NewPoint(0, 0.0))
	e.AddPoint(id, NewPoint(48000, 1.0))
	e.AddPoint(id, NewPoint(96000, 0.5))

	cases := []struct {
		time uint64
		want float64
	}{
		{24000, 0.5},
		{72000, 0.75},
		{96000, 0.5},
		{200000, 0.5}, // after last point
	}
	for _, c := range cases {
		got, ok := e.ValueAt(id, c.time)
		if !ok {
			t.Fatalf("value at %d should be readable", c.time)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("value at %d: expected %f, got %f", c.time, c.want, got)
		}
	}
}

func TestValueBeforeFirstPoint(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.AddPoint(id, NewPoint(1000, 0.8))

	got, ok := e.ValueAt(id, 0)
	if !ok || got != 0.8 {
		t.Errorf("before first point should return its value, got %f %v", got, ok)
	}
}

func TestEmptyLaneReturnsDefault(t *testing.T) {
	lane := NewLane(param.TrackVolume(1), "volume").WithRange(0, 1, 0.7)
	if lane.ValueAt(1234) != 0.7 {
		t.Errorf("empty lane should return default, got %f", lane.ValueAt(1234))
	}
}

func TestUnknownParamSkipped(t *testing.T) {
	e := NewEngine()
	if _, ok := e.ValueAt(param.TrackVolume(42), 0); ok {
		t.Error("unknown parameter should be skipped")
	}
}

func TestAddPointIdempotent(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)

	e.AddPoint(id, NewPoint(1000, 0.5))
	e.AddPoint(id, NewPoint(1000, 0.6))
	e.AddPoint(id, NewPoint(1001, 0.7)) // within 1-sample tolerance

	lane := e.Lane(id)
	if len(lane.Points) != 1 {
		t.Fatalf("points within tolerance should replace, got %d points", len(lane.Points))
	}
	if lane.Points[0].Value != 0.7 {
		t.Errorf("latest value should win, got %f", lane.Points[0].Value)
	}
}

func TestPointsStaySorted(t *testing.T) {
	lane := NewLane(param.TrackVolume(1), "volume")
	lane.AddPoint(NewPoint(5000, 0.5))
	lane.AddPoint(NewPoint(1000, 0.1))
	lane.AddPoint(NewPoint(3000, 0.3))

	for i := 1; i < len(lane.Points); i++ {
		if lane.Points[i].TimeSamples <= lane.Points[i-1].TimeSamples {
			t.Fatal("points must be strictly sorted by time")
		}
	}
}

func TestCurveShapes(t *testing.T) {
	p1 := NewPoint(0, 0)
	p2 := NewPoint(100, 1)

	if got := interpolate(p1.WithCurve(CurveStep), p2, 0.9); got != 0 {
		t.Errorf("step should hold the left value, got %f", got)
	}

	smooth := interpolate(p1.WithCurve(CurveSmooth), p2, 0.5)
	if math.Abs(smooth-0.5) > 1e-9 {
		t.Errorf("smoothstep midpoint should be 0.5, got %f", smooth)
	}

	sc := interpolate(p1.WithCurve(CurveSCurve), p2, 0.25)
	want := (1 - math.Cos(0.25*math.Pi)) * 0.5
	if math.Abs(sc-want) > 1e-9 {
		t.Errorf("s-curve at 0.25: expected %f, got %f", want, sc)
	}

	exp := interpolate(p1.WithCurve(CurveExponential).WithTension(1), p2, 0.5)
	if math.Abs(exp-math.Pow(0.5, 3)) > 1e-9 {
		t.Errorf("exponential tension 1 at 0.5: expected %f, got %f", math.Pow(0.5, 3), exp)
	}

	log := interpolate(p1.WithCurve(CurveLogarithmic), p2, 0.5)
	if math.Abs(log-math.Log10(5.5)) > 1e-9 {
		t.Errorf("logarithmic at 0.5: expected %f, got %f", math.Log10(5.5), log)
	}

	// Bezier with zero tension reduces to the cubic through the
	// endpoint values; endpoints must hold exactly.
	if got := interpolate(p1.WithCurve(CurveBezier), p2, 0); got != 0 {
		t.Errorf("bezier t=0 should be v0, got %f", got)
	}
	if got := interpolate(p1.WithCurve(CurveBezier), p2, 1); got != 1 {
		t.Errorf("bezier t=1 should be v1, got %f", got)
	}
}

func TestBlockValues(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.AddPoint(id, NewPoint(0, 0.0))
	e.AddPoint(id, NewPoint(1100, 0.5))
	e.AddPoint(id, NewPoint(2500, 1.0))

	values := e.BlockValues(id, 1000, 512)
	if len(values) != 2 {
		t.Fatalf("expected start value plus one point, got %d", len(values))
	}
	if values[0].Offset != 0 {
		t.Error("offset 0 must always be present")
	}
	if values[1].Offset != 100 || values[1].Value != 0.5 {
		t.Errorf("point at 1100 should appear at offset 100: %+v", values[1])
	}
	for _, v := range values {
		if v.Offset < 0 || v.Offset >= 512 {
			t.Errorf("offset out of block: %d", v.Offset)
		}
	}
}

func TestModeMatrix(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.AddPoint(id, NewPoint(0, 0.25))

	e.SetParamMode(id, ModeOff)
	if _, ok := e.Value(id); ok {
		t.Error("Off mode should skip automation")
	}

	e.SetParamMode(id, ModeRead)
	if v, ok := e.Value(id); !ok || v != 0.25 {
		t.Error("Read mode should return the lane value")
	}

	// Touch: UI wins while touched.
	e.SetParamMode(id, ModeTouch)
	e.TouchParam(id, 0.9)
	if _, ok := e.Value(id); ok {
		t.Error("touched parameter should skip automation")
	}
	e.ReleaseParam(id)
	if _, ok := e.Value(id); !ok {
		t.Error("released parameter should read again")
	}
}

func TestTouchRecordCommit(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.GetOrCreateLane(id, "volume")
	e.SetParamMode(id, ModeTouch)
	e.SetPlaying(true)
	e.SetRecording(true)

	// Not touched: Touch mode ignores the change.
	e.SetPosition(100)
	e.RecordChange(id, 0.3)

	e.TouchParam(id, 0.3)
	e.SetPosition(200)
	e.RecordChange(id, 0.4)
	e.SetPosition(300)
	e.RecordChange(id, 0.5)
	e.ReleaseParam(id)

	lane := e.Lane(id)
	if len(lane.Points) != 2 {
		t.Fatalf("expected 2 committed points, got %d", len(lane.Points))
	}
	if lane.Points[0].TimeSamples != 200 || lane.Points[1].TimeSamples != 300 {
		t.Errorf("points at wrong times: %+v", lane.Points)
	}
}

func TestWriteModeRecordsContinuously(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.GetOrCreateLane(id, "volume")
	e.SetParamMode(id, ModeWrite)
	e.SetPlaying(true)
	e.SetRecording(true)

	for i := uint64(0); i < 5; i++ {
		e.SetPosition(i * 1000)
		e.RecordChange(id, float64(i)*0.1)
	}
	e.CommitAllPending()

	if got := len(e.Lane(id).Points); got != 5 {
		t.Errorf("write mode should record every change, got %d points", got)
	}
}

func TestRecordRequiresTransport(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.GetOrCreateLane(id, "volume")
	e.SetParamMode(id, ModeWrite)

	e.RecordChange(id, 0.5) // transport stopped
	e.CommitAllPending()
	if len(e.Lane(id).Points) != 0 {
		t.Error("no recording while the transport is stopped")
	}
}

func TestTrimMode(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.AddPoint(id, NewPoint(100, 0.4))
	e.AddPoint(id, NewPoint(900, 0.4))
	e.AddPoint(id, NewPoint(5000, 0.4)) // outside the touched range

	e.SetParamMode(id, ModeTrim)
	e.SetPlaying(true)
	e.SetRecording(true)

	e.SetPosition(0)
	e.TouchParam(id, 0.4)
	e.RecordChange(id, 0.6) // delta +0.2

	// While touched, reads include the delta.
	if v, ok := e.ValueAt(id, 500); !ok || math.Abs(v-0.6) > 1e-9 {
		t.Errorf("trim read should include delta, got %f", v)
	}

	e.SetPosition(1000)
	e.ReleaseParam(id)

	lane := e.Lane(id)
	if math.Abs(lane.Points[0].Value-0.6) > 1e-9 || math.Abs(lane.Points[1].Value-0.6) > 1e-9 {
		t.Errorf("trim should offset points in range: %+v", lane.Points)
	}
	if math.Abs(lane.Points[2].Value-0.4) > 1e-9 {
		t.Error("points outside the touched range must not change")
	}
}

func TestLatchHoldsUntilStop(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	e.GetOrCreateLane(id, "volume")
	e.SetParamMode(id, ModeLatch)
	e.SetPlaying(true)
	e.SetRecording(true)

	e.TouchParam(id, 0.5)
	e.ReleaseParam(id) // latch ignores release

	e.SetPosition(100)
	e.RecordChange(id, 0.7)
	e.CommitAllPending()

	if len(e.Lane(id).Points) != 1 {
		t.Error("latch should keep recording after release until stop")
	}
	if _, ok := e.Value(id); !ok {
		t.Error("commit should release the latch")
	}
}

func TestHistoryUndoRedo(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)

	e.AddPoint(id, NewPoint(100, 0.5))
	e.AddPoint(id, NewPoint(200, 0.7))

	if !e.History().Undo(e) {
		t.Fatal("undo should succeed")
	}
	if len(e.Lane(id).Points) != 1 {
		t.Error("undo should remove the last point")
	}

	if !e.History().Redo(e) {
		t.Fatal("redo should succeed")
	}
	if len(e.Lane(id).Points) != 2 {
		t.Error("redo should restore the point")
	}
}

func TestHistoryCap(t *testing.T) {
	h := NewHistory()
	for i := 0; i < MaxHistoryDepth+20; i++ {
		h.Push(&AddPointOp{ParamID: param.TrackVolume(1), Point: NewPoint(uint64(i), 0.5)})
	}
	if h.Depth() != MaxHistoryDepth {
		t.Errorf("history should cap at %d, got %d", MaxHistoryDepth, h.Depth())
	}
}

func TestBatchOpUndoesAsOne(t *testing.T) {
	e := NewEngine()
	id := param.TrackVolume(1)
	lane := e.GetOrCreateLane(id, "volume")

	batch := &BatchOp{Ops: []Op{
		&AddPointOp{ParamID: id, Point: NewPoint(100, 0.1)},
		&AddPointOp{ParamID: id, Point: NewPoint(200, 0.2)},
	}}
	batch.Apply(e)
	e.History().Push(batch)

	if len(lane.Points) != 2 {
		t.Fatal("batch apply should insert both points")
	}
	e.History().Undo(e)
	if len(lane.Points) != 0 {
		t.Error("batch undo should remove both points")
	}
}

func TestBetweennessProperty(t *testing.T) {
	// For monotone curves, any value inside a segment lies between
	// the bracketing point values.
	monotone := []CurveType{CurveLinear, CurveSmooth, CurveSCurve, CurveExponential, CurveLogarithmic}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("segment values stay between endpoints", prop.ForAll(
		func(v0, v1, tFrac float64, curveIdx int, tension float64) bool {
			curve := monotone[curveIdx%len(monotone)]
			p1 := NewPoint(0, v0).WithCurve(curve).WithTension(tension*2 - 1)
			p2 := NewPoint(1000, v1)

			got := interpolate(p1, p2, tFrac)
			lo, hi := v0, v1
			if lo > hi {
				lo, hi = hi, lo
			}
			return got >= lo-1e-9 && got <= hi+1e-9
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 4),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
