package param

import (
	"math"
	"testing"
)

func TestSmootherConverges(t *testing.T) {
	s := NewSmoother(0, 48000, 5)
	s.SetTarget(1)

	prev := 0.0
	for i := 0; i < 100; i++ {
		v := s.Next()
		if v < prev {
			t.Fatal("value should be non-decreasing toward the target")
		}
		if v > 1 {
			t.Fatal("value should not overshoot")
		}
		prev = v
	}

	// 5 ms at 48 kHz is 240 samples; well within 1000 the smoother
	// should settle.
	for i := 0; i < 1000; i++ {
		s.Next()
	}
	if s.IsSmoothing() {
		t.Error("smoother should have settled")
	}
	if s.Value() != 1 {
		t.Errorf("settled value should be exactly the target, got %f", s.Value())
	}
}

func TestSmootherTinyChangeSnaps(t *testing.T) {
	s := NewSmoother(0.5, 48000, 5)
	s.SetTarget(0.50001)
	if s.IsSmoothing() {
		t.Error("sub-threshold change should snap, not smooth")
	}
}

func TestSmootherBlockAdvance(t *testing.T) {
	perSample := NewSmoother(0, 48000, 5)
	block := NewSmoother(0, 48000, 5)
	perSample.SetTarget(1)
	block.SetTarget(1)

	for i := 0; i < 64; i++ {
		perSample.Next()
	}
	block.NextBlock(64)

	if math.Abs(perSample.Value()-block.Value()) > 1e-9 {
		t.Errorf("block advance should match per-sample: %f vs %f",
			perSample.Value(), block.Value())
	}
}

func TestSmootherReset(t *testing.T) {
	s := NewSmoother(0, 48000, 5)
	s.SetTarget(1)
	s.Next()
	s.Reset(0.25)
	if s.Value() != 0.25 || s.IsSmoothing() {
		t.Error("reset should jump and stop")
	}
}

func TestBank(t *testing.T) {
	b := NewBank(4, 1.0, 48000, 5)
	if b.Len() != 4 {
		t.Fatalf("expected 4 smoothers, got %d", b.Len())
	}

	b.SetTarget(2, 0.0)
	b.NextBlock(48000) // a full second settles everything
	if b.Value(2) != 0 {
		t.Errorf("smoother 2 should have reached 0, got %f", b.Value(2))
	}
	if b.Value(0) != 1 {
		t.Errorf("untouched smoother should stay at 1, got %f", b.Value(0))
	}

	// Out-of-range access is silent.
	b.SetTarget(99, 0.5)
	if b.Value(99) != 0 {
		t.Error("out-of-range value should be 0")
	}
	if b.At(-1) != nil {
		t.Error("negative index should return nil")
	}
}

func TestIDEquality(t *testing.T) {
	a := TrackVolume(3)
	b := TrackVolume(3)
	if a != b {
		t.Error("identical ids should be equal")
	}
	if TrackVolume(3) == TrackPan(3) {
		t.Error("different names should differ")
	}
	if PluginParam(1, 0, "freq") == PluginParam(1, 1, "freq") {
		t.Error("different slots should differ")
	}

	m := map[ID]int{a: 1}
	if m[b] != 1 {
		t.Error("ids should work as map keys")
	}
}
