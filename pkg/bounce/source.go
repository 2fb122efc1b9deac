package bounce

import (
	"github.com/Bojan20/reelforge/pkg/engine"
)

// Source supplies audio to the offline renderer block by block, using
// the same content contract the audio thread sees.
type Source interface {
	// Channels returns the channel count (1 or 2).
	Channels() int
	// ReadBlock fills dst (one slice per channel, equal lengths)
	// with audio starting at the absolute frame position.
	ReadBlock(start uint64, dst [][]float64)
}

// BufferSource renders from planar in-memory audio; silence past the
// end.
type BufferSource struct {
	Data [][]float64
}

// Channels implements Source.
func (b *BufferSource) Channels() int {
	return len(b.Data)
}

// Frames returns the source length.
func (b *BufferSource) Frames() uint64 {
	if len(b.Data) == 0 {
		return 0
	}
	return uint64(len(b.Data[0]))
}

// ReadBlock implements Source.
func (b *BufferSource) ReadBlock(start uint64, dst [][]float64) {
	for ch := range dst {
		for i := range dst[ch] {
			frame := start + uint64(i)
			if ch < len(b.Data) && frame < uint64(len(b.Data[ch])) {
				dst[ch][i] = b.Data[ch][frame]
			} else {
				dst[ch][i] = 0
			}
		}
	}
}

// EngineSource drives a quiesced engine's callback deterministically.
// The engine must not be attached to a live audio device while the
// bounce runs; the renderer owns its transport.
type EngineSource struct {
	Engine *engine.Engine

	outL []float32
	outR []float32
	inL  []float32
	inR  []float32
}

// NewEngineSource wraps an engine for offline rendering.
func NewEngineSource(e *engine.Engine) *EngineSource {
	return &EngineSource{Engine: e}
}

// Channels implements Source; engine output is stereo.
func (s *EngineSource) Channels() int {
	return 2
}

// ReadBlock seeks the engine transport and pulls one callback block.
func (s *EngineSource) ReadBlock(start uint64, dst [][]float64) {
	n := len(dst[0])
	if cap(s.outL) < n {
		s.outL = make([]float32, n)
		s.outR = make([]float32, n)
		s.inL = make([]float32, n)
		s.inR = make([]float32, n)
	}
	outL := s.outL[:n]
	outR := s.outR[:n]

	if s.Engine.PositionSamples() != start {
		s.Engine.Seek(start)
	}
	s.Engine.Process(outL, outR, s.inL[:n], s.inR[:n], start)

	for i := 0; i < n; i++ {
		dst[0][i] = float64(outL[i])
		if len(dst) > 1 {
			dst[1][i] = float64(outR[i])
		}
	}
}
