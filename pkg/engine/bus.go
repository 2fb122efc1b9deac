package engine

import (
	"math"
	"sync/atomic"

	"github.com/Bojan20/reelforge/pkg/dsp/analysis"
	"github.com/Bojan20/reelforge/pkg/param"
	"github.com/Bojan20/reelforge/pkg/state"
)

// The six fixed buses.
const (
	BusMaster   = 0
	BusMusic    = 1
	BusSfx      = 2
	BusVoice    = 3
	BusAmbience = 4
	BusAux      = 5
	// NumBuses is the fixed bus count.
	NumBuses = 6
)

// MaxBusVolume caps bus and master gain.
const MaxBusVolume = 1.5

// meterWindowMs is the RMS/correlation window.
const meterWindowMs = 50.0

// atomicFloat stores a float64 behind a uint64 for cross-thread reads.
type atomicFloat struct {
	bits atomic.Uint64
}

func (a *atomicFloat) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

func (a *atomicFloat) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

// busStrip is one bus's control state, smoothers and meters. Control
// atomics are written by any thread; smoothers and meters are owned
// by the audio thread, which publishes readings back through atomics.
type busStrip struct {
	volume   atomicFloat
	panLeft  atomicFloat
	panRight atomicFloat
	muted    atomic.Bool
	soloed   atomic.Bool

	volSmooth  param.Smoother
	panLSmooth param.Smoother
	panRSmooth param.Smoother

	peakL       *analysis.PeakMeter
	peakR       *analysis.PeakMeter
	rmsL        *analysis.RMSMeter
	rmsR        *analysis.RMSMeter
	correlation *analysis.CorrelationMeter

	meterPeakL atomicFloat
	meterPeakR atomicFloat
	meterRmsL  atomicFloat
	meterRmsR  atomicFloat
	meterCorr  atomicFloat
}

func (b *busStrip) init(sampleRate float64) {
	window := int(meterWindowMs / 1000 * sampleRate)
	b.volume.Store(1)
	b.volSmooth = *param.NewSmoother(1, sampleRate, param.DefaultSmoothingMs)
	b.panLSmooth = *param.NewSmoother(0, sampleRate, param.DefaultSmoothingMs)
	b.panRSmooth = *param.NewSmoother(0, sampleRate, param.DefaultSmoothingMs)
	b.peakL = analysis.NewPeakMeter(sampleRate)
	b.peakR = analysis.NewPeakMeter(sampleRate)
	b.rmsL = analysis.NewRMSMeter(window)
	b.rmsR = analysis.NewRMSMeter(window)
	b.correlation = analysis.NewCorrelationMeter(window)
	b.meterCorr.Store(1)
}

// meter runs the block through the meters and publishes readings.
func (b *busStrip) meter(left, right []float32) {
	b.meterPeakL.Store(b.peakL.Process(left))
	b.meterPeakR.Store(b.peakR.Process(right))
	b.meterRmsL.Store(b.rmsL.Process(left))
	b.meterRmsR.Store(b.rmsR.Process(right))
	b.meterCorr.Store(b.correlation.Process(left, right))
}

// readMeter returns the published meter snapshot.
func (b *busStrip) readMeter() state.TrackMeter {
	return state.TrackMeter{
		PeakL:       b.meterPeakL.Load(),
		PeakR:       b.meterPeakR.Load(),
		RmsL:        b.meterRmsL.Load(),
		RmsR:        b.meterRmsR.Load(),
		Correlation: b.meterCorr.Load(),
	}
}

// readState returns the published control state.
func (b *busStrip) readState() state.BusState {
	return state.BusState{
		Volume:   b.volume.Load(),
		Pan:      b.panLeft.Load(),
		PanRight: b.panRight.Load(),
		Muted:    b.muted.Load(),
		Soloed:   b.soloed.Load(),
	}
}

// busAudible applies the mute/solo precedence for one bus given
// whether any bus is soloed. The master bus ignores its own flags.
func busAudible(bus int, muted, soloed, anySolo bool) bool {
	if bus == BusMaster {
		return true
	}
	if anySolo {
		return soloed && !muted
	}
	return !muted
}
