package bounce

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Bojan20/reelforge/pkg/processor"
)

// BounceError wraps a render failure.
type BounceError struct {
	Msg string
	Err error
}

// Error implements error.
func (e *BounceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bounce: %s: %v", e.Msg, e.Err)
	}
	return "bounce: " + e.Msg
}

// Unwrap exposes the cause.
func (e *BounceError) Unwrap() error {
	return e.Err
}

// ErrCancelled marks a cooperative cancellation. No output file is
// left behind: the renderer accumulates in memory and cancellation
// happens before the file is created.
var ErrCancelled = errors.New("bounce cancelled")

// RenderedAudio is the final planar output handed to an encoder.
type RenderedAudio struct {
	Channels   [][]float64
	SampleRate uint32
	BitDepth   BitDepth
	BitrateKbps uint32
}

// Frames returns the rendered length.
func (r *RenderedAudio) Frames() int {
	if len(r.Channels) == 0 {
		return 0
	}
	return len(r.Channels[0])
}

// Renderer performs one offline render. A Renderer is single-use; the
// render is deterministic, dither included: the dither noise comes from
// a generator with the same fixed seed on every render.
type Renderer struct {
	config    Config
	progress  Progress
	progMu    sync.Mutex
	cancelled atomic.Bool
	callback  ProgressFunc
	log       *zap.Logger
}

// NewRenderer creates a renderer. A nil logger disables logging.
func NewRenderer(config Config, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := config.normalized()
	r := &Renderer{config: cfg, log: log}
	r.progress.TotalSamples = cfg.Region.EndSamples - cfg.Region.StartSamples
	return r
}

// SetProgressFunc installs a progress callback invoked once per block,
// and once more when the render completes or is cancelled.
func (r *Renderer) SetProgressFunc(fn ProgressFunc) {
	r.callback = fn
}

// Cancel requests cooperative cancellation; the render stops at the
// next block boundary.
func (r *Renderer) Cancel() {
	r.cancelled.Store(true)
}

// Progress returns the latest progress snapshot.
func (r *Renderer) Progress() Progress {
	r.progMu.Lock()
	defer r.progMu.Unlock()
	return r.progress
}

// Render pulls audio from the source, runs it through the chain,
// resamples, dithers, normalizes and writes the output file. Returns
// the written path.
func (r *Renderer) Render(source Source, chain *processor.Chain) (string, error) {
	start := time.Now()
	cfg := r.config

	channels := cfg.NumChannels
	if c := source.Channels(); c < channels {
		channels = c
	}
	if channels < 1 {
		return "", &BounceError{Msg: "source has no channels"}
	}

	startFrame := cfg.Region.StartSamples
	endFrame := cfg.Region.EndSamples
	if endFrame <= startFrame {
		return "", &BounceError{Msg: "empty render region"}
	}
	if cfg.Region.IncludeTail && cfg.Region.TailSecs > 0 {
		endFrame += uint64(cfg.Region.TailSecs * float64(cfg.SourceSampleRate))
	}

	targetRate := cfg.Format.SampleRate
	if targetRate == 0 {
		targetRate = cfg.SourceSampleRate
	}

	resampler := NewResampler(cfg.SourceSampleRate, targetRate, channels, cfg.Format.Resample)
	ditherer := NewDitherer(cfg.Format.Dither, cfg.Format.NoiseShape, channels)

	if chain != nil {
		chain.Reset()
	}

	// Block workspace.
	blockF64 := make([][]float64, channels)
	resampled := make([][]float64, channels)
	for ch := range blockF64 {
		blockF64[ch] = make([]float64, cfg.BlockSize)
	}
	left32 := make([]float32, cfg.BlockSize)
	right32 := make([]float32, cfg.BlockSize)

	output := make([][]float64, channels)
	peak := 0.0

	frame := startFrame
	processed := uint64(0)

	for frame < endFrame {
		if r.cancelled.Load() {
			r.finishProgress(func(p *Progress) { p.WasCancelled = true })
			r.log.Info("bounce cancelled", zap.Uint64("processed", processed))
			return "", &BounceError{Msg: "cancelled", Err: ErrCancelled}
		}

		n := cfg.BlockSize
		if remaining := endFrame - frame; remaining < uint64(n) {
			n = int(remaining)
		}
		for ch := range blockF64 {
			blockF64[ch] = blockF64[ch][:n]
		}

		source.ReadBlock(frame, blockF64)

		// The processor chain runs in float32 stereo like the live
		// master path.
		if chain != nil {
			for i := 0; i < n; i++ {
				left32[i] = float32(blockF64[0][i])
				if channels > 1 {
					right32[i] = float32(blockF64[1][i])
				} else {
					right32[i] = left32[i]
				}
			}
			chain.Process(left32[:n], right32[:n])
			for i := 0; i < n; i++ {
				blockF64[0][i] = float64(left32[i])
				if channels > 1 {
					blockF64[1][i] = float64(right32[i])
				}
			}
		}

		// Resample, then dither into the accumulators.
		var converted [][]float64
		if resampler != nil {
			for ch := range resampled {
				resampled[ch] = resampled[ch][:0]
			}
			converted = resampler.Process(blockF64, resampled)
		} else {
			converted = blockF64
		}

		frames := 0
		if len(converted) > 0 {
			frames = len(converted[0])
		}
		for i := 0; i < frames; i++ {
			for ch := 0; ch < channels; ch++ {
				s := ditherer.Process(converted[ch][i], ch, cfg.Format.BitDepth)
				output[ch] = append(output[ch], s)
				if a := math.Abs(s); a > peak {
					peak = a
				}
			}
		}

		frame += uint64(n)
		processed += uint64(n)

		elapsed := float32(time.Since(start).Seconds())
		r.updateProgress(processed, elapsed, float32(peak))
	}

	// Normalize toward the target peak; without AllowClip the gain
	// never exceeds unity.
	if cfg.Format.Normalize && peak > 0 {
		target := math.Pow(10, cfg.Format.NormalizeTarget/20)
		g := target / peak
		if !cfg.Format.AllowClip && g > 1 {
			g = 1
		}
		for ch := range output {
			for i := range output[ch] {
				output[ch][i] *= g
			}
		}
		peak *= g
	}

	rendered := &RenderedAudio{
		Channels:    output,
		SampleRate:  targetRate,
		BitDepth:    cfg.Format.BitDepth,
		BitrateKbps: cfg.Format.BitrateKbps,
	}

	outPath := cfg.OutputPath
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &BounceError{Msg: "create output directory", Err: err}
		}
	}

	outPath, err := encode(cfg.Format.Format, outPath, rendered, r.log)
	if err != nil {
		return "", err
	}

	r.finishProgress(func(p *Progress) {
		p.IsComplete = true
		p.PeakLevel = float32(peak)
	})
	r.log.Info("bounce complete",
		zap.String("path", outPath),
		zap.Uint64("frames", processed),
		zap.Float64("peak", peak))
	return outPath, nil
}

func (r *Renderer) updateProgress(processed uint64, elapsed, peak float32) {
	r.progMu.Lock()
	r.progress.update(processed, elapsed, r.config.SourceSampleRate)
	r.progress.PeakLevel = peak
	snapshot := r.progress
	r.progMu.Unlock()

	if r.callback != nil {
		r.callback(snapshot)
	}
}

func (r *Renderer) finishProgress(mutate func(*Progress)) {
	r.progMu.Lock()
	mutate(&r.progress)
	snapshot := r.progress
	r.progMu.Unlock()

	if r.callback != nil {
		r.callback(snapshot)
	}
}
