package bounce

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Bojan20/reelforge/pkg/processor"
)

// sineSource builds a stereo buffer source with a 440 Hz tone.
func sineSource(frames int, amp float64) *BufferSource {
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		v := amp * math.Sin(2*math.Pi*440*float64(i)/48000)
		left[i] = v
		right[i] = v
	}
	return &BufferSource{Data: [][]float64{left, right}}
}

func testConfig(t *testing.T, frames int) Config {
	t.Helper()
	return Config{
		Region:           Region{StartSamples: 0, EndSamples: uint64(frames)},
		Format:           ExportFormat{Format: FormatWav, BitDepth: Depth16, Dither: DitherTriangular},
		OutputPath:       filepath.Join(t.TempDir(), "out.wav"),
		BlockSize:        512,
		SourceSampleRate: 48000,
		NumChannels:      2,
	}
}

func TestRenderWritesWav(t *testing.T) {
	cfg := testConfig(t, 4800)
	r := NewRenderer(cfg, nil)

	path, err := r.Render(sineSource(4800, 0.5), nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	// 4800 frames * 2ch * 2 bytes plus header.
	if info.Size() < 19200 {
		t.Errorf("output file too small: %d bytes", info.Size())
	}

	p := r.Progress()
	if !p.IsComplete || p.WasCancelled {
		t.Errorf("progress should be complete: %+v", p)
	}
	if p.ProcessedSamples != 4800 {
		t.Errorf("expected 4800 processed samples, got %d", p.ProcessedSamples)
	}
	if p.PeakLevel < 0.4 || p.PeakLevel > 0.6 {
		t.Errorf("peak should be near 0.5, got %f", p.PeakLevel)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	cfg := testConfig(t, 2400)
	cfg.Format.Dither = DitherNoiseShaped
	cfg.Format.NoiseShape = ShapeFWeighted

	render := func(name string) []byte {
		c := cfg
		c.OutputPath = filepath.Join(t.TempDir(), name)
		if _, err := NewRenderer(c, nil).Render(sineSource(2400, 0.5), nil); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(c.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	a := render("a.wav")
	b := render("b.wav")
	if len(a) != len(b) {
		t.Fatal("renders differ in size")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders differ at byte %d", i)
		}
	}
}

func TestRenderNormalize(t *testing.T) {
	cfg := testConfig(t, 4800)
	cfg.Format.Normalize = true
	cfg.Format.NormalizeTarget = -6
	// Raising a quiet source needs gain above unity.
	cfg.Format.AllowClip = true
	cfg.Format.Dither = DitherNone

	r := NewRenderer(cfg, nil)
	if _, err := r.Render(sineSource(4800, 0.1), nil); err != nil {
		t.Fatal(err)
	}

	want := math.Pow(10, -6.0/20)
	if p := float64(r.Progress().PeakLevel); math.Abs(p-want) > 0.01 {
		t.Errorf("normalized peak should be %f, got %f", want, p)
	}
}

func TestNormalizeWithoutClipCapsGain(t *testing.T) {
	cfg := testConfig(t, 4800)
	cfg.Format.Normalize = true
	cfg.Format.NormalizeTarget = 0
	cfg.Format.AllowClip = false
	cfg.Format.Dither = DitherNone

	// The source peaks at 0.9, below the 0 dBFS target: without
	// AllowClip the gain is capped at unity instead of boosting.
	r := NewRenderer(cfg, nil)
	if _, err := r.Render(sineSource(4800, 0.9), nil); err != nil {
		t.Fatal(err)
	}
	if p := float64(r.Progress().PeakLevel); p > 0.91 {
		t.Errorf("gain should cap at unity, peak %f", p)
	}
}

func TestRenderThroughLimiter(t *testing.T) {
	cfg := testConfig(t, 9600)
	cfg.Format.Dither = DitherNone

	chain := processor.NewChain(processor.NewLimiter(48000, -6))
	r := NewRenderer(cfg, nil)
	if _, err := r.Render(sineSource(9600, 1.0), chain); err != nil {
		t.Fatal(err)
	}

	// Sample peaks can exceed the detector ceiling by the 0.1 dB
	// tolerance plus attack overshoot at the start.
	limit := math.Pow(10, -5.5/20)
	if p := float64(r.Progress().PeakLevel); p > limit {
		t.Errorf("limited render peak %f exceeds %f", p, limit)
	}
}

func TestRenderCancellation(t *testing.T) {
	cfg := testConfig(t, 480000)
	r := NewRenderer(cfg, nil)

	blocks := 0
	r.SetProgressFunc(func(p Progress) {
		blocks++
		if blocks == 3 {
			r.Cancel()
		}
	})

	_, err := r.Render(sineSource(48000, 0.5), nil)
	if err == nil {
		t.Fatal("cancelled render should fail")
	}
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !r.Progress().WasCancelled {
		t.Error("progress should record cancellation")
	}
	// No partial file is left behind.
	if _, statErr := os.Stat(cfg.OutputPath); !os.IsNotExist(statErr) {
		t.Error("cancelled render must not leave an output file")
	}
}

func TestRenderResample(t *testing.T) {
	cfg := testConfig(t, 48000)
	cfg.Format.SampleRate = 96000
	cfg.Format.Dither = DitherNone

	r := NewRenderer(cfg, nil)
	if _, err := r.Render(sineSource(48000, 0.5), nil); err != nil {
		t.Fatal(err)
	}
	// Doubling the rate roughly doubles the file size.
	info, err := os.Stat(cfg.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() < 350000 {
		t.Errorf("96k render suspiciously small: %d bytes", info.Size())
	}
}

func TestEmptyRegionFails(t *testing.T) {
	cfg := testConfig(t, 0)
	_, err := NewRenderer(cfg, nil).Render(sineSource(100, 0.5), nil)
	var be *BounceError
	if !errors.As(err, &be) {
		t.Fatalf("empty region should be a BounceError, got %v", err)
	}
}

func TestMp3FallsBackToWav(t *testing.T) {
	cfg := testConfig(t, 4800)
	cfg.Format.Format = FormatMp3
	cfg.Format.BitrateKbps = 320
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.mp3")

	path, err := NewRenderer(cfg, nil).Render(sineSource(4800, 0.5), nil)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(path) != ".wav" {
		t.Errorf("unregistered MP3 should fall back to WAV, got %s", path)
	}
}

func TestMp3BitrateValidation(t *testing.T) {
	for _, b := range Mp3Bitrates {
		if !ValidMp3Bitrate(b) {
			t.Errorf("bitrate %d should be valid", b)
		}
	}
	for _, b := range []uint32{64, 100, 321} {
		if ValidMp3Bitrate(b) {
			t.Errorf("bitrate %d should be invalid", b)
		}
	}
}

func TestDithererShapes(t *testing.T) {
	d := NewDitherer(DitherTriangular, ShapeNone, 2)

	// Dither noise is bounded by one quantization step either side.
	step := 1.0 / float64(uint64(1)<<15)
	for i := 0; i < 1000; i++ {
		out := d.Process(0.25, 0, Depth16)
		if math.Abs(out-0.25) > step*1.5 {
			t.Fatalf("dither noise too large: %f", out-0.25)
		}
	}

	// Float depths bypass dithering entirely.
	if d.Process(0.123456789, 0, DepthFloat32) != 0.123456789 {
		t.Error("float targets must pass through untouched")
	}

	// Noise-shaped output is quantized to the step grid.
	ns := NewDitherer(DitherNoiseShaped, ShapeModifiedE, 1)
	out := ns.Process(0.2501, 0, Depth16)
	if rem := math.Mod(out/step, 1); rem > 1e-6 && rem < 1-1e-6 {
		t.Errorf("noise-shaped output should land on the grid, got %f", out)
	}
}

func TestLinearResampler(t *testing.T) {
	r := NewResampler(48000, 24000, 1, ResampleLinear)

	in := [][]float64{make([]float64, 480)}
	for i := range in[0] {
		in[0][i] = float64(i)
	}
	out := [][]float64{nil}
	out = r.Process(in, out)

	// Downsampling by 2 should roughly halve the frame count.
	if len(out[0]) < 235 || len(out[0]) > 245 {
		t.Errorf("expected ~240 frames, got %d", len(out[0]))
	}
	// And preserve the ramp's slope (doubled per output frame).
	if math.Abs(out[0][10]-out[0][9]-2) > 0.01 {
		t.Errorf("resampled ramp slope wrong: %f", out[0][10]-out[0][9])
	}
}

func TestSincResamplerPreservesTone(t *testing.T) {
	r := NewResampler(48000, 44100, 1, ResampleLanczos)

	var out [][]float64 = [][]float64{nil}
	in := [][]float64{make([]float64, 512)}
	pos := 0
	for block := 0; block < 20; block++ {
		for i := range in[0] {
			in[0][i] = 0.5 * math.Sin(2*math.Pi*1000*float64(pos)/48000)
			pos++
		}
		out = r.Process(in, out)
	}

	// Expect roughly 20*512*44100/48000 frames.
	want := float64(20*512) * 44100 / 48000
	if got := float64(len(out[0])); math.Abs(got-want) > 64 {
		t.Errorf("expected ~%0.f frames, got %0.f", want, got)
	}

	// Amplitude survives (steady-state region).
	peak := 0.0
	for _, v := range out[0][1000:5000] {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak < 0.45 || peak > 0.55 {
		t.Errorf("resampled peak should stay near 0.5, got %f", peak)
	}
}

func TestStemExport(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, 4800)

	se := NewStemExporter(cfg, nil)
	se.AddStem("drums", filepath.Join(dir, "drums.wav"), sineSource(4800, 0.3))
	se.AddStem("bass", filepath.Join(dir, "bass.wav"), sineSource(4800, 0.4))

	paths, err := se.ExportAll()
	if err != nil {
		t.Fatalf("stem export failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("stem file missing: %s", p)
		}
	}
}
