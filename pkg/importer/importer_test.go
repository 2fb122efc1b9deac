package importer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWav writes a small 16-bit stereo WAV with a known ramp.
func writeTestWav(t *testing.T, path string, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 48000},
		SourceBitDepth: 16,
		Data:           make([]int, frames*2),
	}
	for i := 0; i < frames; i++ {
		buf.Data[i*2] = i * 16 // left ramp
		buf.Data[i*2+1] = -i * 16
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestImportWav(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ramp.wav")
	writeTestWav(t, path, 1000)

	im := New(nil)
	got, err := im.Import(path)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if got.SampleRate != 48000 || got.Channels != 2 {
		t.Errorf("format wrong: %d Hz %d ch", got.SampleRate, got.Channels)
	}
	if got.SampleCount != 1000 {
		t.Errorf("expected 1000 frames, got %d", got.SampleCount)
	}
	if got.Format != "wav" || got.BitDepth != 16 {
		t.Errorf("metadata wrong: %s %d", got.Format, got.BitDepth)
	}
	if got.Name != "ramp.wav" {
		t.Errorf("name should be the base name, got %s", got.Name)
	}

	// Samples normalized to [-1, 1], first frame silent.
	if got.Frame(0, 0) != 0 {
		t.Errorf("first sample should be 0, got %f", got.Frame(0, 0))
	}
	for _, s := range got.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample out of range: %f", s)
		}
	}
	if got.Frame(100, 0) <= 0 || got.Frame(100, 1) >= 0 {
		t.Error("channel ramps lost in deinterleave")
	}
}

func TestImportMissingFile(t *testing.T) {
	im := New(nil)
	_, err := im.Import("/nonexistent/file.wav")
	if err == nil {
		t.Fatal("missing file should fail")
	}
	var ie *ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("error should be an ImportError, got %T", err)
	}
}

func TestImportUnsupportedExtension(t *testing.T) {
	im := New(nil)
	_, err := im.Import("/tmp/file.xyz")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImportGarbageWav(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(path, []byte("this is not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	im := New(nil)
	if _, err := im.Import(path); err == nil {
		t.Fatal("garbage should not decode")
	}
}

func TestFromSamples(t *testing.T) {
	a := FromSamples("synth", make([]float32, 96000*2), 48000, 2)
	if a.SampleCount != 96000 {
		t.Errorf("expected 96000 frames, got %d", a.SampleCount)
	}
	if a.DurationSecs != 2.0 {
		t.Errorf("expected 2s, got %f", a.DurationSecs)
	}

	if a.Frame(96000, 0) != 0 {
		t.Error("out-of-range frame should be 0")
	}
	if a.Frame(0, 5) != 0 {
		t.Error("out-of-range channel should be 0")
	}
}
