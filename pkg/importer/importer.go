// Package importer decodes audio files into the engine's in-memory
// sample format. Codec work is delegated to go-audio/wav and
// tphakala/flac; decode failures surface as ImportError and leave all
// other state untouched.
package importer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
	"go.uber.org/zap"
)

// MaxChannels bounds the accepted channel count.
const MaxChannels = 8

// ImportedAudio is the decoded-audio surface the engine consumes.
// Samples are interleaved float32 normalized to [-1, 1].
type ImportedAudio struct {
	Samples      []float32
	SampleRate   uint32
	Channels     uint8
	DurationSecs float64
	// SampleCount is frames per channel.
	SampleCount uint64
	SourcePath  string
	Name        string
	BitDepth    uint32
	Format      string
}

// ImportError wraps a decode failure with its source path.
type ImportError struct {
	Path string
	Msg  string
	Err  error
}

// Error implements error.
func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import %s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("import %s: %s", e.Path, e.Msg)
}

// Unwrap exposes the cause.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedFormat marks files no decoder claims.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Importer decodes audio files. Safe for editor-thread use only.
type Importer struct {
	log *zap.Logger
}

// New creates an importer. A nil logger disables logging.
func New(log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{log: log}
}

// Import decodes a file by extension.
func (im *Importer) Import(path string) (*ImportedAudio, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return im.importWav(path)
	case ".flac":
		return im.importFlac(path)
	default:
		return nil, &ImportError{Path: path, Msg: "unsupported extension", Err: ErrUnsupportedFormat}
	}
}

func (im *Importer) importWav(path string) (*ImportedAudio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ImportError{Path: path, Msg: "open failed", Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &ImportError{Path: path, Msg: "not a valid WAV file"}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &ImportError{Path: path, Msg: "decode failed", Err: err}
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, &ImportError{Path: path, Msg: "empty WAV buffer"}
	}
	if buf.Format.NumChannels > MaxChannels {
		return nil, &ImportError{Path: path,
			Msg: fmt.Sprintf("too many channels (%d > %d)", buf.Format.NumChannels, MaxChannels)}
	}

	bitDepth := uint32(dec.BitDepth)
	scale := float64(int64(1) << (bitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(clampUnit(float64(v) / scale))
	}

	audio := &ImportedAudio{
		Samples:    samples,
		SampleRate: uint32(buf.Format.SampleRate),
		Channels:   uint8(buf.Format.NumChannels),
		BitDepth:   bitDepth,
		SourcePath: path,
		Name:       filepath.Base(path),
		Format:     "wav",
	}
	audio.finish()

	im.log.Info("imported audio",
		zap.String("path", path),
		zap.Uint32("sample_rate", audio.SampleRate),
		zap.Uint8("channels", audio.Channels),
		zap.Float64("duration_secs", audio.DurationSecs))
	return audio, nil
}

func (im *Importer) importFlac(path string) (*ImportedAudio, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, &ImportError{Path: path, Msg: "FLAC parse failed", Err: err}
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels > MaxChannels {
		return nil, &ImportError{Path: path,
			Msg: fmt.Sprintf("too many channels (%d > %d)", info.NChannels, MaxChannels)}
	}

	channels := int(info.NChannels)
	scale := float64(int64(1) << (info.BitsPerSample - 1))
	var samples []float32

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ImportError{Path: path, Msg: "FLAC frame decode failed", Err: err}
		}

		n := int(frame.Subframes[0].NSamples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				v := float64(frame.Subframes[ch].Samples[i]) / scale
				samples = append(samples, float32(clampUnit(v)))
			}
		}
	}

	audio := &ImportedAudio{
		Samples:    samples,
		SampleRate: info.SampleRate,
		Channels:   info.NChannels,
		BitDepth:   uint32(info.BitsPerSample),
		SourcePath: path,
		Name:       filepath.Base(path),
		Format:     "flac",
	}
	audio.finish()

	im.log.Info("imported audio",
		zap.String("path", path),
		zap.Uint32("sample_rate", audio.SampleRate),
		zap.Uint8("channels", audio.Channels))
	return audio, nil
}

// FromSamples wraps raw interleaved samples as ImportedAudio; used by
// tests and by the MIDI renderer.
func FromSamples(name string, samples []float32, sampleRate uint32, channels uint8) *ImportedAudio {
	audio := &ImportedAudio{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
		SourcePath: name,
		Name:       name,
		BitDepth:   32,
		Format:     "pcm",
	}
	audio.finish()
	return audio
}

func (a *ImportedAudio) finish() {
	ch := uint64(a.Channels)
	if ch == 0 {
		ch = 1
		a.Channels = 1
	}
	a.SampleCount = uint64(len(a.Samples)) / ch
	if a.SampleRate > 0 {
		a.DurationSecs = float64(a.SampleCount) / float64(a.SampleRate)
	}
}

// Frame returns the sample of one channel at a frame index, 0 when
// out of range.
func (a *ImportedAudio) Frame(frame uint64, channel uint8) float32 {
	if frame >= a.SampleCount || channel >= a.Channels {
		return 0
	}
	return a.Samples[frame*uint64(a.Channels)+uint64(channel)]
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
