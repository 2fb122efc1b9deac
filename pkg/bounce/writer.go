package bounce

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"
	"github.com/tphakala/flac/frame"
	"github.com/tphakala/flac/meta"
	"go.uber.org/zap"
)

// Mp3Encoder is the registration point for an external MP3 encoder.
// The core ships none; when no encoder is registered MP3 renders fall
// back to WAV.
type Mp3Encoder func(path string, data *RenderedAudio) error

var (
	mp3Mu      sync.RWMutex
	mp3Encoder Mp3Encoder
)

// RegisterMp3Encoder installs the process-wide MP3 encoder.
func RegisterMp3Encoder(enc Mp3Encoder) {
	mp3Mu.Lock()
	mp3Encoder = enc
	mp3Mu.Unlock()
}

// encode writes rendered audio in the requested format, falling back
// to WAV when the format cannot be produced. Returns the actual path
// written.
func encode(format AudioFormat, path string, data *RenderedAudio, log *zap.Logger) (string, error) {
	switch format {
	case FormatFlac:
		if err := writeFlac(path, data); err != nil {
			return "", err
		}
		return path, nil

	case FormatMp3:
		mp3Mu.RLock()
		enc := mp3Encoder
		mp3Mu.RUnlock()

		if enc != nil {
			if data.BitrateKbps != 0 && !ValidMp3Bitrate(data.BitrateKbps) {
				return "", &BounceError{Msg: "unsupported MP3 bitrate"}
			}
			if len(data.Channels) > 2 {
				return "", &BounceError{Msg: "MP3 supports at most 2 channels"}
			}
			if err := enc(path, data); err != nil {
				return "", &BounceError{Msg: "MP3 encode failed", Err: err}
			}
			return path, nil
		}

		log.Warn("no MP3 encoder registered, falling back to WAV",
			zap.String("path", path))
		wavPath := path[:len(path)-len(filepath.Ext(path))] + ".wav"
		if err := writeWav(wavPath, data); err != nil {
			return "", err
		}
		return wavPath, nil

	default:
		if err := writeWav(path, data); err != nil {
			return "", err
		}
		return path, nil
	}
}

// writeWav writes integer PCM through go-audio/wav; IEEE-float depths
// use the local float chunk writer (the library encodes PCM only).
func writeWav(path string, data *RenderedAudio) error {
	if data.BitDepth.IsFloat() {
		return writeFloatWav(path, data)
	}

	f, err := os.Create(path)
	if err != nil {
		return &BounceError{Msg: "create output file", Err: err}
	}
	defer f.Close()

	bits := int(data.BitDepth.Bits())
	channels := len(data.Channels)
	frames := data.Frames()

	enc := wav.NewEncoder(f, int(data.SampleRate), bits, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(data.SampleRate)},
		SourceBitDepth: bits,
		Data:           make([]int, frames*channels),
	}

	scale := float64(int64(1)<<(bits-1)) - 1
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := clampSample(data.Channels[ch][i])
			buf.Data[i*channels+ch] = int(math.Round(v * scale))
		}
	}

	if err := enc.Write(buf); err != nil {
		return &BounceError{Msg: "WAV write failed", Err: err}
	}
	if err := enc.Close(); err != nil {
		return &BounceError{Msg: "WAV finalize failed", Err: err}
	}
	return nil
}

// writeFloatWav writes a minimal IEEE-float RIFF file (format tag 3).
func writeFloatWav(path string, data *RenderedAudio) error {
	f, err := os.Create(path)
	if err != nil {
		return &BounceError{Msg: "create output file", Err: err}
	}
	defer f.Close()

	channels := uint16(len(data.Channels))
	frames := data.Frames()
	bits := uint16(data.BitDepth.Bits())
	bytesPerSample := uint32(bits / 8)
	dataSize := uint32(frames) * uint32(channels) * bytesPerSample
	byteRate := data.SampleRate * uint32(channels) * bytesPerSample

	var header []interface{}
	header = append(header,
		[4]byte{'R', 'I', 'F', 'F'}, uint32(36+dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '}, uint32(16),
		uint16(3), channels, data.SampleRate, byteRate,
		uint16(uint32(channels)*bytesPerSample), bits,
		[4]byte{'d', 'a', 't', 'a'}, dataSize,
	)
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return &BounceError{Msg: "WAV header write failed", Err: err}
		}
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < int(channels); ch++ {
			s := data.Channels[ch][i]
			var v interface{}
			if data.BitDepth == DepthFloat64 {
				v = s
			} else {
				v = float32(s)
			}
			if err := binary.Write(f, binary.LittleEndian, v); err != nil {
				return &BounceError{Msg: "WAV data write failed", Err: err}
			}
		}
	}
	return nil
}

// flacBlockFrames is the encoder frame size.
const flacBlockFrames = 4096

// writeFlac writes 16- or 24-bit FLAC via tphakala/flac. Other depths
// clamp to 24-bit.
func writeFlac(path string, data *RenderedAudio) error {
	bits := data.BitDepth.Bits()
	if bits != 16 && bits != 24 {
		bits = 24
	}
	channels := len(data.Channels)
	if channels < 1 || channels > 2 {
		return &BounceError{Msg: "FLAC supports 1 or 2 channels"}
	}
	frames := data.Frames()

	f, err := os.Create(path)
	if err != nil {
		return &BounceError{Msg: "create output file", Err: err}
	}
	defer f.Close()

	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockFrames,
		BlockSizeMax:  flacBlockFrames,
		SampleRate:    data.SampleRate,
		NChannels:     uint8(channels),
		BitsPerSample: uint8(bits),
		NSamples:      uint64(frames),
	}

	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		return &BounceError{Msg: "FLAC encoder init failed", Err: err}
	}

	chanLayout := frame.ChannelsMono
	if channels == 2 {
		chanLayout = frame.ChannelsLR
	}
	scale := float64(int64(1)<<(bits-1)) - 1

	for start := 0; start < frames; start += flacBlockFrames {
		n := frames - start
		if n > flacBlockFrames {
			n = flacBlockFrames
		}

		subframes := make([]*frame.Subframe, channels)
		for ch := 0; ch < channels; ch++ {
			samples := make([]int32, n)
			for i := 0; i < n; i++ {
				samples[i] = int32(math.Round(clampSample(data.Channels[ch][start+i]) * scale))
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}

		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        data.SampleRate,
				Channels:          chanLayout,
				BitsPerSample:     uint8(bits),
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(fr); err != nil {
			enc.Close()
			return &BounceError{Msg: "FLAC frame write failed", Err: err}
		}
	}

	if err := enc.Close(); err != nil {
		return &BounceError{Msg: "FLAC finalize failed", Err: err}
	}
	return nil
}

func clampSample(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
