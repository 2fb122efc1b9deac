// Package bounce renders timeline state offline through a processor
// chain and writes the result to disk. Encoding is delegated to codec
// libraries (go-audio/wav, tphakala/flac); MP3 encoding is a runtime
// registration point.
package bounce

// AudioFormat is the output container.
type AudioFormat int

const (
	// FormatWav is RIFF/WAVE
	FormatWav AudioFormat = iota
	// FormatFlac is FLAC
	FormatFlac
	// FormatMp3 is MPEG-1 Layer III (requires a registered encoder)
	FormatMp3
)

// String returns the file extension without the dot.
func (f AudioFormat) String() string {
	switch f {
	case FormatFlac:
		return "flac"
	case FormatMp3:
		return "mp3"
	default:
		return "wav"
	}
}

// BitDepth is the output sample format.
type BitDepth int

const (
	// Depth16 is 16-bit integer PCM
	Depth16 BitDepth = iota
	// Depth24 is 24-bit integer PCM
	Depth24
	// Depth32 is 32-bit integer PCM
	Depth32
	// DepthFloat32 is 32-bit IEEE float (WAV only)
	DepthFloat32
	// DepthFloat64 is 64-bit IEEE float (WAV only)
	DepthFloat64
)

// Bits returns the bit width.
func (d BitDepth) Bits() uint32 {
	switch d {
	case Depth24:
		return 24
	case Depth32, DepthFloat32:
		return 32
	case DepthFloat64:
		return 64
	default:
		return 16
	}
}

// IsFloat reports IEEE-float depths.
func (d BitDepth) IsFloat() bool {
	return d == DepthFloat32 || d == DepthFloat64
}

// DitherType selects the dither noise distribution.
type DitherType int

const (
	// DitherNone disables dithering
	DitherNone DitherType = iota
	// DitherRectangular is RPDF (one uniform noise source)
	DitherRectangular
	// DitherTriangular is TPDF (sum of two uniform sources)
	DitherTriangular
	// DitherNoiseShaped is TPDF with error-feedback noise shaping
	DitherNoiseShaped
)

// NoiseShapeType selects the error-feedback curve. Shaping applies
// only with DitherNoiseShaped.
type NoiseShapeType int

const (
	// ShapeNone disables shaping
	ShapeNone NoiseShapeType = iota
	// ShapeModifiedE is a gentle E-weighted curve
	ShapeModifiedE
	// ShapeImprovedE pushes harder into high frequencies
	ShapeImprovedE
	// ShapeFWeighted follows a psychoacoustic F-weighting
	ShapeFWeighted
)

// ResampleQuality selects the sample rate converter.
type ResampleQuality int

const (
	// ResampleLanczos is the Kaiser-windowed Lanczos-3 sinc converter
	ResampleLanczos ResampleQuality = iota
	// ResampleLinear is cheap linear interpolation
	ResampleLinear
)

// Mp3Bitrates are the accepted CBR rates in kbps.
var Mp3Bitrates = []uint32{96, 112, 128, 160, 192, 224, 256, 320}

// ValidMp3Bitrate reports whether a CBR rate is supported.
func ValidMp3Bitrate(kbps uint32) bool {
	for _, b := range Mp3Bitrates {
		if b == kbps {
			return true
		}
	}
	return false
}

// ExportFormat describes the rendered output.
type ExportFormat struct {
	Format     AudioFormat     `yaml:"format" json:"format"`
	SampleRate uint32          `yaml:"sample_rate" json:"sample_rate"` // 0 = source rate
	BitDepth   BitDepth        `yaml:"bit_depth" json:"bit_depth"`
	Dither     DitherType      `yaml:"dither" json:"dither"`
	NoiseShape NoiseShapeType  `yaml:"noise_shape" json:"noise_shape"`
	Resample   ResampleQuality `yaml:"resample" json:"resample"`

	Normalize       bool    `yaml:"normalize" json:"normalize"`
	NormalizeTarget float64 `yaml:"normalize_target" json:"normalize_target"` // dBFS
	AllowClip       bool    `yaml:"allow_clip" json:"allow_clip"`

	// BitrateKbps is the MP3 CBR rate.
	BitrateKbps uint32 `yaml:"bitrate_kbps" json:"bitrate_kbps"`
}

// CDQuality is 44.1 kHz / 16-bit with shaped dither.
func CDQuality() ExportFormat {
	return ExportFormat{
		Format:          FormatWav,
		SampleRate:      44100,
		BitDepth:        Depth16,
		Dither:          DitherNoiseShaped,
		NoiseShape:      ShapeModifiedE,
		NormalizeTarget: -0.3,
	}
}

// HiRes is 96 kHz / 24-bit.
func HiRes() ExportFormat {
	return ExportFormat{
		Format:          FormatWav,
		SampleRate:      96000,
		BitDepth:        Depth24,
		Dither:          DitherTriangular,
		NormalizeTarget: -0.3,
	}
}

// Mp3Distribution is 44.1 kHz / 320 kbps.
func Mp3Distribution() ExportFormat {
	return ExportFormat{
		Format:          FormatMp3,
		SampleRate:      44100,
		BitDepth:        Depth16,
		Dither:          DitherTriangular,
		BitrateKbps:     320,
		NormalizeTarget: -1.0,
	}
}

// Mastered is a normalized 48 kHz / 24-bit master.
func Mastered() ExportFormat {
	return ExportFormat{
		Format:          FormatWav,
		SampleRate:      48000,
		BitDepth:        Depth24,
		Dither:          DitherTriangular,
		Normalize:       true,
		NormalizeTarget: -0.3,
	}
}

// Region is the timeline range to render.
type Region struct {
	StartSamples uint64  `yaml:"start_samples" json:"start_samples"`
	EndSamples   uint64  `yaml:"end_samples" json:"end_samples"`
	IncludeTail  bool    `yaml:"include_tail" json:"include_tail"`
	TailSecs     float64 `yaml:"tail_secs" json:"tail_secs"`
}

// Config drives one offline render.
type Config struct {
	Region           Region       `yaml:"region" json:"region"`
	Format           ExportFormat `yaml:"format" json:"format"`
	OutputPath       string       `yaml:"output_path" json:"output_path"`
	BlockSize        int          `yaml:"block_size" json:"block_size"`
	SourceSampleRate uint32       `yaml:"source_sample_rate" json:"source_sample_rate"`
	NumChannels      int          `yaml:"num_channels" json:"num_channels"`
}

// DefaultBlockSize is used when the config leaves BlockSize zero.
const DefaultBlockSize = 512

// normalized returns the config with defaults applied.
func (c Config) normalized() Config {
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.NumChannels <= 0 {
		c.NumChannels = 2
	}
	if c.SourceSampleRate == 0 {
		c.SourceSampleRate = 48000
	}
	return c
}
