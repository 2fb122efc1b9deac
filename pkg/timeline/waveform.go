package timeline

// WaveformLod is one level of the waveform peak pyramid.
type WaveformLod struct {
	SamplesPerPeak uint32    `json:"samples_per_peak"`
	MinPeaks       []float32 `json:"min_peaks"`
	MaxPeaks       []float32 `json:"max_peaks"`
}

// WaveformData is a multi-resolution min/max peak pyramid built once
// at import. Levels use power-of-four spacing (64/256/1024/4096
// samples per peak); peaks are interleaved per channel.
type WaveformData struct {
	Levels       []WaveformLod `json:"levels"`
	SampleRate   uint32        `json:"sample_rate"`
	TotalSamples uint64        `json:"total_samples"`
}

var lodSizes = [...]uint32{64, 256, 1024, 4096}

// BuildWaveform computes the LOD pyramid from interleaved samples.
func BuildWaveform(samples []float32, channels uint8, sampleRate uint32) *WaveformData {
	if channels == 0 {
		channels = 1
	}

	levels := make([]WaveformLod, 0, len(lodSizes))
	for _, spp := range lodSizes {
		levels = append(levels, buildLod(samples, channels, spp))
	}

	return &WaveformData{
		Levels:       levels,
		SampleRate:   sampleRate,
		TotalSamples: uint64(len(samples)) / uint64(channels),
	}
}

func buildLod(samples []float32, channels uint8, samplesPerPeak uint32) WaveformLod {
	ch := int(channels)
	frame := int(samplesPerPeak) * ch
	numPeaks := 0
	if frame > 0 {
		numPeaks = len(samples) / frame
	}

	minPeaks := make([]float32, 0, numPeaks*ch)
	maxPeaks := make([]float32, 0, numPeaks*ch)

	for peak := 0; peak < numPeaks; peak++ {
		for c := 0; c < ch; c++ {
			start := peak*frame + c
			end := start + frame
			if end > len(samples) {
				end = len(samples)
			}

			minVal := float32(0)
			maxVal := float32(0)
			first := true
			for i := start; i < end; i += ch {
				s := samples[i]
				if first {
					minVal, maxVal = s, s
					first = false
					continue
				}
				if s < minVal {
					minVal = s
				}
				if s > maxVal {
					maxVal = s
				}
			}

			minPeaks = append(minPeaks, minVal)
			maxPeaks = append(maxPeaks, maxVal)
		}
	}

	return WaveformLod{
		SamplesPerPeak: samplesPerPeak,
		MinPeaks:       minPeaks,
		MaxPeaks:       maxPeaks,
	}
}

// Lod picks the coarsest level whose samples-per-peak does not exceed
// the requested samples-per-pixel zoom.
func (w *WaveformData) Lod(samplesPerPixel uint32) *WaveformLod {
	if len(w.Levels) == 0 {
		return nil
	}
	if samplesPerPixel < lodSizes[0] {
		samplesPerPixel = lodSizes[0]
	}

	var best *WaveformLod
	for i := range w.Levels {
		if w.Levels[i].SamplesPerPeak <= samplesPerPixel {
			best = &w.Levels[i]
		}
	}
	if best == nil {
		best = &w.Levels[0]
	}
	return best
}
