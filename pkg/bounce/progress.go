package bounce

// Progress reports the state of a running render.
type Progress struct {
	TotalSamples     uint64  `json:"total_samples"`
	ProcessedSamples uint64  `json:"processed_samples"`
	Percent          float32 `json:"percent"`
	EtaSecs          float32 `json:"eta_secs"`
	SpeedFactor      float32 `json:"speed_factor"`
	PeakLevel        float32 `json:"peak_level"`
	IsComplete       bool    `json:"is_complete"`
	WasCancelled     bool    `json:"was_cancelled"`
}

// ProgressFunc receives progress snapshots during a render.
type ProgressFunc func(Progress)

// update recomputes the derived fields from the processed count and
// wall-clock time.
func (p *Progress) update(processed uint64, elapsedSecs float32, sourceRate uint32) {
	p.ProcessedSamples = processed
	if p.TotalSamples > 0 {
		p.Percent = float32(processed) / float32(p.TotalSamples) * 100
	}

	if elapsedSecs > 0 && processed > 0 && sourceRate > 0 {
		realtime := float32(processed) / float32(sourceRate)
		p.SpeedFactor = realtime / elapsedSecs

		perSec := float32(processed) / elapsedSecs
		remaining := p.TotalSamples - processed
		if perSec > 0 {
			p.EtaSecs = float32(remaining) / perSec
		}
	}
}
