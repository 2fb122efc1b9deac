// Package state defines the observable state read by UI and scripting
// and the serializable project container.
package state

// TransportState is the transport snapshot published by the engine.
type TransportState struct {
	IsPlaying       bool    `json:"is_playing"`
	IsRecording     bool    `json:"is_recording"`
	PositionSamples uint64  `json:"position_samples"`
	PositionSeconds float64 `json:"position_seconds"`
	Tempo           float64 `json:"tempo"`
	LoopEnabled     bool    `json:"loop_enabled"`
	LoopStart       uint64  `json:"loop_start"`
	LoopEnd         uint64  `json:"loop_end"`
}

// TrackMeter is one channel strip's meter readout.
type TrackMeter struct {
	PeakL       float64 `json:"peak_l"`
	PeakR       float64 `json:"peak_r"`
	RmsL        float64 `json:"rms_l"`
	RmsR        float64 `json:"rms_r"`
	Correlation float64 `json:"correlation"`
}

// SourceCounts breaks voice counts down by playback source.
type SourceCounts struct {
	Daw        int `json:"daw"`
	SlotLab    int `json:"slotlab"`
	Middleware int `json:"middleware"`
	Browser    int `json:"browser"`
}

// BusCounts breaks voice counts down by bus.
type BusCounts struct {
	Master   int `json:"master"`
	Music    int `json:"music"`
	Sfx      int `json:"sfx"`
	Voice    int `json:"voice"`
	Ambience int `json:"ambience"`
	Aux      int `json:"aux"`
}

// VoicePoolStats is the voice pool snapshot.
type VoicePoolStats struct {
	ActiveCount     int          `json:"active_count"`
	MaxVoices       int          `json:"max_voices"`
	LoopingCount    int          `json:"looping_count"`
	PerSourceCounts SourceCounts `json:"per_source_counts"`
	PerBusCounts    BusCounts    `json:"per_bus_counts"`
}

// BusState is one bus's control state.
type BusState struct {
	Volume   float64 `json:"volume"`
	Pan      float64 `json:"pan"`
	PanRight float64 `json:"pan_right"`
	Muted    bool    `json:"muted"`
	Soloed   bool    `json:"soloed"`
}
