package tempo

import (
	"encoding/json"
)

// mapJSON is the serialized shape of a Map. The anchor cache is
// derived state and is rebuilt on decode.
type mapJSON struct {
	Events     []Event          `json:"events"`
	Signatures []SignatureEvent `json:"signatures"`
	SampleRate uint32           `json:"sample_rate"`
}

// MarshalJSON serializes the tempo and signature events.
func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(mapJSON{
		Events:     m.events,
		Signatures: m.signatures,
		SampleRate: m.sampleRate,
	})
}

// UnmarshalJSON restores the map and rebuilds the anchor cache.
func (m *Map) UnmarshalJSON(data []byte) error {
	var js mapJSON
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}

	m.events = js.Events
	m.signatures = js.Signatures
	m.sampleRate = js.SampleRate

	if len(m.events) == 0 {
		m.events = []Event{NewEvent(0, 120)}
	}
	if len(m.signatures) == 0 {
		m.signatures = []SignatureEvent{{Bar: 0, Signature: CommonTime}}
	}
	if m.sampleRate == 0 {
		m.sampleRate = 48000
	}

	m.cacheValid = false
	m.rebuildCache()
	return nil
}
