package state

import (
	"encoding/json"

	"github.com/Bojan20/reelforge/pkg/automation"
	"github.com/Bojan20/reelforge/pkg/tempo"
	"github.com/Bojan20/reelforge/pkg/timeline"
)

// Project is the serializable container of all editor-owned entities.
// The encoding here is JSON, but nothing outside this package depends
// on that choice; Encode/Decode guarantee a field-exact round trip.
type Project struct {
	Name      string            `json:"name"`
	TempoMap  *tempo.Map        `json:"tempo_map"`
	Pool      *timeline.Pool    `json:"pool"`
	Events    *timeline.Manager `json:"events"`
	Lanes     []automation.Lane `json:"lanes"`
	BusStates [6]BusState       `json:"bus_states"`
}

// NewProject creates an empty project at the given sample rate.
func NewProject(name string, sampleRate uint32) *Project {
	pool := timeline.NewPool()
	p := &Project{
		Name:     name,
		TempoMap: tempo.NewMap(sampleRate),
		Pool:     pool,
		Events:   timeline.NewManager(pool),
	}
	for i := range p.BusStates {
		p.BusStates[i] = BusState{Volume: 1}
	}
	return p
}

// Encode serializes the project.
func (p *Project) Encode() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Decode restores a project and re-links derived state (the event
// manager's pool binding, the tempo map's anchor cache).
func Decode(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Pool == nil {
		p.Pool = timeline.NewPool()
	}
	if p.Events == nil {
		p.Events = timeline.NewManager(p.Pool)
	} else {
		p.Events.BindPool(p.Pool)
	}
	if p.TempoMap == nil {
		p.TempoMap = tempo.NewMap(48000)
	}
	return &p, nil
}

// ExportLanes captures every automation lane from an engine.
func (p *Project) ExportLanes(e *automation.Engine) {
	p.Lanes = p.Lanes[:0]
	for _, id := range e.LaneIDs() {
		if lane := e.ExportLane(id); lane != nil {
			p.Lanes = append(p.Lanes, *lane)
		}
	}
}

// ImportLanes installs the project's lanes into an engine.
func (p *Project) ImportLanes(e *automation.Engine) {
	for _, lane := range p.Lanes {
		e.ImportLane(lane)
	}
}
