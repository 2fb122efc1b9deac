package timeline

import (
	"sort"
)

// MinEventLength bounds the trim operations: a trim that would leave
// an event of MinEventLength samples or fewer is a no-op.
const MinEventLength = 16

// EventGroup links events for joint editing.
type EventGroup struct {
	ID       GroupID   `json:"id"`
	Name     string    `json:"name"`
	EventIDs []EventID `json:"event_ids"`
}

// Manager owns all timeline events, crossfades and groups, and keeps
// the pool's usage counts in step with the events referencing each
// clip. All mutation happens on the editor thread; the audio thread
// reads a snapshot under the engine's read lock.
type Manager struct {
	AudioEvents map[EventID]*AudioEvent `json:"audio_events"`
	MidiEvents  map[EventID]*MidiEvent  `json:"midi_events"`
	Crossfades  []Crossfade             `json:"crossfades"`
	Groups      map[GroupID]*EventGroup `json:"groups"`

	NextEventID EventID `json:"next_event_id"`
	NextGroupID GroupID `json:"next_group_id"`

	pool *Pool
}

// NewManager creates an event manager bound to a pool for usage
// tracking. The pool may be nil in tests that only need geometry.
func NewManager(pool *Pool) *Manager {
	return &Manager{
		AudioEvents: make(map[EventID]*AudioEvent),
		MidiEvents:  make(map[EventID]*MidiEvent),
		Groups:      make(map[GroupID]*EventGroup),
		NextEventID: 1,
		NextGroupID: 1,
		pool:        pool,
	}
}

// BindPool attaches the pool after deserialization.
func (m *Manager) BindPool(pool *Pool) {
	m.pool = pool
}

func (m *Manager) allocEventID() EventID {
	id := m.NextEventID
	m.NextEventID++
	return id
}

// AddAudioEvent places an event and returns its assigned ID.
func (m *Manager) AddAudioEvent(e AudioEvent) EventID {
	e.ID = m.allocEventID()
	m.AudioEvents[e.ID] = &e
	if m.pool != nil {
		m.pool.retainAudio(e.ClipID)
	}
	return e.ID
}

// AddMidiEvent places a MIDI event and returns its assigned ID.
func (m *Manager) AddMidiEvent(e MidiEvent) EventID {
	e.ID = m.allocEventID()
	m.MidiEvents[e.ID] = &e
	if m.pool != nil {
		m.pool.retainMidi(e.ClipID)
	}
	return e.ID
}

// RemoveEvent deletes an event of either kind along with any
// crossfade touching it. Unknown IDs are ignored.
func (m *Manager) RemoveEvent(id EventID) {
	if e, ok := m.AudioEvents[id]; ok {
		m.dropCrossfadesTouching(id)
		m.removeFromGroup(e.GroupID, id)
		delete(m.AudioEvents, id)
		if m.pool != nil {
			m.pool.releaseAudio(e.ClipID)
		}
		return
	}
	if e, ok := m.MidiEvents[id]; ok {
		m.removeFromGroup(e.GroupID, id)
		delete(m.MidiEvents, id)
		if m.pool != nil {
			m.pool.releaseMidi(e.ClipID)
		}
	}
}

// AudioEvent returns the event for an ID, or nil.
func (m *Manager) AudioEvent(id EventID) *AudioEvent {
	return m.AudioEvents[id]
}

// MidiEvent returns the event for an ID, or nil.
func (m *Manager) MidiEvent(id EventID) *MidiEvent {
	return m.MidiEvents[id]
}

// AudioEventsOnTrack returns the track's audio events sorted by
// position.
func (m *Manager) AudioEventsOnTrack(trackID uint64) []*AudioEvent {
	var out []*AudioEvent
	for _, e := range m.AudioEvents {
		if e.TrackID == trackID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// AudioEventsInRange returns the track's audio events overlapping
// [start, end), sorted by position.
func (m *Manager) AudioEventsInRange(trackID, start, end uint64) []*AudioEvent {
	var out []*AudioEvent
	for _, e := range m.AudioEvents {
		if e.TrackID == trackID && e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// MidiEventsOnTrack returns the track's MIDI events sorted by position.
func (m *Manager) MidiEventsOnTrack(trackID uint64) []*MidiEvent {
	var out []*MidiEvent
	for _, e := range m.MidiEvents {
		if e.TrackID == trackID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionTicks < out[j].PositionTicks })
	return out
}

// MidiEventsInRange returns the track's MIDI events overlapping the
// tick range [start, end).
func (m *Manager) MidiEventsInRange(trackID, start, end uint64) []*MidiEvent {
	var out []*MidiEvent
	for _, e := range m.MidiEvents {
		if e.TrackID == trackID && e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionTicks < out[j].PositionTicks })
	return out
}

// SplitAudioEvent splits an event at a timeline sample strictly inside
// it. The left half keeps the original ID. Returns (left, right, true)
// on success; invalid arguments are a no-op returning false.
func (m *Manager) SplitAudioEvent(id EventID, at uint64) (EventID, EventID, bool) {
	e, ok := m.AudioEvents[id]
	if !ok {
		return 0, 0, false
	}

	left, right, ok := e.split(at)
	if !ok {
		return 0, 0, false
	}

	m.dropCrossfadesTouching(id)

	*e = left
	right.ID = m.allocEventID()
	m.AudioEvents[right.ID] = &right
	if m.pool != nil {
		m.pool.retainAudio(right.ClipID)
	}

	if e.GroupID != nil {
		if g := m.Groups[*e.GroupID]; g != nil {
			g.EventIDs = append(g.EventIDs, right.ID)
		}
	}

	return e.ID, right.ID, true
}

// TrimEventStart slip-edits the event start to a new timeline
// position. Unknown IDs and invalid positions are a no-op.
func (m *Manager) TrimEventStart(id EventID, newPosition uint64) {
	if e, ok := m.AudioEvents[id]; ok && !e.Locked {
		e.trimStart(newPosition, MinEventLength)
	}
}

// TrimEventEnd moves the event end to a new timeline position.
func (m *Manager) TrimEventEnd(id EventID, newEnd uint64) {
	if e, ok := m.AudioEvents[id]; ok && !e.Locked {
		e.trimEnd(newEnd, MinEventLength)
	}
}

// FindOverlappingAudio returns pairs of overlapping audio events on a
// track, candidates for crossfades.
func (m *Manager) FindOverlappingAudio(trackID uint64) [][2]EventID {
	events := m.AudioEventsOnTrack(trackID)
	var pairs [][2]EventID
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if events[i].Overlaps(events[j].Position, events[j].End()) {
				pairs = append(pairs, [2]EventID{events[i].ID, events[j].ID})
			}
		}
	}
	return pairs
}

// CreateAutoCrossfade creates an equal-power crossfade spanning the
// overlap of two events on the same track. No-op (returns nil) when
// the events do not overlap or are on different tracks.
func (m *Manager) CreateAutoCrossfade(leftID, rightID EventID) *Crossfade {
	left := m.AudioEvents[leftID]
	right := m.AudioEvents[rightID]
	if left == nil || right == nil || left.TrackID != right.TrackID {
		return nil
	}

	overlapStart := left.Position
	if right.Position > overlapStart {
		overlapStart = right.Position
	}
	overlapEnd := left.End()
	if right.End() < overlapEnd {
		overlapEnd = right.End()
	}
	if overlapEnd <= overlapStart {
		return nil
	}

	length := overlapEnd - overlapStart
	xf := NewCrossfade(leftID, rightID, overlapStart+length/2, length)
	m.Crossfades = append(m.Crossfades, xf)
	return &m.Crossfades[len(m.Crossfades)-1]
}

// CrossfadeFor returns the crossfade whose left or right side is the
// event, or nil.
func (m *Manager) CrossfadeFor(id EventID) *Crossfade {
	for i := range m.Crossfades {
		if m.Crossfades[i].LeftEventID == id || m.Crossfades[i].RightEventID == id {
			return &m.Crossfades[i]
		}
	}
	return nil
}

// CreateGroup assigns the listed events to a new group and returns
// its ID. Events that do not exist are skipped.
func (m *Manager) CreateGroup(name string, eventIDs []EventID) GroupID {
	id := m.NextGroupID
	m.NextGroupID++

	var members []EventID
	for _, eid := range eventIDs {
		if e, ok := m.AudioEvents[eid]; ok {
			g := id
			e.GroupID = &g
			members = append(members, eid)
			continue
		}
		if e, ok := m.MidiEvents[eid]; ok {
			g := id
			e.GroupID = &g
			members = append(members, eid)
		}
	}

	m.Groups[id] = &EventGroup{ID: id, Name: name, EventIDs: members}
	return id
}

// DissolveGroup removes a group, leaving its members in place.
func (m *Manager) DissolveGroup(id GroupID) {
	g, ok := m.Groups[id]
	if !ok {
		return
	}
	for _, eid := range g.EventIDs {
		if e, ok := m.AudioEvents[eid]; ok {
			e.GroupID = nil
		}
		if e, ok := m.MidiEvents[eid]; ok {
			e.GroupID = nil
		}
	}
	delete(m.Groups, id)
}

// MoveEvents moves the listed events plus all members of any group
// they belong to by delta samples (ticks for MIDI events). Locked
// members stay; positions saturate at zero.
func (m *Manager) MoveEvents(eventIDs []EventID, delta int64) {
	seen := make(map[EventID]bool, len(eventIDs))
	queue := append([]EventID(nil), eventIDs...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		var groupID *GroupID
		if e, ok := m.AudioEvents[id]; ok {
			groupID = e.GroupID
		} else if e, ok := m.MidiEvents[id]; ok {
			groupID = e.GroupID
		}
		if groupID != nil {
			if g := m.Groups[*groupID]; g != nil {
				queue = append(queue, g.EventIDs...)
			}
		}
	}

	for id := range seen {
		if e, ok := m.AudioEvents[id]; ok && !e.Locked {
			e.Position = saturatingAdd(e.Position, delta)
		}
		if e, ok := m.MidiEvents[id]; ok && !e.Locked {
			e.PositionTicks = saturatingAdd(e.PositionTicks, delta)
		}
	}
}

func (m *Manager) dropCrossfadesTouching(id EventID) {
	kept := m.Crossfades[:0]
	for _, xf := range m.Crossfades {
		if xf.LeftEventID != id && xf.RightEventID != id {
			kept = append(kept, xf)
		}
	}
	m.Crossfades = kept
}

func (m *Manager) removeFromGroup(groupID *GroupID, id EventID) {
	if groupID == nil {
		return
	}
	g, ok := m.Groups[*groupID]
	if !ok {
		return
	}
	kept := g.EventIDs[:0]
	for _, eid := range g.EventIDs {
		if eid != id {
			kept = append(kept, eid)
		}
	}
	g.EventIDs = kept
}

func saturatingAdd(pos uint64, delta int64) uint64 {
	if delta >= 0 {
		return pos + uint64(delta)
	}
	neg := uint64(-delta)
	if neg > pos {
		return 0
	}
	return pos - neg
}
