package timeline

import (
	"sort"
	"strings"
)

// Folder organizes pool entries for display.
type Folder struct {
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	ParentID *uint64  `json:"parent_id,omitempty"`
	ClipIDs  []ClipID `json:"clip_ids"`
}

// Pool owns all audio and MIDI source material. Clips are interned by
// the editor thread after import and evicted only by RemoveUnused.
// IDs come from a single monotonic counter shared by both clip kinds.
type Pool struct {
	AudioClips map[ClipID]*AudioClip `json:"audio_clips"`
	MidiClips  map[ClipID]*MidiClip  `json:"midi_clips"`
	Folders    []Folder              `json:"folders"`

	NextClipID ClipID `json:"next_clip_id"`
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		AudioClips: make(map[ClipID]*AudioClip),
		MidiClips:  make(map[ClipID]*MidiClip),
		NextClipID: 1,
	}
}

func (p *Pool) allocID() ClipID {
	id := p.NextClipID
	p.NextClipID++
	return id
}

// AddAudioClip interns an audio clip and returns its assigned ID.
func (p *Pool) AddAudioClip(clip AudioClip) ClipID {
	clip.ID = p.allocID()
	p.AudioClips[clip.ID] = &clip
	return clip.ID
}

// AddMidiClip interns a MIDI clip and returns its assigned ID.
func (p *Pool) AddMidiClip(clip MidiClip) ClipID {
	clip.ID = p.allocID()
	p.MidiClips[clip.ID] = &clip
	return clip.ID
}

// AudioClip returns the clip for an ID, or nil.
func (p *Pool) AudioClip(id ClipID) *AudioClip {
	return p.AudioClips[id]
}

// MidiClip returns the clip for an ID, or nil.
func (p *Pool) MidiClip(id ClipID) *MidiClip {
	return p.MidiClips[id]
}

// RemoveUnused evicts every clip with a zero usage count and returns
// the evicted IDs sorted ascending.
func (p *Pool) RemoveUnused() []ClipID {
	var evicted []ClipID

	for id, c := range p.AudioClips {
		if c.UsageCount == 0 {
			evicted = append(evicted, id)
			delete(p.AudioClips, id)
		}
	}
	for id, c := range p.MidiClips {
		if c.UsageCount == 0 {
			evicted = append(evicted, id)
			delete(p.MidiClips, id)
		}
	}

	sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })
	return evicted
}

// FindByName returns IDs of clips whose name contains the query,
// case-insensitively, sorted ascending.
func (p *Pool) FindByName(query string) []ClipID {
	query = strings.ToLower(query)
	var ids []ClipID

	for id, c := range p.AudioClips {
		if strings.Contains(strings.ToLower(c.Name), query) {
			ids = append(ids, id)
		}
	}
	for id, c := range p.MidiClips {
		if strings.Contains(strings.ToLower(c.Name), query) {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddFolder creates a pool folder and returns its ID.
func (p *Pool) AddFolder(name string, parentID *uint64) uint64 {
	id := uint64(len(p.Folders) + 1)
	p.Folders = append(p.Folders, Folder{ID: id, Name: name, ParentID: parentID})
	return id
}

func (p *Pool) retainAudio(id ClipID) {
	if c := p.AudioClips[id]; c != nil {
		c.UsageCount++
	}
}

func (p *Pool) releaseAudio(id ClipID) {
	if c := p.AudioClips[id]; c != nil && c.UsageCount > 0 {
		c.UsageCount--
	}
}

func (p *Pool) retainMidi(id ClipID) {
	if c := p.MidiClips[id]; c != nil {
		c.UsageCount++
	}
}

func (p *Pool) releaseMidi(id ClipID) {
	if c := p.MidiClips[id]; c != nil && c.UsageCount > 0 {
		c.UsageCount--
	}
}
