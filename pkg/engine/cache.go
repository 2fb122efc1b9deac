package engine

import (
	"sync"

	"github.com/Bojan20/reelforge/pkg/importer"
)

// AudioCache maps source paths to decoded audio. The editor thread
// inserts after import; play commands resolve clips here before they
// are enqueued, so the audio thread never touches the map.
type AudioCache struct {
	mu      sync.RWMutex
	entries map[string]*importer.ImportedAudio
}

// NewAudioCache creates an empty cache.
func NewAudioCache() *AudioCache {
	return &AudioCache{entries: make(map[string]*importer.ImportedAudio)}
}

// Insert stores decoded audio under its source path.
func (c *AudioCache) Insert(path string, audio *importer.ImportedAudio) {
	c.mu.Lock()
	c.entries[path] = audio
	c.mu.Unlock()
}

// Get returns the decoded audio for a path, or nil.
func (c *AudioCache) Get(path string) *importer.ImportedAudio {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[path]
}

// Remove drops one entry.
func (c *AudioCache) Remove(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *AudioCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*importer.ImportedAudio)
	c.mu.Unlock()
}

// Len returns the number of cached files.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
