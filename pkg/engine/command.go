package engine

import (
	"github.com/Bojan20/reelforge/pkg/importer"
)

// commandKind discriminates ring commands.
type commandKind uint8

const (
	cmdNone commandKind = iota
	cmdPlay
	cmdStopVoice
	cmdFadeOutVoice
	cmdSetVoicePitch
	cmdStopAll
	cmdStopSource
	cmdSetActiveSection
)

// command is one entry in the ring. Clip references are resolved to
// decoded audio on the producer side so the audio thread never does a
// cache lookup.
type command struct {
	kind    commandKind
	voiceID uint64
	audio   *importer.ImportedAudio

	volume float64
	pan    float64
	bus    int
	source PlaybackSource

	looping    bool
	fadeInMs   float64
	fadeOutMs  float64
	trimStart  uint64
	trimEnd    uint64
	pitchSemis float64
	durationMs float64
}
