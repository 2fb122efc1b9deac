// Package param provides parameter identity and smoothing for the
// engine's automatable parameters.
package param

// TargetType says what kind of object a parameter belongs to.
type TargetType int

const (
	// TargetTrack is a mixer track parameter
	TargetTrack TargetType = iota
	// TargetBus is one of the six engine buses
	TargetBus
	// TargetMaster is the master channel
	TargetMaster
	// TargetPlugin is a plugin parameter in an insert slot
	TargetPlugin
	// TargetSend is a send level
	TargetSend
	// TargetClip is a clip parameter (event gain etc.)
	TargetClip
)

// ID identifies one automatable parameter. Two IDs are equal iff all
// fields are equal, so ID is usable as a map key.
type ID struct {
	TargetID   uint64     `json:"target_id"`
	TargetType TargetType `json:"target_type"`
	Name       string     `json:"name"`
	// PluginSlot distinguishes insert slots for TargetPlugin IDs.
	PluginSlot uint32 `json:"plugin_slot"`
}

// TrackVolume returns the volume parameter ID of a track.
func TrackVolume(trackID uint64) ID {
	return ID{TargetID: trackID, TargetType: TargetTrack, Name: "volume"}
}

// TrackPan returns the pan parameter ID of a track.
func TrackPan(trackID uint64) ID {
	return ID{TargetID: trackID, TargetType: TargetTrack, Name: "pan"}
}

// TrackMute returns the mute parameter ID of a track.
func TrackMute(trackID uint64) ID {
	return ID{TargetID: trackID, TargetType: TargetTrack, Name: "mute"}
}

// BusVolume returns the volume parameter ID of a bus.
func BusVolume(busID uint64) ID {
	return ID{TargetID: busID, TargetType: TargetBus, Name: "volume"}
}

// MasterVolume returns the master volume parameter ID.
func MasterVolume() ID {
	return ID{TargetType: TargetMaster, Name: "volume"}
}

// PluginParam returns a plugin parameter ID for a track insert slot.
func PluginParam(trackID uint64, slot uint32, name string) ID {
	return ID{TargetID: trackID, TargetType: TargetPlugin, Name: name, PluginSlot: slot}
}

// SendLevel returns the send level parameter ID of a track send slot.
func SendLevel(trackID uint64, slot uint32) ID {
	return ID{TargetID: trackID, TargetType: TargetSend, Name: "send", PluginSlot: slot}
}
