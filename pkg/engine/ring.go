package engine

import (
	"sync/atomic"
)

// CommandRingCapacity is the bounded command queue size. Must be a
// power of two.
const CommandRingCapacity = 256

// commandRing is a bounded lock-free MPMC queue (Vyukov-style
// sequence ring). Producers are any thread; the audio thread drains
// at block boundaries. On overflow the oldest command is discarded so
// producers never block.
type commandRing struct {
	cells      []ringCell
	mask       uint64
	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
	dropped    atomic.Uint64
}

type ringCell struct {
	sequence atomic.Uint64
	cmd      command
}

// newCommandRing creates a ring with the given power-of-two capacity.
func newCommandRing(capacity int) *commandRing {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		capacity = CommandRingCapacity
	}
	r := &commandRing{
		cells: make([]ringCell, capacity),
		mask:  uint64(capacity - 1),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// Push enqueues a command. When the ring is full the oldest entry is
// dropped to make room; Push itself never blocks or fails.
func (r *commandRing) Push(cmd command) {
	for {
		pos := r.enqueuePos.Load()
		cell := &r.cells[pos&r.mask]
		seq := cell.sequence.Load()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if r.enqueuePos.CompareAndSwap(pos, pos+1) {
				cell.cmd = cmd
				cell.sequence.Store(pos + 1)
				return
			}
		case diff < 0:
			// Full: discard the oldest command and retry.
			if _, ok := r.Pop(); ok {
				r.dropped.Add(1)
			}
		default:
			// Another producer raced us; reload.
		}
	}
}

// Pop dequeues one command. Returns false when the ring is empty.
func (r *commandRing) Pop() (command, bool) {
	for {
		pos := r.dequeuePos.Load()
		cell := &r.cells[pos&r.mask]
		seq := cell.sequence.Load()
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if r.dequeuePos.CompareAndSwap(pos, pos+1) {
				cmd := cell.cmd
				cell.cmd = command{}
				cell.sequence.Store(pos + r.mask + 1)
				return cmd, true
			}
		case diff < 0:
			return command{}, false
		default:
			// Racing consumer advanced past us; reload.
		}
	}
}

// Dropped returns how many commands overflow has discarded.
func (r *commandRing) Dropped() uint64 {
	return r.dropped.Load()
}
