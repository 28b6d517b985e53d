package mqtt

import (
	"log"

	"github.com/sweeney/heater-node/internal/core"
)

// ringBuffer is a fixed-capacity FIFO of inbound commands waiting for the
// next tick boundary. When full, the oldest command is dropped: arbitration
// is last-writer-wins, so the newest commands matter most.
// Not safe for concurrent use; the Inbox holds the lock.
type ringBuffer struct {
	buf      []core.Command
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any command was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]core.Command, capacity),
		capacity: capacity,
	}
}

// push appends cmd and reports whether an older command was dropped.
func (r *ringBuffer) push(cmd core.Command) bool {
	if r.count == r.capacity {
		if !r.overflow {
			log.Printf("mqtt: command queue full (%d commands), dropping oldest", r.capacity)
			r.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = cmd
		r.head = (r.head + 1) % r.capacity
		return true
	}
	r.buf[r.head] = cmd
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

func (r *ringBuffer) drainAll() []core.Command {
	if r.count == 0 {
		return nil
	}

	result := make([]core.Command, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
