// Package spsc implements the fixed-slot, lock-free single-producer/
// single-consumer ring that carries UDP transmit work off the main
// pipeline context. Head/tail are published with atomic load/store acting
// as the acquire/release fences: the producer stores into a slot then
// publishes tail, the consumer never reads a slot until it has observed
// the producer's tail update.
package spsc

import (
	"sync/atomic"

	"github.com/wingbridge/corepipeline/internal/constants"
)

type slot struct {
	data [constants.SPSCSlotCapacity]byte
	n    int
}

// Queue is a fixed-capacity ring of byte records. Exactly one goroutine may
// call Enqueue and exactly one (possibly different) goroutine may call
// Dequeue; this is an invariant of construction, not enforced at runtime.
type Queue struct {
	slots [constants.SPSCSlots]slot
	head  atomic.Uint32 // next slot the consumer will read
	tail  atomic.Uint32 // next slot the producer will write
}

// New constructs an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue copies p into the next free slot. It fails and returns false when
// the queue is full or p exceeds a slot's capacity; the caller counts this
// as a drop.
func (q *Queue) Enqueue(p []byte) bool {
	if len(p) > constants.SPSCSlotCapacity {
		return false
	}
	tail := q.tail.Load()
	head := q.head.Load()
	if tail-head >= constants.SPSCSlots {
		return false
	}

	s := &q.slots[tail%constants.SPSCSlots]
	s.n = copy(s.data[:], p)
	q.tail.Store(tail + 1)
	return true
}

// Dequeue copies the oldest record into dst, returning the number of bytes
// copied. It returns 0 when the queue is empty.
func (q *Queue) Dequeue(dst []byte) int {
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return 0
	}

	s := &q.slots[head%constants.SPSCSlots]
	n := copy(dst, s.data[:s.n])
	q.head.Store(head + 1)
	return n
}

// Len reports the number of queued-but-undrained records. It is advisory:
// the producer and consumer may race to change it the instant after it is
// read.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}
