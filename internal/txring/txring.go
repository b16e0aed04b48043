// Package txring implements the UART1 TX service: a process-wide ring
// buffer that every flow targeting UART1 converges into, so UART1's
// transmissions stay in one FIFO regardless of which flow or core produced
// them.
package txring

import (
	"sync"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
)

// Ring is the UART1 TX service. It is fed from multiple producing contexts
// (the orchestrator pass, a UDP receive callback on another core) and
// drained only from the main pipeline context via ProcessTxQueue.
type Ring struct {
	mu           sync.Mutex
	buf          []byte
	head, tail   int
	size         int
	droppedBytes uint64

	disabled bool
}

// New constructs a ring of the given capacity. When disabled is true (the
// D1_SBUS_IN role has no use for a UART1 TX path), Enqueue and
// ProcessTxQueue become no-ops and no backing array is allocated, saving
// the memory the original firmware notes as unnecessary for that role.
func New(capacity int, disabled bool) *Ring {
	if disabled {
		return &Ring{disabled: true}
	}
	if capacity <= 0 {
		capacity = constants.DefaultUART1TxRingSize
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Enqueue appends p to the ring. On overflow it evicts the oldest bytes
// needed to make room, counting the eviction as droppedBytes, rather than
// rejecting the write outright.
func (r *Ring) Enqueue(p []byte) {
	if r.disabled || len(p) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ringCap := len(r.buf)
	if len(p) > ringCap {
		// Only the trailing window that could ever survive matters.
		dropped := len(p) - ringCap
		r.droppedBytes += uint64(dropped)
		p = p[dropped:]
	}

	free := ringCap - r.size
	if need := len(p) - free; need > 0 {
		r.evict(need)
	}

	for _, b := range p {
		r.buf[r.tail] = b
		r.tail = (r.tail + 1) % ringCap
	}
	r.size += len(p)
}

// evict drops n oldest bytes to make room; caller holds r.mu.
func (r *Ring) evict(n int) {
	if n > r.size {
		n = r.size
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	r.droppedBytes += uint64(n)
}

// ProcessTxQueue drains up to constants.UART1TxMaxWritePerCall bytes into
// transport, copying them (across the wrap point if needed) into one slice
// and issuing a single Write. It is a no-op for a disabled ring.
func (r *Ring) ProcessTxQueue(transport interfaces.Transport) (written int) {
	if r.disabled {
		return 0
	}

	r.mu.Lock()
	if r.size == 0 {
		r.mu.Unlock()
		return 0
	}

	limit := constants.UART1TxMaxWritePerCall
	avail := transport.AvailableForWrite()
	if avail < limit {
		limit = avail
	}
	if limit <= 0 {
		r.mu.Unlock()
		return 0
	}
	n := r.size
	if n > limit {
		n = limit
	}

	ringCap := len(r.buf)
	seg := make([]byte, n)
	for i := 0; i < n; i++ {
		seg[i] = r.buf[(r.head+i)%ringCap]
	}
	r.mu.Unlock()

	w, err := transport.Write(seg)
	if err != nil || w <= 0 {
		return 0
	}

	r.mu.Lock()
	r.head = (r.head + w) % ringCap
	r.size -= w
	r.mu.Unlock()
	return w
}

// DroppedBytes reports the cumulative count of bytes evicted on overflow.
func (r *Ring) DroppedBytes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.droppedBytes
}

// Depth reports the number of bytes currently queued.
func (r *Ring) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
