package sender

import (
	"sync"
	"time"

	"github.com/wingbridge/corepipeline/internal/interfaces"
)

const (
	udpBatchMTU      = 1500
	udpBatchDeadline = 2 * time.Millisecond
)

// ringEnqueuer is the producer side of the SPSC handoff; satisfied by
// *spsc.Queue.
type ringEnqueuer interface {
	Enqueue(p []byte) bool
}

// UDPSender enqueues packet bytes into the SPSC ring that hands transmit
// work to the UDP transmitter running on the other core. Optional batching
// aggregates multiple packets into one ring entry up to udpBatchMTU or
// udpBatchDeadline, whichever comes first.
type UDPSender struct {
	q        *queue
	ring     ringEnqueuer
	observer interfaces.Observer
	logger   interfaces.Logger

	batching bool

	mu            sync.Mutex
	pending       []byte
	pendingCount  int
	pendingSince  time.Time
	coalesced     uint64
	batchesSent   uint64
	batchByteSum  uint64
}

// NewUDPSender constructs the Device4 UDP sender. batching enables the
// aggregation described in spec.md §4.6. queueDepth/queueBytes size the
// backing queue; either being <= 0 falls back to the package default.
func NewUDPSender(ring ringEnqueuer, batching bool, queueDepth, queueBytes int, observer interfaces.Observer, logger interfaces.Logger) *UDPSender {
	return &UDPSender{q: newQueue(queueDepth, queueBytes), ring: ring, batching: batching, observer: observer, logger: logger}
}

func (s *UDPSender) GetName() string       { return "UDP" }
func (s *UDPSender) IsReady() bool         { return true }
func (s *UDPSender) GetQueueDepth() uint32 { return s.q.depth() }
func (s *UDPSender) GetMaxQueueDepth() uint32 {
	_, _, m := s.q.stats()
	return m
}
func (s *UDPSender) GetSentCount() uint64 {
	sent, _, _ := s.q.stats()
	return sent
}
func (s *UDPSender) GetDroppedCount() uint64 {
	_, dropped, _ := s.q.stats()
	return dropped
}

func (s *UDPSender) Enqueue(p interfaces.ParsedPacket) bool {
	ok := s.q.enqueue(p)
	if !ok && s.observer != nil {
		s.observer.ObservePacketDropped(s.GetName())
	}
	if s.observer != nil {
		s.observer.ObserveQueueDepth(s.GetName(), s.q.depth())
	}
	above, below := s.q.checkWarnThreshold()
	if above && s.logger != nil {
		s.logger.Warnf("%s: queue depth crossed warning threshold", s.GetName())
	}
	if below && s.logger != nil {
		s.logger.Infof("%s: queue depth recovered below warning threshold", s.GetName())
	}
	return ok
}

func (s *UDPSender) ProcessSendQueue(bulkMode bool) {
	drained := 0
	for {
		p, ok := s.q.popFront()
		if !ok {
			break
		}
		if !s.handle(p.Payload) {
			s.q.requeueFront(p)
			break
		}
		s.q.recordSent()
		drained++
		if !bulkMode || drained >= s.q.maxDepth {
			break
		}
	}
	s.flushExpired(time.Now())
}

func (s *UDPSender) handle(payload []byte) bool {
	if !s.batching {
		return s.ring.Enqueue(payload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		s.pendingSince = time.Now()
	}
	if len(s.pending)+len(payload) > udpBatchMTU {
		if !s.flushLocked() {
			return false
		}
		s.pendingSince = time.Now()
	}
	s.pending = append(s.pending, payload...)
	s.pendingCount++
	if len(s.pending) >= udpBatchMTU {
		return s.flushLocked()
	}
	return true
}

// flushExpired flushes a pending batch once the aggregation deadline has
// elapsed, even if it never reached MTU.
func (s *UDPSender) flushExpired(now time.Time) {
	if !s.batching {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 && now.Sub(s.pendingSince) >= udpBatchDeadline {
		s.flushLocked()
	}
}

// flushLocked pushes the pending batch as one ring entry; caller holds mu.
func (s *UDPSender) flushLocked() bool {
	if len(s.pending) == 0 {
		return true
	}
	if !s.ring.Enqueue(s.pending) {
		return false
	}
	if s.pendingCount > 1 {
		s.coalesced += uint64(s.pendingCount - 1)
	}
	s.batchesSent++
	s.batchByteSum += uint64(len(s.pending))
	s.pending = s.pending[:0]
	s.pendingCount = 0
	return true
}

// BatchStats reports coalesced packets, batches emitted, and average batch
// size in bytes, exposed for spec.md §4.6's batching stats.
func (s *UDPSender) BatchStats() (coalesced, batches uint64, avgBatchBytes float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchesSent == 0 {
		return s.coalesced, s.batchesSent, 0
	}
	return s.coalesced, s.batchesSent, float64(s.batchByteSum) / float64(s.batchesSent)
}

var _ Sender = (*UDPSender)(nil)
