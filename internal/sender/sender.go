// Package sender implements the egress side of the pipeline: each sender
// owns a queue of parsed packets and drains it into its transport every
// pipeline pass. Variants differ in how they drain (direct DMA write, MTU
// splitting, SPSC-ring handoff) but share one queue/metrics contract.
package sender

import (
	"sync"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/spsc"
	"github.com/wingbridge/corepipeline/internal/txring"
)

// Sender is the contract every egress variant implements.
type Sender interface {
	Enqueue(packet interfaces.ParsedPacket) bool
	ProcessSendQueue(bulkMode bool)
	GetQueueDepth() uint32
	GetSentCount() uint64
	GetDroppedCount() uint64
	GetMaxQueueDepth() uint32
	GetName() string
	IsReady() bool
}

// queue is the shared drop-newest-on-full FIFO used by every variant except
// the UART1 thin wrapper (which has no local queue by design).
type queue struct {
	mu          sync.Mutex
	packets     []interfaces.ParsedPacket
	bytes       int
	maxDepth    int
	maxBytes    int
	sent        uint64
	dropped     uint64
	maxObserved uint32
	warnLatched bool
}

func newQueue(maxDepth, maxBytes int) *queue {
	if maxDepth <= 0 {
		maxDepth = constants.DefaultSenderQueueDepth
	}
	if maxBytes <= 0 {
		maxBytes = constants.DefaultSenderQueueBytes
	}
	return &queue{maxDepth: maxDepth, maxBytes: maxBytes}
}

func (q *queue) enqueue(p interfaces.ParsedPacket) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packets) >= q.maxDepth || q.bytes+len(p.Payload) > q.maxBytes {
		q.dropped++
		return false
	}
	q.packets = append(q.packets, p)
	q.bytes += len(p.Payload)
	if d := uint32(len(q.packets)); d > q.maxObserved {
		q.maxObserved = d
	}
	return true
}

// requeueFront puts a packet back at the head of the queue, used when a
// UART-style transport can't accept it this pass.
func (q *queue) requeueFront(p interfaces.ParsedPacket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.packets = append([]interfaces.ParsedPacket{p}, q.packets...)
	q.bytes += len(p.Payload)
}

func (q *queue) popFront() (interfaces.ParsedPacket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.packets) == 0 {
		return interfaces.ParsedPacket{}, false
	}
	p := q.packets[0]
	q.packets = q.packets[1:]
	q.bytes -= len(p.Payload)
	return p, true
}

func (q *queue) depth() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return uint32(len(q.packets))
}

func (q *queue) recordSent() {
	q.mu.Lock()
	q.sent++
	q.mu.Unlock()
}

func (q *queue) stats() (sent, dropped uint64, maxDepth uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sent, q.dropped, q.maxObserved
}

// checkWarnThreshold reports edge transitions across
// constants.SenderQueueWarnDepth, latched so a caller logs the WARNING (and
// its recovery) exactly once per crossing rather than every pass.
func (q *queue) checkWarnThreshold() (crossedAbove, crossedBelow bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	above := len(q.packets) > constants.SenderQueueWarnDepth
	if above && !q.warnLatched {
		q.warnLatched = true
		return true, false
	}
	if !above && q.warnLatched {
		q.warnLatched = false
		return false, true
	}
	return false, false
}

// UARTSender writes directly to a DMA-style adapter when capacity allows,
// otherwise requeues the packet at the head to preserve ordering.
type UARTSender struct {
	name      string
	transport interfaces.Transport
	q         *queue
	observer  interfaces.Observer
	logger    interfaces.Logger
}

// NewUARTSender constructs a sender for UART2/UART3 (UART1 uses
// UART1Sender instead, fronting the shared TX service). queueDepth/
// queueBytes size the backing queue; either being <= 0 falls back to the
// package default.
func NewUARTSender(name string, transport interfaces.Transport, queueDepth, queueBytes int, observer interfaces.Observer, logger interfaces.Logger) *UARTSender {
	return &UARTSender{name: name, transport: transport, q: newQueue(queueDepth, queueBytes), observer: observer, logger: logger}
}

func (s *UARTSender) GetName() string     { return s.name }
func (s *UARTSender) IsReady() bool       { return s.transport.Connected() }
func (s *UARTSender) GetQueueDepth() uint32 { return s.q.depth() }
func (s *UARTSender) GetMaxQueueDepth() uint32 {
	_, _, m := s.q.stats()
	return m
}
func (s *UARTSender) GetSentCount() uint64 {
	sent, _, _ := s.q.stats()
	return sent
}
func (s *UARTSender) GetDroppedCount() uint64 {
	_, dropped, _ := s.q.stats()
	return dropped
}

func (s *UARTSender) Enqueue(p interfaces.ParsedPacket) bool {
	ok := s.q.enqueue(p)
	s.afterEnqueue(ok)
	return ok
}

func (s *UARTSender) afterEnqueue(ok bool) {
	if !ok && s.observer != nil {
		s.observer.ObservePacketDropped(s.name)
	}
	if s.observer != nil {
		s.observer.ObserveQueueDepth(s.name, s.q.depth())
	}
	s.emitWarnings()
}

func (s *UARTSender) emitWarnings() {
	above, below := s.q.checkWarnThreshold()
	if above && s.logger != nil {
		s.logger.Warnf("%s: queue depth crossed warning threshold", s.name)
	}
	if below && s.logger != nil {
		s.logger.Infof("%s: queue depth recovered below warning threshold", s.name)
	}
}

func (s *UARTSender) ProcessSendQueue(bulkMode bool) {
	drained := 0
	for {
		p, ok := s.q.popFront()
		if !ok {
			return
		}
		if s.transport.AvailableForWrite() < len(p.Payload) {
			s.q.requeueFront(p)
			return
		}
		n, err := s.transport.Write(p.Payload)
		if err != nil || n < len(p.Payload) {
			s.q.requeueFront(p)
			return
		}
		s.q.recordSent()
		if s.observer != nil {
			s.observer.ObserveTXBytes(physForName(s.name), uint64(n))
		}
		drained++
		if !bulkMode || drained >= s.q.maxDepth {
			return
		}
	}
}

var _ Sender = (*UARTSender)(nil)

// UART1Sender is a zero-local-queue thin wrapper in front of the shared TX
// service, so every flow targeting UART1 converges into one FIFO.
type UART1Sender struct {
	ring     *txring.Ring
	observer interfaces.Observer
}

// NewUART1Sender wraps an already-constructed TX ring.
func NewUART1Sender(ring *txring.Ring, observer interfaces.Observer) *UART1Sender {
	return &UART1Sender{ring: ring, observer: observer}
}

func (s *UART1Sender) GetName() string         { return "UART1" }
func (s *UART1Sender) IsReady() bool           { return true }
func (s *UART1Sender) GetQueueDepth() uint32   { return uint32(s.ring.Depth()) }
func (s *UART1Sender) GetMaxQueueDepth() uint32 { return 0 }
func (s *UART1Sender) GetSentCount() uint64    { return 0 }
func (s *UART1Sender) GetDroppedCount() uint64 { return s.ring.DroppedBytes() }

func (s *UART1Sender) Enqueue(p interfaces.ParsedPacket) bool {
	s.ring.Enqueue(p.Payload)
	return true
}

// ProcessSendQueue is a no-op: the shared TX ring is drained once per pass
// by the pipeline orchestrator calling Ring.ProcessTxQueue directly, not
// per-flow.
func (s *UART1Sender) ProcessSendQueue(bulkMode bool) {}

var _ Sender = (*UART1Sender)(nil)

func physForName(name string) interfaces.PhysicalInterface {
	switch name {
	case "UART1":
		return interfaces.PhysUART1
	case "UART2":
		return interfaces.PhysUART2
	case "UART3":
		return interfaces.PhysUART3
	case "USB":
		return interfaces.PhysUSB
	case "UDP":
		return interfaces.PhysUDP
	default:
		return interfaces.PhysNone
	}
}
