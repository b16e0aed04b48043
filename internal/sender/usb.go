package sender

import "github.com/wingbridge/corepipeline/internal/interfaces"

// usbMTU bounds a single USB bulk transfer; larger packets are split across
// multiple writes.
const usbMTU = 512

// USBSender wraps an adaptive-batching USB interface, splitting packets
// larger than the endpoint MTU across multiple writes.
type USBSender struct {
	transport interfaces.Transport
	q         *queue
	observer  interfaces.Observer
	logger    interfaces.Logger
}

// NewUSBSender constructs the Device2=USB sender. queueDepth/queueBytes
// size the backing queue; either being <= 0 falls back to the package
// default.
func NewUSBSender(transport interfaces.Transport, queueDepth, queueBytes int, observer interfaces.Observer, logger interfaces.Logger) *USBSender {
	return &USBSender{transport: transport, q: newQueue(queueDepth, queueBytes), observer: observer, logger: logger}
}

func (s *USBSender) GetName() string           { return "USB" }
func (s *USBSender) IsReady() bool             { return s.transport.Connected() }
func (s *USBSender) GetQueueDepth() uint32     { return s.q.depth() }
func (s *USBSender) GetMaxQueueDepth() uint32 {
	_, _, m := s.q.stats()
	return m
}
func (s *USBSender) GetSentCount() uint64 {
	sent, _, _ := s.q.stats()
	return sent
}
func (s *USBSender) GetDroppedCount() uint64 {
	_, dropped, _ := s.q.stats()
	return dropped
}

func (s *USBSender) Enqueue(p interfaces.ParsedPacket) bool {
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

func (s *USBSender) ProcessSendQueue(bulkMode bool) {
	drained := 0
	for {
		p, ok := s.q.popFront()
		if !ok {
			return
		}
		if rest, done := s.writeSplit(p.Payload); !done {
			p.Payload = rest
			s.q.requeueFront(p)
			return
		}
		s.q.recordSent()
		drained++
		if !bulkMode || drained >= s.q.maxDepth {
			return
		}
	}
}

// writeSplit writes payload in usbMTU-sized chunks. On a mid-payload
// failure it returns the unsent suffix (not yet written) and false, so the
// caller requeues only what's left instead of retransmitting the prefix
// that already made it out.
func (s *USBSender) writeSplit(payload []byte) (rest []byte, done bool) {
	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > usbMTU {
			chunk = chunk[:usbMTU]
		}
		if s.transport.AvailableForWrite() < len(chunk) {
			return payload, false
		}
		n, err := s.transport.Write(chunk)
		if err != nil || n < len(chunk) {
			return payload, false
		}
		if s.observer != nil {
			s.observer.ObserveTXBytes(interfaces.PhysUSB, uint64(n))
		}
		payload = payload[len(chunk):]
	}
	return nil, true
}

var _ Sender = (*USBSender)(nil)
