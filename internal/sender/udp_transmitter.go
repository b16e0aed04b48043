package sender

import (
	"context"
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
)

// UDPTransmitter is the sole consumer of the UDP SPSC ring, modelling
// spec.md §5's independent Core 0 task: it owns the transport and drains
// whatever the pipeline-side UDPSender produced, entirely off the main
// orchestrator goroutine.
type UDPTransmitter struct {
	ring      ringReader
	transport interfaces.Transport
	observer  interfaces.Observer
}

type ringReader interface {
	Dequeue(dst []byte) int
}

// NewUDPTransmitter constructs the consumer side of the SPSC handoff.
func NewUDPTransmitter(ring ringReader, transport interfaces.Transport, observer interfaces.Observer) *UDPTransmitter {
	return &UDPTransmitter{ring: ring, transport: transport, observer: observer}
}

// Run drains the ring until ctx is cancelled, sleeping briefly between
// empty polls so it doesn't spin a core.
func (t *UDPTransmitter) Run(ctx context.Context) {
	buf := make([]byte, constants.SPSCSlotCapacity)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n := t.ring.Dequeue(buf)
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		w, err := t.transport.Write(buf[:n])
		if err == nil && w > 0 && t.observer != nil {
			t.observer.ObserveTXBytes(interfaces.PhysUDP, uint64(w))
		}
	}
}
