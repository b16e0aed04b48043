package bridge

import (
	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/sbusrouter"
)

// transportSink adapts a raw Transport to sbusrouter.Sink: the SBUS router
// writes synchronously, bypassing the general sender queue entirely, so a
// sink is just "write these 25 bytes now."
type transportSink struct {
	name      string
	transport interfaces.Transport
}

func (s transportSink) Name() string { return s.name }

func (s transportSink) WriteSBUSFrame(frame [constants.SBUSFrameSize]byte) error {
	_, err := s.transport.Write(frame[:])
	return err
}

// RegisterSBUSSinks wires the SBUS_Output and SBUS_UDP_Output table rows:
// these aren't parse/distribute flows (SBUS bypasses the sender queue
// entirely per spec.md §4.9), they're output sinks registered once with the
// process-wide SBUS router.
func RegisterSBUSSinks(cfg Config, tr Transports, router *sbusrouter.Router) {
	router.Configure(toArbitrationMode(cfg.SBUSFailsafeMode), sbusrouter.SourceDevice1)

	switch cfg.Device2 {
	case Device2SBUSOut:
		if tr.UART2 != nil {
			router.RegisterSink(transportSink{name: "UART2", transport: tr.UART2})
		}
	}
	switch cfg.Device3 {
	case Device3SBUSOut:
		if tr.UART3 != nil {
			router.RegisterSink(transportSink{name: "UART3", transport: tr.UART3})
		}
	}
	if cfg.Device4 == Device4SBUSUDPTx && tr.UDP != nil {
		router.RegisterSink(transportSink{name: "UDP", transport: tr.UDP})
	}
}

func toArbitrationMode(m SBUSArbitrationMode) sbusrouter.ArbitrationMode {
	if m == SBUSManual {
		return sbusrouter.ModeManual
	}
	return sbusrouter.ModeAuto
}
