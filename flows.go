package bridge

import (
	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/mavrouter"
	"github.com/wingbridge/corepipeline/internal/parser"
	"github.com/wingbridge/corepipeline/internal/ringbuf"
	"github.com/wingbridge/corepipeline/internal/sbusrouter"
)

// Transports bundles the physical interface Transport implementations a
// pipeline was constructed with; a nil entry means that interface is not
// wired up.
type Transports struct {
	UART1 interfaces.Transport
	USB   interfaces.Transport
	UART2 interfaces.Transport
	UART3 interfaces.Transport
	UDP   interfaces.Transport
}

// computeSbusMask implements spec.md §4.9's computeSbusMask(cfg): UART1 is
// always included (it allows tunnelling SBUS over UART at arbitrary baud);
// UART3 and UDP are added when the matching output/bridge roles are
// active.
func computeSbusMask(cfg Config) SenderMask {
	mask := Bit(constants.IdxUART1)
	if cfg.Device2 == Device2SBUSIn {
		if cfg.Device3 == Device3SBUSOut || cfg.Device3 == Device3UART3Bridge {
			mask |= Bit(constants.IdxUART3)
		}
	}
	if cfg.Device4 == Device4NetworkBridge {
		mask |= Bit(constants.IdxUDP)
	}
	return mask
}

// anyTelemetryOut reports whether any device role consumes Telemetry-class
// traffic coming off UART1, which gates whether a Telemetry flow is built
// at all.
func anyTelemetryOut(cfg Config) SenderMask {
	var mask SenderMask
	if cfg.Device2 == Device2USB {
		mask |= Bit(constants.IdxUSB)
	}
	if cfg.Device2 == Device2UART2 {
		mask |= Bit(constants.IdxUART2)
	}
	switch cfg.Device3 {
	case Device3UART3Mirror, Device3UART3Bridge, Device3UART3Log:
		mask |= Bit(constants.IdxUART3)
	}
	if cfg.Device4 == Device4NetworkBridge {
		mask |= Bit(constants.IdxUDP)
	}
	return mask
}

func newTelemetryParser(cfg Config, ring *ringbuf.RingBuffer, transport interfaces.Transport, channel int, routed bool) Parser {
	switch cfg.Protocol {
	case ProtocolMAVLink:
		return parser.NewMAVLinkParser(ring, channel, routed)
	default:
		return parser.NewRawParser(ring, transport, cfg.rawChunkSize())
	}
}

// BuildFlows translates a frozen Config into the immutable flow array,
// following spec.md §4.9's setupFlows table exactly. It is evaluated
// exactly once at pipeline construction.
func BuildFlows(cfg Config, tr Transports, router *mavrouter.Router, logger interfaces.Logger) []DataFlow {
	var flows []DataFlow
	sbusSourceCount := 0
	if cfg.Device1 == Device1SBUSIn {
		sbusSourceCount++
	}
	if cfg.Device2 == Device2SBUSIn {
		sbusSourceCount++
	}

	// Multiple-SBUS-source misconfiguration diagnostic (supplemented
	// feature): only one hardware SBUS input is physically meaningful.
	if sbusSourceCount > 1 && logger != nil {
		logger.Errorf("configuration impossibility: more than one SBUS_IN source configured (Device1 and Device2 both SBUS_IN); both flows will still be created but routing behavior is undefined")
	}

	if cfg.Device1 == Device1SBUSIn {
		ring := ringbuf.New(constants.SBUSFrameSize * 4)
		flows = append(flows, DataFlow{
			Name:              "Device1_SBUS_IN",
			PhysicalInterface: PhysUART1,
			SenderMask:        computeSbusMask(cfg),
			Source:            SourceTelemetry,
			IsInputFlow:       false,
			Parser:            parser.NewSBUSParser(ring, sbusrouter.SourceDevice1),
			Ingress:           ring,
			Transport:         tr.UART1,
		})
	}

	if cfg.Device2 == Device2SBUSIn {
		ring := ringbuf.New(constants.SBUSFrameSize * 4)
		flows = append(flows, DataFlow{
			Name:              "Device2_SBUS_IN",
			PhysicalInterface: PhysUART2,
			SenderMask:        computeSbusMask(cfg),
			Source:            SourceTelemetry,
			IsInputFlow:       false,
			Parser:            parser.NewSBUSParser(ring, sbusrouter.SourceDevice2),
			Ingress:           ring,
			Transport:         tr.UART2,
		})
	}

	if cfg.Device1 == Device1UART1 {
		if mask := anyTelemetryOut(cfg); mask != 0 {
			ring := ringbuf.New(cfg.rawChunkSize() * 4)
			flows = append(flows, DataFlow{
				Name:              "Telemetry",
				PhysicalInterface: PhysUART1,
				SenderMask:        mask,
				Source:            SourceTelemetry,
				IsInputFlow:       false,
				Parser:            newTelemetryParser(cfg, ring, tr.UART1, 0, cfg.MAVLinkRouting),
				Ingress:           ring,
				Transport:         tr.UART1,
				UsesRouter:        cfg.Protocol == ProtocolMAVLink && cfg.MAVLinkRouting,
			})
		}
	}

	if cfg.Device4 == Device4LogNetwork {
		ring := ringbuf.New(cfg.rawChunkSize() * 4)
		flows = append(flows, DataFlow{
			Name:              "Logger",
			PhysicalInterface: PhysNone,
			SenderMask:        Bit(constants.IdxUDP),
			Source:            SourceLogs,
			IsInputFlow:       false,
			Parser:            parser.NewLineBasedParser(ring),
			Ingress:           ring,
		})
	}

	sbusActive := cfg.Device1 == Device1SBUSIn || cfg.Device2 == Device2SBUSIn

	if cfg.Device2 == Device2USB {
		ring := ringbuf.New(cfg.rawChunkSize() * 4)
		flows = append(flows, DataFlow{
			Name:              "USB_Input",
			PhysicalInterface: PhysUSB,
			SenderMask:        Bit(constants.IdxUART1),
			Source:            SourceTelemetry,
			IsInputFlow:       true,
			Parser:            newTelemetryParser(cfg, ring, tr.USB, 1, cfg.MAVLinkRouting),
			Ingress:           ring,
			Transport:         tr.USB,
			UsesRouter:        cfg.Protocol == ProtocolMAVLink && cfg.MAVLinkRouting,
		})
	}

	if cfg.Device4 == Device4NetworkBridge && !sbusActive {
		ring := ringbuf.New(cfg.rawChunkSize() * 4)
		flows = append(flows, DataFlow{
			Name:              "UDP_Input",
			PhysicalInterface: PhysUDP,
			SenderMask:        Bit(constants.IdxUART1),
			Source:            SourceTelemetry,
			IsInputFlow:       true,
			Parser:            newTelemetryParser(cfg, ring, tr.UDP, 2, cfg.MAVLinkRouting),
			Ingress:           ring,
			Transport:         tr.UDP,
			UsesRouter:        cfg.Protocol == ProtocolMAVLink && cfg.MAVLinkRouting,
		})
	}

	if cfg.Device2 == Device2UART2 && !sbusActive {
		ring := ringbuf.New(cfg.rawChunkSize() * 4)
		flows = append(flows, DataFlow{
			Name:              "UART2_Input",
			PhysicalInterface: PhysUART2,
			SenderMask:        Bit(constants.IdxUART1),
			Source:            SourceTelemetry,
			IsInputFlow:       true,
			Parser:            newTelemetryParser(cfg, ring, tr.UART2, 3, cfg.MAVLinkRouting),
			Ingress:           ring,
			Transport:         tr.UART2,
			UsesRouter:        cfg.Protocol == ProtocolMAVLink && cfg.MAVLinkRouting,
		})
	}

	if cfg.Device3 == Device3UART3Bridge && !sbusActive {
		ring := ringbuf.New(cfg.rawChunkSize() * 4)
		flows = append(flows, DataFlow{
			Name:              "UART3_Input",
			PhysicalInterface: PhysUART3,
			SenderMask:        Bit(constants.IdxUART1),
			Source:            SourceTelemetry,
			IsInputFlow:       true,
			Parser:            newTelemetryParser(cfg, ring, tr.UART3, 4, cfg.MAVLinkRouting),
			Ingress:           ring,
			Transport:         tr.UART3,
			UsesRouter:        cfg.Protocol == ProtocolMAVLink && cfg.MAVLinkRouting,
		})
	}

	sbusOutConfigured := cfg.Device2 == Device2SBUSOut || cfg.Device3 == Device3SBUSOut
	if cfg.Device4 == Device4SBUSUDPRx && sbusOutConfigured {
		ring := ringbuf.New(constants.SBUSFrameSize * 4)
		flows = append(flows, DataFlow{
			Name:              "UDP_SBUS_Input",
			PhysicalInterface: PhysUDP,
			SenderMask:        0, // router-routed: the SBUS router chooses the sink, not senderMask
			Source:            SourceTelemetry,
			IsInputFlow:       false,
			Parser:            parser.NewSBUSParser(ring, sbusrouter.SourceUDP),
			Ingress:           ring,
			Transport:         tr.UDP,
		})
	}

	// Legacy UART->SBUS conversion (D2_UART2+D3_SBUS_OUT,
	// D3_UART3_BRIDGE+D2_SBUS_OUT) is documented-absent per spec.md §9 /
	// SPEC_FULL.md §4.11: setupFlows recognizes the combination and logs a
	// WARNING instead of building a flow for it.
	if cfg.Device3 == Device3SBUSOut && cfg.Device2 == Device2UART2 && logger != nil {
		logger.Warnf("legacy UART2->SBUS_OUT conversion is not implemented; no flow created for Device2=UART2 + Device3=SBUS_OUT")
	}
	if cfg.Device2 == Device2SBUSOut && cfg.Device3 == Device3UART3Bridge && logger != nil {
		logger.Warnf("legacy UART3_BRIDGE->SBUS_OUT conversion is not implemented; no flow created for Device3=UART3_BRIDGE + Device2=SBUS_OUT")
	}

	return flows
}
