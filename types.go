// Package bridge implements the packet routing core of a multi-interface
// serial bridge for unmanned-vehicle telemetry: the flow graph, the
// per-protocol parsers, the MAVLink and SBUS routers, the per-sender
// queues, and the anti-echo distribution rule that ties them together.
package bridge

import (
	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/ringbuf"
)

// The following names re-export shared types from internal/interfaces so
// callers of this package never need to import it directly; the
// definitions live there because internal/parser, internal/mavrouter, and
// internal/sbusrouter all need them without importing this root package
// (which itself imports them), which would be a cycle.
type (
	PhysicalInterface = interfaces.PhysicalInterface
	SenderMask        = interfaces.SenderMask
	PacketFormat      = interfaces.PacketFormat
	RoutingHints      = interfaces.RoutingHints
	ParsedPacket      = interfaces.ParsedPacket
	Parser            = interfaces.Parser
)

const (
	PhysNone  = interfaces.PhysNone
	PhysUART1 = interfaces.PhysUART1
	PhysUSB   = interfaces.PhysUSB
	PhysUART2 = interfaces.PhysUART2
	PhysUART3 = interfaces.PhysUART3
	PhysUDP   = interfaces.PhysUDP

	FormatRAW     = interfaces.FormatRAW
	FormatMAVLink = interfaces.FormatMAVLink
	FormatSBUS    = interfaces.FormatSBUS
)

// Bit returns the mask with only the bit for sender slot idx set.
func Bit(idx int) SenderMask { return interfaces.Bit(idx) }

// senderIdxForPhys maps a physical interface to its sender slot index, for
// the anti-echo exclusion. PhysNone has no corresponding slot.
func senderIdxForPhys(p PhysicalInterface) (int, bool) {
	switch p {
	case PhysUART1:
		return constants.IdxUART1, true
	case PhysUSB:
		return constants.IdxUSB, true
	case PhysUART2:
		return constants.IdxUART2, true
	case PhysUART3:
		return constants.IdxUART3, true
	case PhysUDP:
		return constants.IdxUDP, true
	default:
		return 0, false
	}
}

// FlowSource distinguishes the two directions a non-input flow can carry.
type FlowSource int

const (
	SourceTelemetry FlowSource = iota
	SourceLogs
)

// DataFlow is a static record of one active input source, built once by
// BuildFlows from the frozen Config and never mutated afterward.
type DataFlow struct {
	Name              string
	PhysicalInterface PhysicalInterface
	SenderMask        SenderMask
	Source            FlowSource
	IsInputFlow       bool
	Parser            Parser
	Ingress           *ringbuf.RingBuffer
	Transport         interfaces.Transport
	UsesRouter        bool
}
