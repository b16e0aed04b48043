package bridge

import (
	"testing"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/sender"
)

type fakeSender struct {
	name     string
	enqueued []ParsedPacket
}

func (f *fakeSender) Enqueue(p interfaces.ParsedPacket) bool {
	f.enqueued = append(f.enqueued, p)
	return true
}
func (f *fakeSender) ProcessSendQueue(bool)    {}
func (f *fakeSender) GetQueueDepth() uint32    { return uint32(len(f.enqueued)) }
func (f *fakeSender) GetSentCount() uint64     { return 0 }
func (f *fakeSender) GetDroppedCount() uint64  { return 0 }
func (f *fakeSender) GetMaxQueueDepth() uint32 { return 0 }
func (f *fakeSender) GetName() string          { return f.name }
func (f *fakeSender) IsReady() bool            { return true }

func TestFinalMaskExplicitTargetOverridesEverything(t *testing.T) {
	flow := &DataFlow{SenderMask: Bit(constants.IdxUART1) | Bit(constants.IdxUSB)}
	pkt := ParsedPacket{
		PhysicalInterface: PhysUART1,
		Hints:             RoutingHints{HasExplicitTarget: true, TargetDevices: Bit(constants.IdxUDP)},
	}
	got := finalMask(flow, pkt)
	if got != Bit(constants.IdxUDP) {
		t.Errorf("finalMask = %v, want only UDP bit", got)
	}
}

func TestFinalMaskExcludesOriginInterface(t *testing.T) {
	flow := &DataFlow{SenderMask: Bit(constants.IdxUART1) | Bit(constants.IdxUSB) | Bit(constants.IdxUDP)}
	pkt := ParsedPacket{PhysicalInterface: PhysUART1}

	got := finalMask(flow, pkt)
	want := Bit(constants.IdxUSB) | Bit(constants.IdxUDP)
	if got != want {
		t.Errorf("finalMask = %v, want %v (UART1 excluded as origin)", got, want)
	}
}

func TestFinalMaskPhysNoneKeepsFullFlowMask(t *testing.T) {
	flow := &DataFlow{SenderMask: Bit(constants.IdxUART1) | Bit(constants.IdxUSB)}
	pkt := ParsedPacket{PhysicalInterface: PhysNone}

	got := finalMask(flow, pkt)
	if got != flow.SenderMask {
		t.Errorf("finalMask = %v, want unmodified flow mask %v for a sourceless packet", got, flow.SenderMask)
	}
}

func TestDistributeSkipsNilAndUnselectedSenders(t *testing.T) {
	flow := &DataFlow{SenderMask: Bit(constants.IdxUSB) | Bit(constants.IdxUDP)}
	pkt := ParsedPacket{PhysicalInterface: PhysUART1, Payload: []byte{1, 2, 3}}

	var senders [constants.MaxSenders]sender.Sender
	usb := &fakeSender{name: "USB"}
	udp := &fakeSender{name: "UDP"}
	uart2 := &fakeSender{name: "UART2"}
	senders[constants.IdxUSB] = usb
	senders[constants.IdxUDP] = udp
	senders[constants.IdxUART2] = uart2 // wired, but not in the flow's mask
	// constants.IdxUART1, IdxUART3 left nil.

	distribute(flow, pkt, senders)

	if len(uart2.enqueued) != 0 {
		t.Errorf("UART2 sender is outside the mask and should get nothing, got %d enqueues", len(uart2.enqueued))
	}

	if len(usb.enqueued) != 1 {
		t.Errorf("USB sender should have received the packet, got %d enqueues", len(usb.enqueued))
	}
	if len(udp.enqueued) != 1 {
		t.Errorf("UDP sender should have received the packet, got %d enqueues", len(udp.enqueued))
	}
}
