package bridge

import (
	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/sender"
)

// finalMask implements spec.md §4.10's anti-echo rule for one parsed
// packet against the flow that produced it.
func finalMask(flow *DataFlow, p ParsedPacket) SenderMask {
	if p.Hints.HasExplicitTarget {
		return p.Hints.TargetDevices
	}
	if p.PhysicalInterface == PhysNone {
		return flow.SenderMask
	}
	idx, ok := senderIdxForPhys(p.PhysicalInterface)
	if !ok {
		return flow.SenderMask
	}
	return flow.SenderMask.Without(idx)
}

// distribute enqueues p into every sender slot selected by finalMask. This
// is the only place the "don't echo a packet back to its origin" rule is
// enforced.
func distribute(flow *DataFlow, p ParsedPacket, senders [constants.MaxSenders]sender.Sender) {
	mask := finalMask(flow, p)
	for idx := 0; idx < len(senders); idx++ {
		s := senders[idx]
		if s == nil || !mask.Has(idx) {
			continue
		}
		s.Enqueue(p)
	}
}
