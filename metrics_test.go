package bridge

import (
	"testing"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
)

func TestMetricsRXTXBytes(t *testing.T) {
	m := NewMetrics()
	m.RecordRXBytes(interfaces.PhysUART1, 100)
	m.RecordRXBytes(interfaces.PhysUART1, 50)
	m.RecordTXBytes(interfaces.PhysUDP, 200)

	snap := m.Snapshot()
	if got := snap.RXBytes[interfaces.PhysUART1.String()]; got != 150 {
		t.Errorf("RXBytes[UART1] = %d, want 150", got)
	}
	if got := snap.TXBytes[interfaces.PhysUDP.String()]; got != 200 {
		t.Errorf("TXBytes[UDP] = %d, want 200", got)
	}
}

func TestMetricsRXBytesIgnoresOutOfRange(t *testing.T) {
	m := NewMetrics()
	m.RecordRXBytes(interfaces.PhysicalInterface(-1), 100)
	m.RecordRXBytes(interfaces.PhysicalInterface(999), 100)
	snap := m.Snapshot()
	for _, v := range snap.RXBytes {
		if v != 0 {
			t.Errorf("expected no RX bytes recorded for an out-of-range interface, got %d", v)
		}
	}
}

func TestMetricsRouterDecision(t *testing.T) {
	m := NewMetrics()
	m.RecordRouterDecision(true)
	m.RecordRouterDecision(true)
	m.RecordRouterDecision(false)

	snap := m.Snapshot()
	if snap.UnicastHits != 2 {
		t.Errorf("UnicastHits = %d, want 2", snap.UnicastHits)
	}
	if snap.Broadcasts != 1 {
		t.Errorf("Broadcasts = %d, want 1", snap.Broadcasts)
	}
}

func TestSenderStatsForReturnsSameRecord(t *testing.T) {
	m := NewMetrics()
	a := m.SenderStatsFor("UDP")
	b := m.SenderStatsFor("UDP")
	if a != b {
		t.Error("SenderStatsFor should return the same *SenderStats for the same name")
	}
	a.SentPackets.Add(1)
	if b.SentPackets.Load() != 1 {
		t.Error("both handles should observe updates to the shared record")
	}
}

func TestRecordQueueDepthLatchesWarnCrossing(t *testing.T) {
	s := &SenderStats{Name: "USB"}
	const warn = uint32(10)

	above, below := s.RecordQueueDepth(5, warn)
	if above || below {
		t.Error("no crossing expected while under threshold")
	}

	above, below = s.RecordQueueDepth(15, warn)
	if !above || below {
		t.Error("expected an above-threshold crossing at depth 15")
	}

	// Staying above the threshold should not re-latch.
	above, below = s.RecordQueueDepth(20, warn)
	if above || below {
		t.Error("should not re-report crossing while remaining above threshold")
	}
	if s.MaxDepth.Load() != 20 {
		t.Errorf("MaxDepth = %d, want 20", s.MaxDepth.Load())
	}

	above, below = s.RecordQueueDepth(2, warn)
	if above || !below {
		t.Error("expected a below-threshold crossing at depth 2")
	}
}

func TestMetricsObserverForwardsToSenderStats(t *testing.T) {
	m := NewMetrics()
	obs := NewObserver(m)

	obs.ObservePacketDropped("UART2")
	obs.ObserveQueueDepth("UART2", constants.SenderQueueWarnDepth+1)
	obs.ObserveRouterDecision(true)
	obs.ObserveRXBytes(interfaces.PhysUART2, 64)

	stats := m.SenderStatsFor("UART2")
	if stats.DroppedPkts.Load() != 1 {
		t.Errorf("DroppedPkts = %d, want 1", stats.DroppedPkts.Load())
	}
	if stats.QueueDepth.Load() != constants.SenderQueueWarnDepth+1 {
		t.Errorf("QueueDepth = %d, want %d", stats.QueueDepth.Load(), constants.SenderQueueWarnDepth+1)
	}

	snap := m.Snapshot()
	if snap.UnicastHits != 1 {
		t.Errorf("UnicastHits = %d, want 1", snap.UnicastHits)
	}
	if got := snap.RXBytes[interfaces.PhysUART2.String()]; got != 64 {
		t.Errorf("RXBytes[UART2] = %d, want 64", got)
	}
}

func TestSnapshotIncludesEverySender(t *testing.T) {
	m := NewMetrics()
	m.SenderStatsFor("UART1")
	m.SenderStatsFor("USB")
	m.SenderStatsFor("UDP")

	snap := m.Snapshot()
	if len(snap.Senders) != 3 {
		t.Errorf("len(Senders) = %d, want 3", len(snap.Senders))
	}
}
