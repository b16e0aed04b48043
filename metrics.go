package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
)

// Metrics tracks per-interface and per-sender statistics for one pipeline
// instance. The counters are atomics (RX bytes are recorded by the
// orchestrator's ingress fill, TX bytes by the senders, router counters by
// the orchestrator), so they need no global lock. Only the
// sender-name-keyed map below is lock-guarded: every SenderStatsFor lookup
// takes its read lock, and creating a new record takes the write lock.
type Metrics struct {
	// Per-interface byte counters (supplements spec.md's "statistics block"
	// collaborator contract with a concrete in-module implementation).
	rxBytes [interfaces.PhysCount]atomic.Uint64
	txBytes [interfaces.PhysCount]atomic.Uint64

	// Router counters.
	UnicastHits atomic.Uint64
	Broadcasts  atomic.Uint64

	// Overrun / framing counters.
	OverrunCount       atomic.Uint64
	InvalidFrameCount  atomic.Uint64
	ResyncByteCount    atomic.Uint64

	StartTime atomic.Int64

	mu      sync.RWMutex
	senders map[string]*SenderStats
}

// SenderStats mirrors one sender's published counters.
type SenderStats struct {
	Name         string
	SentPackets  atomic.Uint64
	DroppedPkts  atomic.Uint64
	DroppedBytes atomic.Uint64
	QueueDepth   atomic.Uint32
	MaxDepth     atomic.Uint32

	// warnLatched is set once a sender's queue depth crosses
	// SenderQueueWarnDepth and cleared on recovery, so RecordQueueDepth
	// reports only the crossing edges. The pipeline's observer ignores that
	// report; the WARNING/INFO log lines come from the sender package.
	warnLatched atomic.Bool
}

// NewMetrics creates a fresh metrics instance with its start time set.
func NewMetrics() *Metrics {
	m := &Metrics{senders: make(map[string]*SenderStats)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRXBytes adds to the receive counter for a physical interface.
func (m *Metrics) RecordRXBytes(iface interfaces.PhysicalInterface, n uint64) {
	if iface >= 0 && int(iface) < len(m.rxBytes) {
		m.rxBytes[iface].Add(n)
	}
}

// RecordTXBytes adds to the transmit counter for a physical interface.
func (m *Metrics) RecordTXBytes(iface interfaces.PhysicalInterface, n uint64) {
	if iface >= 0 && int(iface) < len(m.txBytes) {
		m.txBytes[iface].Add(n)
	}
}

// RecordRouterDecision increments UnicastHits or Broadcasts.
func (m *Metrics) RecordRouterDecision(unicast bool) {
	if unicast {
		m.UnicastHits.Add(1)
	} else {
		m.Broadcasts.Add(1)
	}
}

// SenderStatsFor returns (creating if necessary) the stats record for a
// named sender. A record is created on the first lookup of its name; each
// call takes the map's read lock, and the returned pointer's counters are
// atomics.
func (m *Metrics) SenderStatsFor(name string) *SenderStats {
	m.mu.RLock()
	s, ok := m.senders[name]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.senders[name]; ok {
		return s
	}
	s = &SenderStats{Name: name}
	m.senders[name] = s
	return s
}

// RecordQueueDepth updates a sender's current/max depth and returns
// (crossedAbove, crossedBelow) for the warn-threshold latch so the caller
// can log exactly on the transition, never every pass.
func (s *SenderStats) RecordQueueDepth(depth uint32, warnThreshold uint32) (crossedAbove, crossedBelow bool) {
	s.QueueDepth.Store(depth)
	for {
		cur := s.MaxDepth.Load()
		if depth <= cur || s.MaxDepth.CompareAndSwap(cur, depth) {
			break
		}
	}
	above := depth > warnThreshold
	was := s.warnLatched.Swap(above)
	if above && !was {
		return true, false
	}
	if !above && was {
		return false, true
	}
	return false, false
}

// MetricsSnapshot is a point-in-time copy of Metrics, shaped to mirror the
// original firmware's stats-JSON output (appendStatsToJson): per-interface
// byte counters, router counters, and one entry per sender.
type MetricsSnapshot struct {
	UptimeNs    uint64
	RXBytes     map[string]uint64
	TXBytes     map[string]uint64
	UnicastHits uint64
	Broadcasts  uint64
	Overruns    uint64
	InvalidFrames uint64
	ResyncBytes uint64
	Senders     []SenderSnapshot
}

// SenderSnapshot is one sender's published counters.
type SenderSnapshot struct {
	Name         string
	SentPackets  uint64
	DroppedPkts  uint64
	DroppedBytes uint64
	QueueDepth   uint32
	MaxDepth     uint32
}

// Snapshot copies every counter into a MetricsSnapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		UptimeNs:      uint64(time.Now().UnixNano() - m.StartTime.Load()),
		RXBytes:       make(map[string]uint64, len(m.rxBytes)),
		TXBytes:       make(map[string]uint64, len(m.txBytes)),
		UnicastHits:   m.UnicastHits.Load(),
		Broadcasts:    m.Broadcasts.Load(),
		Overruns:      m.OverrunCount.Load(),
		InvalidFrames: m.InvalidFrameCount.Load(),
		ResyncBytes:   m.ResyncByteCount.Load(),
	}
	for i := range m.rxBytes {
		iface := interfaces.PhysicalInterface(i)
		snap.RXBytes[iface.String()] = m.rxBytes[i].Load()
		snap.TXBytes[iface.String()] = m.txBytes[i].Load()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	snap.Senders = make([]SenderSnapshot, 0, len(m.senders))
	for _, s := range m.senders {
		snap.Senders = append(snap.Senders, SenderSnapshot{
			Name:         s.Name,
			SentPackets:  s.SentPackets.Load(),
			DroppedPkts:  s.DroppedPkts.Load(),
			DroppedBytes: s.DroppedBytes.Load(),
			QueueDepth:   s.QueueDepth.Load(),
			MaxDepth:     s.MaxDepth.Load(),
		})
	}
	return snap
}

// metricsObserver adapts Metrics to the interfaces.Observer contract used
// by internal packages that must not import the root package directly.
type metricsObserver struct {
	m *Metrics
}

// NewObserver returns an interfaces.Observer backed by m.
func NewObserver(m *Metrics) interfaces.Observer {
	return &metricsObserver{m: m}
}

func (o *metricsObserver) ObserveRXBytes(iface interfaces.PhysicalInterface, n uint64) {
	o.m.RecordRXBytes(iface, n)
}

func (o *metricsObserver) ObserveTXBytes(iface interfaces.PhysicalInterface, n uint64) {
	o.m.RecordTXBytes(iface, n)
}

func (o *metricsObserver) ObservePacketParsed(string, int) {}

func (o *metricsObserver) ObservePacketDropped(senderName string) {
	o.m.SenderStatsFor(senderName).DroppedPkts.Add(1)
}

func (o *metricsObserver) ObserveQueueDepth(senderName string, depth uint32) {
	o.m.SenderStatsFor(senderName).RecordQueueDepth(depth, constants.SenderQueueWarnDepth)
}

func (o *metricsObserver) ObserveRouterDecision(unicast bool) {
	o.m.RecordRouterDecision(unicast)
}

func (o *metricsObserver) ObserveFlowLatency(string, time.Duration) {}

var _ interfaces.Observer = (*metricsObserver)(nil)
