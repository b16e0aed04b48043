package constants

import "time"

// Sender slot indices, stable for the process lifetime.
const (
	IdxUART1 = iota
	IdxUSB
	IdxUART2
	IdxUART3
	IdxUDP

	MaxSenders
)

// Default configuration constants
const (
	// DefaultSenderQueueDepth is the default number of packets buffered per sender.
	DefaultSenderQueueDepth = 16

	// DefaultSenderQueueBytes bounds the total payload bytes a sender queue may hold.
	DefaultSenderQueueBytes = 8 * 1024

	// DefaultRawChunkSize is the RAW parser's staging buffer size.
	DefaultRawChunkSize = 512

	// DefaultUART1TxRingSize is the UART1 TX service ring buffer capacity.
	DefaultUART1TxRingSize = 8 * 1024

	// UART1TxMaxWritePerCall bounds bytes drained from the TX ring per pipeline pass.
	UART1TxMaxWritePerCall = 1024

	// SPSCSlots is the number of fixed slots in the cross-core UDP queue.
	SPSCSlots = 16

	// SPSCSlotCapacity is the maximum payload size of a single SPSC slot (MAVLink/GCS MTU).
	SPSCSlotCapacity = 1500

	// MavlinkRouterMaxEntries bounds the sysid->interface learning table (LRU evicted).
	MavlinkRouterMaxEntries = 64

	// SBUSFrameSize is the fixed wire size of an SBUS frame.
	SBUSFrameSize = 25

	// DefaultUDPPort is the MAVLink/GCS convention port.
	DefaultUDPPort = 14550
)

// RAW parser flush thresholds.
//
// These mirror the adaptive batching rules of the original firmware: small
// writes flush fast so interactive traffic (RC overrides, acks) isn't held
// hostage, while bulk transfers are allowed to coalesce up to a hard cap so
// the pipeline doesn't spend its per-flow budget on one parser.
const (
	RawSmallPacketBytes  = 12
	RawSmallPacketGap    = 200 * time.Microsecond
	RawMediumPacketBytes = 64
	RawMediumPacketGap   = 1 * time.Millisecond
	RawForceFlushGap     = 5 * time.Millisecond
	RawMaxTimeInBuffer   = 15 * time.Millisecond

	// RawBurstGapThreshold is the inter-flush gap under which a flush counts
	// toward burst detection.
	RawBurstGapThreshold = 1 * time.Millisecond
	// RawBurstMinFlushes is the number of consecutive sub-threshold flushes
	// required before isBurstActive() reports true.
	RawBurstMinFlushes = 4
)

// Router timing.
const (
	// MavlinkRouterEntryTTL is how long a learned sysid->interface mapping
	// survives without being refreshed before it's treated as stale.
	MavlinkRouterEntryTTL = 60 * time.Second

	// SBUSSourceTimeout is how long an SBUS source may go quiet before the
	// router considers it dead for arbitration purposes.
	SBUSSourceTimeout = 100 * time.Millisecond

	// SBUSFailsafeRate is the failsafe heartbeat cadence (50Hz) emitted when
	// no live source is arbitrated.
	SBUSFailsafeRate = 20 * time.Millisecond
)

// Pipeline orchestrator time budgets.
//
// The orchestrator runs to completion on a single pinned core; these budgets
// are hard wall-clock ceilings per pass, not targets, so one starved flow
// can never lock out the others.
const (
	InputFlowBudget        = 5 * time.Millisecond
	TelemetryFlowBudget    = 10 * time.Millisecond
	TelemetryMaxIterations = 20
)

// SenderQueueWarnDepth is the queue depth above which a sender logs a
// rate-limited WARNING, latched so it fires once per threshold crossing.
const SenderQueueWarnDepth = 15