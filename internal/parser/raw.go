package parser

import (
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/ringbuf"
)

// RawParser implements adaptive-batching transparent passthrough: bytes
// accumulate in a staging buffer and are flushed as a single RAW packet
// once any of the thresholds in constants (small/medium/force-flush gap,
// max time-in-buffer, buffer-full, or the transport's own packet-timeout
// latch) is crossed.
type RawParser struct {
	ring      *ringbuf.RingBuffer
	transport interfaces.Transport

	staging   []byte
	stagedLen int

	firstByteAt time.Time
	lastByteAt  time.Time
	haveBytes   bool

	consecutiveFastFlushes int
	burstActive            bool
}

// NewRawParser builds a RAW parser reading from ring and consulting
// transport for the hasPacketTimeout() idle-line signal. chunkSize sizes
// the staging buffer (typically 512 or 1024 bytes).
func NewRawParser(ring *ringbuf.RingBuffer, transport interfaces.Transport, chunkSize int) *RawParser {
	if chunkSize <= 0 {
		chunkSize = constants.DefaultRawChunkSize
	}
	return &RawParser{
		ring:      ring,
		transport: transport,
		staging:   make([]byte, chunkSize),
	}
}

func (p *RawParser) Name() string         { return "RAW" }
func (p *RawParser) MinimumBytes() int    { return 1 }
func (p *RawParser) IsBurstActive() bool  { return p.burstActive }
func (p *RawParser) TryFastProcess(int64) bool { return false }

func (p *RawParser) Reset() {
	p.stagedLen = 0
	p.haveBytes = false
	p.consecutiveFastFlushes = 0
	p.burstActive = false
}

// Parse drains everything currently available from the ring into the
// staging buffer (bounded by remaining staging capacity), then decides
// whether to flush per the adaptive thresholds.
func (p *RawParser) Parse(nowMs int64) ([]interfaces.ParsedPacket, int) {
	now := time.Now()
	consumed := 0

	avail := p.ring.Available()
	room := len(p.staging) - p.stagedLen
	toRead := avail
	if toRead > room {
		toRead = room
	}
	if toRead > 0 {
		first, second := p.ring.GetReadSegments()
		n := copy(p.staging[p.stagedLen:], first)
		if n < toRead {
			n += copy(p.staging[p.stagedLen+n:], second)
		}
		p.ring.Consume(n)
		p.stagedLen += n
		consumed += n
		if n > 0 {
			if !p.haveBytes {
				p.firstByteAt = now
				p.haveBytes = true
			}
			p.lastByteAt = now
		}
	}

	if p.stagedLen == 0 {
		return nil, consumed
	}

	idleGap := now.Sub(p.lastByteAt)
	timeInBuffer := now.Sub(p.firstByteAt)

	shouldFlush := false
	switch {
	case p.stagedLen >= len(p.staging):
		shouldFlush = true
	case idleGap >= constants.RawSmallPacketGap && p.stagedLen <= constants.RawSmallPacketBytes:
		shouldFlush = true
	case idleGap >= constants.RawMediumPacketGap && p.stagedLen <= constants.RawMediumPacketBytes:
		shouldFlush = true
	case idleGap >= constants.RawForceFlushGap:
		shouldFlush = true
	case timeInBuffer >= constants.RawMaxTimeInBuffer:
		shouldFlush = true
	case p.transport != nil && p.transport.HasPacketTimeout():
		shouldFlush = true
	}

	if !shouldFlush {
		return nil, consumed
	}

	payload := make([]byte, p.stagedLen)
	copy(payload, p.staging[:p.stagedLen])

	if idleGap < constants.RawBurstGapThreshold {
		p.consecutiveFastFlushes++
	} else {
		p.consecutiveFastFlushes = 0
	}
	p.burstActive = p.consecutiveFastFlushes >= constants.RawBurstMinFlushes

	p.stagedLen = 0
	p.haveBytes = false

	pkt := interfaces.ParsedPacket{
		Payload: payload,
		Format:  interfaces.FormatRAW,
		Source:  "RAW",
	}
	return []interfaces.ParsedPacket{pkt}, consumed
}
