package parser

import (
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/ringbuf"
	"github.com/wingbridge/corepipeline/internal/sbusrouter"
)

// validEndBytes is the closed set of valid SBUS frame trailer bytes.
var validEndBytes = map[byte]bool{0x00: true, 0x04: true, 0x14: true, 0x24: true}

// SBUSParser implements the zero-allocation SBUS fast path described in
// the component design: on every call it either resyncs by one byte,
// counts an invalid frame, or hands a complete 25-byte frame straight to
// the singleton SBUS router. Parse() never produces packets itself —
// partial frames simply wait for more bytes.
type SBUSParser struct {
	ring     *ringbuf.RingBuffer
	sourceID sbusrouter.SourceID

	validFrames   uint64
	invalidFrames uint64
}

// NewSBUSParser binds a parser to ring and to sourceID (DEVICE1, DEVICE2,
// or UDP), used by the router to arbitrate between simultaneous sources.
func NewSBUSParser(ring *ringbuf.RingBuffer, sourceID sbusrouter.SourceID) *SBUSParser {
	return &SBUSParser{ring: ring, sourceID: sourceID}
}

func (p *SBUSParser) Name() string        { return "SBUS_Fast" }
func (p *SBUSParser) MinimumBytes() int   { return constants.SBUSFrameSize }
func (p *SBUSParser) IsBurstActive() bool { return false }
func (p *SBUSParser) Reset()              {}

func (p *SBUSParser) ValidFrames() uint64   { return p.validFrames }
func (p *SBUSParser) InvalidFrames() uint64 { return p.invalidFrames }

// Parse always returns no packets: the SBUS fast path routes frames
// directly via TryFastProcess, and partial frames simply wait for more
// bytes on the next pass.
func (p *SBUSParser) Parse(nowMs int64) ([]interfaces.ParsedPacket, int) {
	return nil, 0
}

// TryFastProcess implements the 5-step fast path from the component
// design: not enough bytes → false; non-contiguous view → false; bad start
// byte → resync 1 byte; bad end byte → resync 1 byte, count invalid; else
// copy 25 bytes, consume 25, route, and report handled.
func (p *SBUSParser) TryFastProcess(nowMs int64) bool {
	if p.ring.Available() < constants.SBUSFrameSize {
		return false
	}
	view := p.ring.GetContiguousForParser(constants.SBUSFrameSize)
	if len(view) < constants.SBUSFrameSize {
		return false
	}
	if view[0] != 0x0F {
		p.ring.Consume(1)
		return true
	}
	if !validEndBytes[view[constants.SBUSFrameSize-1]] {
		p.ring.Consume(1)
		p.invalidFrames++
		return true
	}

	var frame [constants.SBUSFrameSize]byte
	copy(frame[:], view[:constants.SBUSFrameSize])
	p.ring.Consume(constants.SBUSFrameSize)
	p.validFrames++

	sbusrouter.Instance().RouteFrame(frame, p.sourceID, time.Now())
	return true
}
