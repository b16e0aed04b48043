package parser

import (
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/ringbuf"
)

const (
	stxV1 = 0xFE
	stxV2 = 0xFD

	headerLenV1 = 6  // STX len seq sysid compid msgid
	headerLenV2 = 10 // STX len incompat compat seq sysid compid msgid[3]
)

// extraCRCTable maps known MAVLink message IDs to their CRC_EXTRA byte,
// used to seed the CRC16/X.25 accumulator per the MAVLink wire format.
// Unlisted message IDs still get framed; their CRC is simply not verified
// (spec explicitly allows this when the message table doesn't know a
// msgid), since this module never re-encodes payloads and only needs
// framing, not semantic decoding.
var extraCRCTable = map[uint32]byte{
	0:   50,  // HEARTBEAT
	1:   124, // SYS_STATUS
	24:  24,  // GPS_RAW_INT
	30:  39,  // ATTITUDE
	33:  104, // GLOBAL_POSITION_INT
	20:  214, // PARAM_REQUEST_READ
	23:  168, // PARAM_SET
	76:  152, // COMMAND_LONG
	253: 83,  // STATUSTEXT
}

// targetOffsetTable maps a msgid to the payload byte offset of
// target_system for the handful of command/parameter messages this bridge
// needs to route by unicast target; target_component is always the next
// byte. Messages not listed here are treated as broadcast (no explicit
// target), which is always a safe fallback per the router's rules.
var targetOffsetTable = map[uint32]int{
	20: 2,  // PARAM_REQUEST_READ: param_index(2), then target_system, target_component, ...
	23: 4,  // PARAM_SET: param_value(4), then target_system, target_component, ...
	76: 30, // COMMAND_LONG: 7 floats + command(2), then target_system, target_component, confirmation
}

// MAVLinkParser implements the v1/v2 framing state machine for one
// channel-scoped flow. It never re-encodes a message: every emitted
// ParsedPacket carries the raw bytes from STX through CRC so downstream
// senders retransmit bit-exact frames.
type MAVLinkParser struct {
	ring    *ringbuf.RingBuffer
	channel int
	routed  bool

	scratch []byte // reused staging buffer for frames that straddle the ring's wrap point

	validFrames   uint64
	invalidFrames uint64
	resyncBytes   uint64

	burstFlushes int
	burstActive  bool
}

// NewMAVLinkParser builds a parser bound to one of the reserved channel
// ids (0..4: Telemetry, USB-in, UDP-in, UART2-in, UART3-in). routed marks
// whether detected packets should also be handed to the shared router.
func NewMAVLinkParser(ring *ringbuf.RingBuffer, channel int, routed bool) *MAVLinkParser {
	return &MAVLinkParser{ring: ring, channel: channel, routed: routed}
}

func (p *MAVLinkParser) Name() string            { return "MAVLink" }
func (p *MAVLinkParser) MinimumBytes() int        { return headerLenV1 + 2 }
func (p *MAVLinkParser) IsBurstActive() bool      { return p.burstActive }
func (p *MAVLinkParser) TryFastProcess(int64) bool { return false }
func (p *MAVLinkParser) Channel() int             { return p.channel }
func (p *MAVLinkParser) Routed() bool             { return p.routed }

func (p *MAVLinkParser) Reset() {
	p.burstFlushes = 0
	p.burstActive = false
}

// Parse scans from the read cursor for one complete frame per call,
// resyncing by exactly one byte on any framing violation. It never reads
// beyond the buffer's available bytes and reports bytesConsumed exactly
// equal to the prefix it committed to.
func (p *MAVLinkParser) Parse(nowMs int64) ([]interfaces.ParsedPacket, int) {
	avail := p.ring.Available()
	if avail == 0 {
		return nil, 0
	}

	first, second := p.ring.GetReadSegments()
	if len(first) == 0 {
		return nil, 0
	}

	view := first
	if len(second) > 0 {
		if cap(p.scratch) < avail {
			p.scratch = make([]byte, avail)
		}
		stitched := p.scratch[:avail]
		n := copy(stitched, first)
		copy(stitched[n:], second)
		view = stitched
	}

	switch view[0] {
	case stxV1:
		return p.tryFrame(view, headerLenV1, false)
	case stxV2:
		return p.tryFrame(view, headerLenV2, true)
	default:
		p.ring.Consume(1)
		p.resyncBytes++
		return nil, 1
	}
}

func (p *MAVLinkParser) tryFrame(view []byte, headerLen int, v2 bool) ([]interfaces.ParsedPacket, int) {
	if len(view) < headerLen+2 {
		return nil, 0 // wait for more bytes; incomplete header
	}

	payloadLen := int(view[1])
	var msgID uint32
	var sigLen int
	if v2 {
		incompat := view[2]
		msgID = uint32(view[7]) | uint32(view[8])<<8 | uint32(view[9])<<16
		if incompat&0x01 != 0 {
			sigLen = 13
		}
	} else {
		msgID = uint32(view[5])
	}

	frameLen := headerLen + payloadLen + 2 + sigLen
	if len(view) < frameLen {
		return nil, 0 // wait for the rest of the frame
	}

	crcLo := view[headerLen+payloadLen]
	crcHi := view[headerLen+payloadLen+1]
	wireCRC := uint16(crcLo) | uint16(crcHi)<<8

	if extra, known := extraCRCTable[msgID]; known {
		computed := crc16X25(view[1:headerLen+payloadLen], extra)
		if computed != wireCRC {
			p.ring.Consume(1)
			p.invalidFrames++
			return nil, 1
		}
	}

	frame := make([]byte, frameLen)
	copy(frame, view[:frameLen])
	p.ring.Consume(frameLen)
	p.validFrames++
	p.burstFlushes++
	p.burstActive = p.burstFlushes >= 4

	var sysid, compid byte
	if v2 {
		sysid, compid = frame[5], frame[6]
	} else {
		sysid, compid = frame[3], frame[4]
	}

	pkt := interfaces.ParsedPacket{
		Payload: frame,
		Format:  interfaces.FormatMAVLink,
		Source:  mavlinkSourceName(sysid, compid),
		SysID:   sysid,
		CompID:  compid,
	}
	if off, known := targetOffsetTable[msgID]; known {
		payload := frame[headerLen : headerLen+payloadLen]
		if off+1 < len(payload) {
			pkt.HasTarget = true
			pkt.TargetSysID = payload[off]
		}
	}
	return []interfaces.ParsedPacket{pkt}, frameLen
}

func mavlinkSourceName(sysid, compid byte) string {
	return "MAVLINK"
}

// crc16X25 implements the MAVLink CRC-16/X.25 accumulator: standard
// X.25 CRC over the given bytes, then over the CRC_EXTRA byte.
func crc16X25(data []byte, extra byte) uint16 {
	crc := uint16(0xFFFF)
	accumulate := func(b byte) {
		tmp := b ^ byte(crc&0xFF)
		tmp ^= tmp << 4
		crc = (crc >> 8) ^ uint16(tmp)<<8 ^ uint16(tmp)<<3 ^ uint16(tmp)>>4
	}
	for _, b := range data {
		accumulate(b)
	}
	accumulate(extra)
	return crc
}
