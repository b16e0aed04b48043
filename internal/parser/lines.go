package parser

import (
	"bytes"

	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/ringbuf"
)

// LineBasedParser splits the ingress stream on '\n', used by the Logger
// flow: log lines arrive from the logging subsystem's own ring buffer (an
// external collaborator per spec.md §1) and are forwarded to the network
// sink one line at a time.
type LineBasedParser struct {
	ring *ringbuf.RingBuffer
}

// NewLineBasedParser wraps ring, which the logging subsystem feeds.
func NewLineBasedParser(ring *ringbuf.RingBuffer) *LineBasedParser {
	return &LineBasedParser{ring: ring}
}

func (p *LineBasedParser) Name() string         { return "LineBased" }
func (p *LineBasedParser) MinimumBytes() int     { return 1 }
func (p *LineBasedParser) IsBurstActive() bool   { return false }
func (p *LineBasedParser) Reset()                {}
func (p *LineBasedParser) TryFastProcess(int64) bool { return false }

// Parse emits at most one complete line per call, including its trailing
// newline, so draining stays fair with every other telemetry flow.
func (p *LineBasedParser) Parse(nowMs int64) ([]interfaces.ParsedPacket, int) {
	first, second := p.ring.GetReadSegments()
	if len(first) == 0 {
		return nil, 0
	}

	if idx := bytes.IndexByte(first, '\n'); idx >= 0 {
		line := append([]byte{}, first[:idx+1]...)
		p.ring.Consume(idx + 1)
		return []interfaces.ParsedPacket{{Payload: line, Format: interfaces.FormatRAW, Source: "LOG"}}, idx + 1
	}
	if idx := bytes.IndexByte(second, '\n'); idx >= 0 {
		line := make([]byte, 0, len(first)+idx+1)
		line = append(line, first...)
		line = append(line, second[:idx+1]...)
		consumed := len(first) + idx + 1
		p.ring.Consume(consumed)
		return []interfaces.ParsedPacket{{Payload: line, Format: interfaces.FormatRAW, Source: "LOG"}}, consumed
	}
	return nil, 0
}
