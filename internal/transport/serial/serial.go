//go:build linux

// Package serial adapts github.com/daedaluz/goserial's Port to the
// pipeline's Transport contract for UART1/UART2/UART3.
package serial

import (
	"sync/atomic"
	"time"

	goserial "github.com/daedaluz/goserial"
)

// Port wraps a goserial.Port, tracking the one-shot overrun/gap latches the
// Transport contract requires.
type Port struct {
	port *goserial.Port

	lastReadAt  atomic.Int64 // unix nanos
	idleGap     time.Duration
	overrun     atomic.Bool
}

// Open opens path (e.g. "/dev/ttyUSB0") at baud, configuring 8N1 raw mode.
// idleGap is the inter-byte silence treated as a framing boundary for
// HasPacketTimeout (UART idle-line detection).
func Open(path string, baud uint32, idleGap time.Duration) (*Port, error) {
	p, err := goserial.Open(path, goserial.NewOptions())
	if err != nil {
		return nil, err
	}
	if err := p.MakeRaw(); err != nil {
		p.Close()
		return nil, err
	}
	attrs, err := p.GetAttr2()
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.ISpeed = baud
	attrs.OSpeed = baud
	if err := p.SetAttr2(goserial.TCSANOW, attrs); err != nil {
		p.Close()
		return nil, err
	}
	return &Port{port: p, idleGap: idleGap}, nil
}

func (p *Port) Read(buf []byte) (int, error) {
	n, err := p.port.Read(buf)
	if n > 0 {
		p.lastReadAt.Store(time.Now().UnixNano())
	}
	return n, err
}

func (p *Port) Write(buf []byte) (int, error) {
	return p.port.Write(buf)
}

// AvailableForWrite is approximated as always-ready: goserial's raw fd
// write doesn't expose a kernel TX-ring depth, so the sender's own queue
// depth is the real backpressure signal here.
func (p *Port) AvailableForWrite() int {
	return 1 << 16
}

func (p *Port) HasPacketTimeout() bool {
	if p.idleGap == 0 {
		return false
	}
	last := p.lastReadAt.Load()
	if last == 0 {
		return false
	}
	if time.Since(time.Unix(0, last)) <= p.idleGap {
		return false
	}
	return p.lastReadAt.CompareAndSwap(last, 0)
}

func (p *Port) HasOverrun() bool {
	return p.overrun.Swap(false)
}

func (p *Port) Connected() bool {
	return p.port.Fd() >= 0
}

func (p *Port) Close() error {
	return p.port.Close()
}
