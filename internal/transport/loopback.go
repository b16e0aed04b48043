// Package transport defines the in-process loopback transport used by tests
// and the UDP socket transport; the concrete Linux transports (UART, USB CDC) live in the
// serial and usbcdc subpackages to keep their cgo-free but syscall-heavy
// build tags isolated from this package's portable code.
package transport

import (
	"sync"
	"time"
)

// Loopback is an in-process byte-queue transport: bytes written to one end
// become readable from the other. Mutex-guarded like the teacher's sharded
// memory backend, but over a single queue since a byte stream has no
// parallel-access range to shard.
type Loopback struct {
	mu   sync.Mutex
	buf  []byte
	peer *Loopback

	lastWriteAt  time.Time
	timeoutGap   time.Duration
	overrun      bool
	connected    bool
	maxQueued    int
}

// NewLoopbackPair returns two ends of one loopback link, each other's peer.
func NewLoopbackPair(maxQueued int, timeoutGap time.Duration) (*Loopback, *Loopback) {
	if maxQueued <= 0 {
		maxQueued = 1 << 16
	}
	a := &Loopback{connected: true, maxQueued: maxQueued, timeoutGap: timeoutGap}
	b := &Loopback{connected: true, maxQueued: maxQueued, timeoutGap: timeoutGap}
	a.peer, b.peer = b, a
	return a, b
}

func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.peer.mu.Lock()
	defer l.peer.mu.Unlock()

	if len(l.peer.buf)+len(p) > l.peer.maxQueued {
		l.peer.overrun = true
		room := l.peer.maxQueued - len(l.peer.buf)
		if room <= 0 {
			return 0, nil
		}
		p = p[:room]
	}
	l.peer.buf = append(l.peer.buf, p...)
	l.peer.lastWriteAt = time.Now()
	return len(p), nil
}

func (l *Loopback) AvailableForWrite() int {
	l.peer.mu.Lock()
	defer l.peer.mu.Unlock()
	return l.peer.maxQueued - len(l.peer.buf)
}

func (l *Loopback) HasPacketTimeout() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timeoutGap == 0 || l.lastWriteAt.IsZero() {
		return false
	}
	if time.Since(l.lastWriteAt) <= l.timeoutGap {
		return false
	}
	l.lastWriteAt = time.Time{}
	return true
}

func (l *Loopback) HasOverrun() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.overrun
	l.overrun = false
	return v
}

func (l *Loopback) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	return nil
}
