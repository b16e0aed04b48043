package sender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wingbridge/corepipeline/internal/interfaces"
)

type fakeTransport struct {
	writable  int
	writes    [][]byte
	failWrite bool
}

func (f *fakeTransport) Read([]byte) (int, error) { return 0, nil }
func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.failWrite {
		return 0, assertErr{}
	}
	f.writes = append(f.writes, append([]byte{}, p...))
	return len(p), nil
}
func (f *fakeTransport) AvailableForWrite() int { return f.writable }
func (f *fakeTransport) HasPacketTimeout() bool { return false }
func (f *fakeTransport) HasOverrun() bool       { return false }
func (f *fakeTransport) Connected() bool        { return true }
func (f *fakeTransport) Close() error           { return nil }

type assertErr struct{}

func (assertErr) Error() string { return "write failed" }

func TestUARTSender_WritesWhenCapacityAllows(t *testing.T) {
	tr := &fakeTransport{writable: 64}
	s := NewUARTSender("UART2", tr, 0, 0, interfaces.NoOpObserver{}, nil)

	require.True(t, s.Enqueue(interfaces.ParsedPacket{Payload: []byte("hello")}))
	s.ProcessSendQueue(false)

	require.Len(t, tr.writes, 1)
	require.Equal(t, "hello", string(tr.writes[0]))
	require.EqualValues(t, 1, s.GetSentCount())
	require.EqualValues(t, 0, s.GetQueueDepth())
}

func TestUARTSender_RequeuesWhenNoCapacity(t *testing.T) {
	tr := &fakeTransport{writable: 0}
	s := NewUARTSender("UART3", tr, 0, 0, interfaces.NoOpObserver{}, nil)

	require.True(t, s.Enqueue(interfaces.ParsedPacket{Payload: []byte("abc")}))
	s.ProcessSendQueue(false)

	require.Empty(t, tr.writes)
	require.EqualValues(t, 1, s.GetQueueDepth(), "packet must stay queued, not be dropped")
}

func TestQueue_DropsNewestOnFull(t *testing.T) {
	q := newQueue(2, 1024)
	require.True(t, q.enqueue(interfaces.ParsedPacket{Payload: []byte("a")}))
	require.True(t, q.enqueue(interfaces.ParsedPacket{Payload: []byte("b")}))
	require.False(t, q.enqueue(interfaces.ParsedPacket{Payload: []byte("c")}), "third packet must be dropped, not evict the first two")

	_, dropped, _ := q.stats()
	require.EqualValues(t, 1, dropped)
}

func TestQueue_WarnThresholdLatchesOncePerCrossing(t *testing.T) {
	q := newQueue(32, 1<<20)
	for i := 0; i < 16; i++ {
		q.enqueue(interfaces.ParsedPacket{Payload: []byte{byte(i)}})
	}
	above, below := q.checkWarnThreshold()
	require.True(t, above)
	require.False(t, below)

	// Still above threshold: must not re-fire.
	above, below = q.checkWarnThreshold()
	require.False(t, above)
	require.False(t, below)

	for i := 0; i < 10; i++ {
		q.popFront()
	}
	above, below = q.checkWarnThreshold()
	require.False(t, above)
	require.True(t, below)
}

func TestUDPSender_CoalescesUntilDeadline(t *testing.T) {
	ring := &recordingRing{}
	s := NewUDPSender(ring, true, 0, 0, interfaces.NoOpObserver{}, nil)

	payload := make([]byte, 700)
	s.Enqueue(interfaces.ParsedPacket{Payload: payload})
	s.Enqueue(interfaces.ParsedPacket{Payload: payload})
	s.ProcessSendQueue(true)
	require.Empty(t, ring.entries, "batch must not flush before MTU or deadline")

	time.Sleep(3 * time.Millisecond)
	s.ProcessSendQueue(false) // empty local queue; only the deadline flush fires

	require.Len(t, ring.entries, 1)
	require.Len(t, ring.entries[0], 1400)
	coalesced, batches, avg := s.BatchStats()
	require.EqualValues(t, 1, coalesced)
	require.EqualValues(t, 1, batches)
	require.InDelta(t, 1400, avg, 0.001)
}

func TestUDPSender_FlushesAtMTU(t *testing.T) {
	ring := &recordingRing{}
	s := NewUDPSender(ring, true, 0, 0, interfaces.NoOpObserver{}, nil)

	payload := make([]byte, 900)
	s.Enqueue(interfaces.ParsedPacket{Payload: payload})
	s.Enqueue(interfaces.ParsedPacket{Payload: payload})
	s.ProcessSendQueue(true)

	require.Len(t, ring.entries, 1, "second packet overflowing MTU must force an immediate flush of the first")
}

type recordingRing struct {
	entries [][]byte
}

func (r *recordingRing) Enqueue(p []byte) bool {
	r.entries = append(r.entries, append([]byte{}, p...))
	return true
}
