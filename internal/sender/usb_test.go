package sender

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wingbridge/corepipeline/internal/interfaces"
)

// splitWriteTransport accepts writes up to a capacity that can be changed
// between calls, letting a test simulate a chunk succeeding and a later
// chunk in the same payload failing.
type splitWriteTransport struct {
	caps   []int // AvailableForWrite() result per call, last value repeats
	call   int
	writes [][]byte
}

func (f *splitWriteTransport) capForCall() int {
	if f.call >= len(f.caps) {
		return f.caps[len(f.caps)-1]
	}
	return f.caps[f.call]
}

func (f *splitWriteTransport) Read([]byte) (int, error) { return 0, nil }

func (f *splitWriteTransport) Write(p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte{}, p...))
	f.call++
	return len(p), nil
}

func (f *splitWriteTransport) AvailableForWrite() int { return f.capForCall() }
func (f *splitWriteTransport) HasPacketTimeout() bool { return false }
func (f *splitWriteTransport) HasOverrun() bool       { return false }
func (f *splitWriteTransport) Connected() bool        { return true }
func (f *splitWriteTransport) Close() error           { return nil }

func TestUSBSender_PartialWriteRequeuesOnlyUnsentSuffix(t *testing.T) {
	// First chunk (512B) fits, second chunk (the remaining 100B) doesn't.
	tr := &splitWriteTransport{caps: []int{usbMTU, 0}}
	s := NewUSBSender(tr, 0, 0, interfaces.NoOpObserver{}, nil)

	payload := make([]byte, usbMTU+100)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.True(t, s.Enqueue(interfaces.ParsedPacket{Payload: payload}))

	s.ProcessSendQueue(false)

	require.Len(t, tr.writes, 1, "only the first chunk should have gone out before the stall")
	require.Equal(t, payload[:usbMTU], tr.writes[0])
	require.EqualValues(t, 1, s.GetQueueDepth(), "the remainder must stay queued")

	// Let the retry through and confirm only the unsent suffix is resent.
	tr.caps = []int{usbMTU}
	s.ProcessSendQueue(false)

	require.Len(t, tr.writes, 2)
	require.Equal(t, payload[usbMTU:], tr.writes[1], "retry must not retransmit the already-sent prefix")
	require.EqualValues(t, 0, s.GetQueueDepth())
	require.EqualValues(t, 1, s.GetSentCount())
}
