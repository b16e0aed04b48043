package sbusrouter

import (
	"testing"
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
)

type fakeSink struct {
	name   string
	frames [][constants.SBUSFrameSize]byte
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) WriteSBUSFrame(frame [constants.SBUSFrameSize]byte) error {
	s.frames = append(s.frames, frame)
	return nil
}

func newTestRouter(mode ArbitrationMode, manual SourceID) *Router {
	r := Instance()
	r.Reset()
	r.Configure(mode, manual)
	return r
}

func TestRouteFrameAutoPrefersDevice1OverDevice2(t *testing.T) {
	r := newTestRouter(ModeAuto, SourceDevice1)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)

	now := time.Now()
	var frame2 [constants.SBUSFrameSize]byte
	frame2[0] = 2
	r.RouteFrame(frame2, SourceDevice2, now)

	var frame1 [constants.SBUSFrameSize]byte
	frame1[0] = 1
	r.RouteFrame(frame1, SourceDevice1, now)

	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(sink.frames))
	}
	if sink.frames[1][0] != 1 {
		t.Error("device1 frame should win and be written once device1 becomes live")
	}
}

func TestRouteFrameIgnoresLowerPrioritySourceWhileWinnerLive(t *testing.T) {
	r := newTestRouter(ModeAuto, SourceDevice1)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)

	now := time.Now()
	var frame1 [constants.SBUSFrameSize]byte
	frame1[0] = 1
	r.RouteFrame(frame1, SourceDevice1, now)

	var frame3 [constants.SBUSFrameSize]byte
	frame3[0] = 9
	r.RouteFrame(frame3, SourceUDP, now)

	if len(sink.frames) != 1 {
		t.Fatalf("expected only device1's frame to be written, got %d writes", len(sink.frames))
	}
}

func TestManualModeIgnoresOtherSources(t *testing.T) {
	r := newTestRouter(ModeManual, SourceUDP)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)

	now := time.Now()
	var frame1 [constants.SBUSFrameSize]byte
	frame1[0] = 1
	r.RouteFrame(frame1, SourceDevice1, now)
	if len(sink.frames) != 0 {
		t.Error("manual mode pinned to UDP should ignore device1 frames")
	}

	var frameUDP [constants.SBUSFrameSize]byte
	frameUDP[0] = 7
	r.RouteFrame(frameUDP, SourceUDP, now)
	if len(sink.frames) != 1 || sink.frames[0][0] != 7 {
		t.Error("manual mode should route the pinned source's frame")
	}
}

func TestFailsafeFlagDisqualifiesSource(t *testing.T) {
	r := newTestRouter(ModeAuto, SourceDevice1)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)

	now := time.Now()
	var bad [constants.SBUSFrameSize]byte
	bad[failsafeFlagByte] = failsafeBit
	r.RouteFrame(bad, SourceDevice1, now)

	var good [constants.SBUSFrameSize]byte
	good[0] = 42
	r.RouteFrame(good, SourceDevice2, now)

	if len(sink.frames) != 1 || sink.frames[0][0] != 42 {
		t.Error("a source in failsafe should be skipped in favor of a healthy lower-priority source")
	}
}

func TestTickEmitsFailsafeHeartbeatAfterSourceGoesQuiet(t *testing.T) {
	r := newTestRouter(ModeAuto, SourceDevice1)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)

	now := time.Now()
	var good [constants.SBUSFrameSize]byte
	good[0] = 5
	r.RouteFrame(good, SourceDevice1, now)

	quiet := now.Add(constants.SBUSSourceTimeout + time.Millisecond)
	r.Tick(quiet)

	if len(sink.frames) != 2 {
		t.Fatalf("expected a failsafe heartbeat frame, got %d total frames", len(sink.frames))
	}
	heartbeat := sink.frames[1]
	if heartbeat[failsafeFlagByte]&failsafeBit == 0 {
		t.Error("heartbeat frame should carry the failsafe flag")
	}
	if heartbeat[0] != 5 {
		t.Error("heartbeat frame should replay the last known-good frame's payload")
	}
}

func TestTickNoHeartbeatWithoutPriorGoodFrame(t *testing.T) {
	r := newTestRouter(ModeAuto, SourceDevice1)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)

	r.Tick(time.Now())
	if len(sink.frames) != 0 {
		t.Error("Tick should not emit anything before any good frame has ever been seen")
	}
}

func TestUnregisterSinkStopsDelivery(t *testing.T) {
	r := newTestRouter(ModeAuto, SourceDevice1)
	sink := &fakeSink{name: "uart3"}
	r.RegisterSink(sink)
	r.UnregisterSink("uart3")

	var frame [constants.SBUSFrameSize]byte
	r.RouteFrame(frame, SourceDevice1, time.Now())
	if len(sink.frames) != 0 {
		t.Error("an unregistered sink should receive no frames")
	}
}
