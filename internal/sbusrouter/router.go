// Package sbusrouter implements the process-wide singleton SBUS arbitration
// router: it accepts frames tagged with a source id from every SBUS fast
// parser, arbitrates between simultaneous sources, and writes the selected
// frame synchronously to every registered output sink, bypassing the
// general sender queue so SBUS end-to-end latency stays under a
// millisecond.
package sbusrouter

import (
	"sync"
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
)

// SourceID identifies which configured SBUS input produced a frame.
type SourceID int

const (
	SourceDevice1 SourceID = iota
	SourceDevice2
	SourceUDP
)

// sourcePriority is the fixed Auto-mode preference order: a directly wired
// UART source always outranks one arriving over the network.
var sourcePriority = []SourceID{SourceDevice1, SourceDevice2, SourceUDP}

// ArbitrationMode selects how the router picks among live sources.
type ArbitrationMode int

const (
	ModeAuto ArbitrationMode = iota
	ModeManual
)

// Sink is a registered SBUS output; writes happen synchronously from
// whatever goroutine calls RouteFrame or Tick, so implementations must not
// block.
type Sink interface {
	Name() string
	WriteSBUSFrame(frame [constants.SBUSFrameSize]byte) error
}

type sourceState struct {
	lastFrame [constants.SBUSFrameSize]byte
	lastSeen  time.Time
	failsafe  bool
	have      bool
}

// Router arbitrates among SBUS sources and fans the winning frame out to
// every registered sink. One instance serves the whole process; flows
// never construct their own.
type Router struct {
	mu            sync.Mutex
	mode          ArbitrationMode
	manualSource  SourceID
	sources       map[SourceID]*sourceState
	sinks         map[string]Sink
	lastGoodFrame [constants.SBUSFrameSize]byte
	haveGoodFrame bool
	lastHeartbeat time.Time
}

var (
	instance *Router
	once     sync.Once
)

// Instance returns the process-wide SBUS router, constructing it on first
// use.
func Instance() *Router {
	once.Do(func() {
		instance = &Router{
			sources: make(map[SourceID]*sourceState),
			sinks:   make(map[string]Sink),
		}
	})
	return instance
}

// Configure sets the arbitration mode and, for Manual mode, the pinned
// source. Called once at pipeline construction.
func (r *Router) Configure(mode ArbitrationMode, manualSource SourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	r.manualSource = manualSource
}

// RegisterSink adds an output sink; idempotent by name.
func (r *Router) RegisterSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.Name()] = s
}

// UnregisterSink removes a previously registered sink.
func (r *Router) UnregisterSink(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, name)
}

// Reset clears all sources and sinks; used between test cases since the
// router is a package-level singleton.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = make(map[SourceID]*sourceState)
	r.sinks = make(map[string]Sink)
	r.haveGoodFrame = false
	r.lastHeartbeat = time.Time{}
}

const failsafeFlagByte = 23
const failsafeBit = 0x08

// RouteFrame accepts a freshly parsed 25-byte SBUS frame from source and,
// if it is (or becomes) the arbitrated winner, writes it synchronously to
// every sink.
func (r *Router) RouteFrame(frame [constants.SBUSFrameSize]byte, source SourceID, now time.Time) {
	r.mu.Lock()
	st, ok := r.sources[source]
	if !ok {
		st = &sourceState{}
		r.sources[source] = st
	}
	st.lastFrame = frame
	st.lastSeen = now
	st.have = true
	st.failsafe = frame[failsafeFlagByte]&failsafeBit != 0

	winner, frameToSend, ok := r.arbitrate(now)
	if ok && winner == source {
		r.lastGoodFrame = frameToSend
		r.haveGoodFrame = true
	}
	sinks := r.sinksSnapshot()
	r.mu.Unlock()

	if ok && winner == source {
		r.writeAll(sinks, frameToSend)
	}
}

// Tick is called periodically by the pipeline orchestrator (at least at
// the 50Hz failsafe heartbeat rate) so that a lost source still produces
// failsafe frames even when nothing is actively routing.
func (r *Router) Tick(now time.Time) {
	r.mu.Lock()
	winner, frame, ok := r.arbitrate(now)
	needHeartbeat := false
	if !ok && r.haveGoodFrame {
		if now.Sub(r.lastHeartbeat) >= constants.SBUSFailsafeRate {
			frame = r.lastGoodFrame
			frame[failsafeFlagByte] |= failsafeBit
			needHeartbeat = true
			r.lastHeartbeat = now
		}
	}
	_ = winner
	sinks := r.sinksSnapshot()
	r.mu.Unlock()

	if needHeartbeat {
		r.writeAll(sinks, frame)
	}
}

// arbitrate picks the current winning source under the lock. Returns
// ok=false when no source is currently live (Auto) or the manual source
// has timed out.
func (r *Router) arbitrate(now time.Time) (SourceID, [constants.SBUSFrameSize]byte, bool) {
	var zero [constants.SBUSFrameSize]byte
	if r.mode == ModeManual {
		st, have := r.sources[r.manualSource]
		if have && st.have && now.Sub(st.lastSeen) < constants.SBUSSourceTimeout && !st.failsafe {
			return r.manualSource, st.lastFrame, true
		}
		return 0, zero, false
	}

	for _, id := range sourcePriority {
		st, have := r.sources[id]
		if have && st.have && now.Sub(st.lastSeen) < constants.SBUSSourceTimeout && !st.failsafe {
			return id, st.lastFrame, true
		}
	}
	return 0, zero, false
}

func (r *Router) sinksSnapshot() []Sink {
	out := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		out = append(out, s)
	}
	return out
}

func (r *Router) writeAll(sinks []Sink, frame [constants.SBUSFrameSize]byte) {
	for _, s := range sinks {
		_ = s.WriteSBUSFrame(frame)
	}
}
