// Package mavrouter implements the shared MAVLink unicast router: it
// learns which physical interface each sysid is reachable through and
// annotates packets with a resolved target sender mask. Exactly one
// instance serves every MAVLink flow so learning crosses flows, per the
// data model's sharing invariant.
package mavrouter

import (
	"sync"
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
)

type entry struct {
	mask     interfaces.SenderMask
	lastSeen time.Time
}

// Router is the sysid -> (interfaceMask, lastSeenMs) learning table, bounded
// to constants.MavlinkRouterMaxEntries and LRU-evicted.
type Router struct {
	mu      sync.Mutex
	entries map[byte]*entry
	order   []byte // most-recently-touched at the back, for LRU eviction

	unicastHits uint64
	broadcasts  uint64
}

// New constructs an empty router. The pipeline constructs exactly one and
// shares it across every MAVLink-routed flow.
func New() *Router {
	return &Router{entries: make(map[byte]*entry)}
}

// Learn records that sysid is reachable via senderIdx's bit, refreshing
// its LRU position and last-seen time.
func (r *Router) Learn(sysid byte, senderIdx int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sysid]
	if !ok {
		if len(r.entries) >= constants.MavlinkRouterMaxEntries {
			r.evictOldestLocked()
		}
		e = &entry{}
		r.entries[sysid] = e
	} else {
		r.touchLocked(sysid)
	}
	e.mask |= interfaces.Bit(senderIdx)
	e.lastSeen = now
	if !ok {
		r.order = append(r.order, sysid)
	}
}

// Resolve computes routing hints for a packet: if targetSysid is zero
// (broadcast convention) or unknown to the table, hasExplicitTarget is
// false and the flow's default mask applies untouched. Otherwise the
// known mask is intersected with the flow's default mask.
func (r *Router) Resolve(hasTarget bool, targetSysid byte, flowDefault interfaces.SenderMask, now time.Time) interfaces.RoutingHints {
	if !hasTarget || targetSysid == 0 {
		r.mu.Lock()
		r.broadcasts++
		r.mu.Unlock()
		return interfaces.RoutingHints{HasExplicitTarget: false}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[targetSysid]
	if !ok || now.Sub(e.lastSeen) > constants.MavlinkRouterEntryTTL {
		r.broadcasts++
		return interfaces.RoutingHints{HasExplicitTarget: false}
	}

	r.unicastHits++
	return interfaces.RoutingHints{
		HasExplicitTarget: true,
		TargetDevices:     e.mask & flowDefault,
	}
}

// UnicastHits and Broadcasts expose the router's decision counters.
func (r *Router) UnicastHits() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unicastHits
}

func (r *Router) Broadcasts() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcasts
}

// ExpireStale drops entries untouched for longer than the router's TTL.
// The pipeline orchestrator does not call it; entries otherwise leave the
// table only by LRU eviction.
func (r *Router) ExpireStale(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sysid, e := range r.entries {
		if now.Sub(e.lastSeen) > constants.MavlinkRouterEntryTTL {
			delete(r.entries, sysid)
			r.removeFromOrderLocked(sysid)
		}
	}
}

func (r *Router) touchLocked(sysid byte) {
	r.removeFromOrderLocked(sysid)
	r.order = append(r.order, sysid)
}

func (r *Router) removeFromOrderLocked(sysid byte) {
	for i, s := range r.order {
		if s == sysid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Router) evictOldestLocked() {
	if len(r.order) == 0 {
		return
	}
	oldest := r.order[0]
	r.order = r.order[1:]
	delete(r.entries, oldest)
}
