package mavrouter

import (
	"testing"
	"time"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
)

func TestResolveUnknownTargetBroadcasts(t *testing.T) {
	r := New()
	now := time.Now()

	hints := r.Resolve(true, 7, interfaces.Bit(0)|interfaces.Bit(1), now)
	if hints.HasExplicitTarget {
		t.Error("unknown sysid should not resolve to an explicit target")
	}
	if r.Broadcasts() != 1 {
		t.Errorf("Broadcasts = %d, want 1", r.Broadcasts())
	}
}

func TestResolveZeroSysidIsBroadcastConvention(t *testing.T) {
	r := New()
	now := time.Now()
	r.Learn(0, 2, now)

	hints := r.Resolve(true, 0, interfaces.Bit(0)|interfaces.Bit(2), now)
	if hints.HasExplicitTarget {
		t.Error("sysid 0 should always be treated as broadcast, even if learned")
	}
}

func TestLearnThenResolveIntersectsFlowDefault(t *testing.T) {
	r := New()
	now := time.Now()
	r.Learn(5, 2, now) // sysid 5 reachable via sender idx 2 (e.g. UART2)

	flowDefault := interfaces.Bit(0) | interfaces.Bit(2) | interfaces.Bit(3)
	hints := r.Resolve(true, 5, flowDefault, now)
	if !hints.HasExplicitTarget {
		t.Fatal("learned sysid should resolve to an explicit target")
	}
	want := interfaces.Bit(2)
	if hints.TargetDevices != want {
		t.Errorf("TargetDevices = %v, want %v", hints.TargetDevices, want)
	}
	if r.UnicastHits() != 1 {
		t.Errorf("UnicastHits = %d, want 1", r.UnicastHits())
	}
}

func TestLearnMergesMultipleInterfaces(t *testing.T) {
	r := New()
	now := time.Now()
	r.Learn(5, 1, now)
	r.Learn(5, 3, now)

	hints := r.Resolve(true, 5, interfaces.Bit(0)|interfaces.Bit(1)|interfaces.Bit(3), now)
	want := interfaces.Bit(1) | interfaces.Bit(3)
	if hints.TargetDevices != want {
		t.Errorf("TargetDevices = %v, want %v", hints.TargetDevices, want)
	}
}

func TestResolveExpiredEntryFallsBackToBroadcast(t *testing.T) {
	r := New()
	start := time.Now()
	r.Learn(9, 0, start)

	later := start.Add(constants.MavlinkRouterEntryTTL + time.Second)
	hints := r.Resolve(true, 9, interfaces.Bit(0), later)
	if hints.HasExplicitTarget {
		t.Error("an entry older than the TTL should no longer resolve to an explicit target")
	}
}

func TestExpireStaleRemovesOldEntries(t *testing.T) {
	r := New()
	start := time.Now()
	r.Learn(1, 0, start)
	r.Learn(2, 1, start)

	r.ExpireStale(start.Add(constants.MavlinkRouterEntryTTL + time.Second))

	if _, ok := r.entries[1]; ok {
		t.Error("entry 1 should have been expired")
	}
	if _, ok := r.entries[2]; ok {
		t.Error("entry 2 should have been expired")
	}
	if len(r.order) != 0 {
		t.Errorf("order should be empty after expiring all entries, got %v", r.order)
	}
}

func TestLearnEvictsOldestBeyondCapacity(t *testing.T) {
	r := New()
	now := time.Now()
	for i := 0; i < constants.MavlinkRouterMaxEntries; i++ {
		r.Learn(byte(i+1), 0, now)
	}
	if len(r.entries) != constants.MavlinkRouterMaxEntries {
		t.Fatalf("entries = %d, want %d", len(r.entries), constants.MavlinkRouterMaxEntries)
	}

	// One more distinct sysid should evict sysid 1, the oldest untouched entry.
	r.Learn(byte(constants.MavlinkRouterMaxEntries+1), 0, now)
	if len(r.entries) != constants.MavlinkRouterMaxEntries {
		t.Errorf("entries = %d, want %d after eviction", len(r.entries), constants.MavlinkRouterMaxEntries)
	}
	if _, ok := r.entries[1]; ok {
		t.Error("sysid 1 should have been evicted as the oldest entry")
	}
}

func TestLearnTouchRefreshesLRUPosition(t *testing.T) {
	r := New()
	now := time.Now()
	for i := 0; i < constants.MavlinkRouterMaxEntries; i++ {
		r.Learn(byte(i+1), 0, now)
	}

	// Re-touch sysid 1 so it's no longer the oldest.
	r.Learn(1, 0, now)
	r.Learn(byte(constants.MavlinkRouterMaxEntries+1), 0, now)

	if _, ok := r.entries[1]; !ok {
		t.Error("sysid 1 should have survived eviction after being re-touched")
	}
	if _, ok := r.entries[2]; ok {
		t.Error("sysid 2 should now be the oldest and get evicted instead")
	}
}
