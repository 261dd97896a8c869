package registry

import (
	"testing"
	"time"

	"mobiletriage/pkg/model"
)

func recs(ids ...string) []model.DeviceRecord {
	out := make([]model.DeviceRecord, len(ids))
	for i, id := range ids {
		out[i] = model.DeviceRecord{ID: id, Platform: model.PlatformAndroid}
	}
	return out
}

func TestFirstSyncConnectsEverything(t *testing.T) {
	r := New()
	connected, disconnected := r.Sync(recs("a", "b"), time.Now())
	if len(connected) != 2 || len(disconnected) != 0 {
		t.Fatalf("expected 2 connected / 0 disconnected, got %d/%d", len(connected), len(disconnected))
	}
	if r.Len() != 2 {
		t.Fatalf("registry should track 2 devices, got %d", r.Len())
	}
}

func TestDiffDetectsTransitions(t *testing.T) {
	r := New()
	r.Sync(recs("a", "b"), time.Now())
	connected, disconnected := r.Sync(recs("b", "c"), time.Now())
	if len(connected) != 1 || connected[0].ID != "c" {
		t.Fatalf("expected c connected, got %v", connected)
	}
	if len(disconnected) != 1 || disconnected[0].ID != "a" {
		t.Fatalf("expected a disconnected, got %v", disconnected)
	}
}

func TestRescanOfSameSetIsQuiet(t *testing.T) {
	r := New()
	r.Sync(recs("a"), time.Now())
	connected, disconnected := r.Sync(recs("a"), time.Now())
	if len(connected) != 0 || len(disconnected) != 0 {
		t.Fatalf("stable set must produce no events, got %v / %v", connected, disconnected)
	}
}

func TestRescanStampsLastSeen(t *testing.T) {
	r := New()
	early := time.Now().Add(-time.Hour)
	r.Sync(recs("a"), early)
	late := time.Now()
	r.Sync(recs("a"), late)
	got := r.Snapshot()
	if len(got) != 1 || !got[0].LastSeenAt.Equal(late) {
		t.Fatalf("expected refreshed LastSeenAt, got %v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	r.Sync(recs("a"), time.Now())
	snap := r.Snapshot()
	snap[0].ID = "mutated"
	if r.Snapshot()[0].ID != "a" {
		t.Fatalf("Snapshot must not expose live state")
	}
}
