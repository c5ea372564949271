package internal

import (
	"reflect"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) (*PresenceStore, *Engine) {
	t.Helper()
	store := NewPresenceStore()
	engine := NewEngine(store, DefaultRadiusMeters, DefaultStaleAfter)
	return store, engine
}

func placeUser(store *PresenceStore, userID int64, name string, lat, lon float64, active bool) {
	store.Upsert(userID, PresencePatch{
		Profile:  &Profile{Username: name},
		Position: &Position{Latitude: lat, Longitude: lon, At: time.Now()},
		Active:   &active,
	})
}

func nearbyIDs(engine *Engine, userID int64) []int64 {
	ids := []int64{}
	for _, u := range engine.Nearby(userID) {
		ids = append(ids, u.UserID)
	}
	return ids
}

func TestNearbySymmetry(t *testing.T) {
	store, engine := newTestEngine(t)
	placeUser(store, 1, "alice", 40.0, -73.0, true)
	placeUser(store, 2, "bob", 40.00005, -73.00005, true)

	if got := nearbyIDs(engine, 1); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("nearby(1) = %v, want [2]", got)
	}
	if got := nearbyIDs(engine, 2); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("nearby(2) = %v, want [1]", got)
	}
}

func TestNearbySelfExclusion(t *testing.T) {
	store, engine := newTestEngine(t)
	placeUser(store, 1, "alice", 40.0, -73.0, true)
	for _, u := range engine.Nearby(1) {
		if u.UserID == 1 {
			t.Fatalf("observer included in own nearby set")
		}
	}
}

func TestInactiveInvisibility(t *testing.T) {
	store, engine := newTestEngine(t)
	placeUser(store, 1, "alice", 40.0, -73.0, true)
	placeUser(store, 2, "bob", 40.0, -73.0, false)

	if got := engine.Nearby(2); len(got) != 0 {
		t.Fatalf("inactive observer must see nothing, got %v", got)
	}
	if got := nearbyIDs(engine, 1); len(got) != 0 {
		t.Fatalf("inactive subject must not be seen, got %v", got)
	}
}

func TestNearbyDistanceBoundary(t *testing.T) {
	store, engine := newTestEngine(t)
	placeUser(store, 1, "alice", 0, 0, true)

	placeUser(store, 2, "bob", 0, 0.00068, true) // ~75.6m: inside
	if got := nearbyIDs(engine, 1); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("75.6m apart should be nearby, got %v", got)
	}

	placeUser(store, 2, "bob", 0, 0.0008, true) // ~89m: outside
	if got := nearbyIDs(engine, 1); len(got) != 0 {
		t.Fatalf("89m apart should not be nearby, got %v", got)
	}
}

func TestNearbyDeterministicAndIdempotent(t *testing.T) {
	store, engine := newTestEngine(t)
	placeUser(store, 1, "alice", 40.0, -73.0, true)
	placeUser(store, 3, "carol", 40.0001, -73.0001, true)
	placeUser(store, 2, "bob", 40.00005, -73.00005, true)

	first := engine.Nearby(1)
	// Re-applying the identical update must not change any result.
	placeUser(store, 2, "bob", 40.00005, -73.00005, true)
	second := engine.Nearby(1)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical state produced different sets: %v vs %v", first, second)
	}
	if len(first) != 2 || first[0].UserID != 2 || first[1].UserID != 3 {
		t.Fatalf("expected ordered set [2 3], got %v", first)
	}
}

func TestNearbyWithoutPosition(t *testing.T) {
	store, engine := newTestEngine(t)
	active := true
	store.Upsert(1, PresencePatch{Profile: &Profile{Username: "alice"}, Active: &active})
	placeUser(store, 2, "bob", 40.0, -73.0, true)

	// Joined but never sent coordinates: sees nothing, is seen by no one.
	if got := engine.Nearby(1); len(got) != 0 {
		t.Fatalf("observer without position must get empty set, got %v", got)
	}
	if got := nearbyIDs(engine, 2); len(got) != 0 {
		t.Fatalf("subject without position must be excluded, got %v", got)
	}
}

func TestNearbyStaleCutoff(t *testing.T) {
	store := NewPresenceStore()
	engine := NewEngine(store, DefaultRadiusMeters, time.Minute)
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }

	active := true
	store.Upsert(1, PresencePatch{
		Profile:  &Profile{Username: "alice"},
		Position: &Position{Latitude: 0, Longitude: 0, At: base},
		Active:   &active,
	})
	store.Upsert(2, PresencePatch{
		Profile:  &Profile{Username: "bob"},
		Position: &Position{Latitude: 0, Longitude: 0.0001, At: base.Add(-2 * time.Minute)},
		Active:   &active,
	})

	if got := nearbyIDs(engine, 1); len(got) != 0 {
		t.Fatalf("stale position must be excluded, got %v", got)
	}
}

func TestAffectedCoversActiveAndActor(t *testing.T) {
	store, engine := newTestEngine(t)
	placeUser(store, 1, "alice", 40.0, -73.0, true)
	placeUser(store, 2, "bob", 41.0, -74.0, true)
	placeUser(store, 3, "carol", 42.0, -75.0, false)

	affected := engine.Affected(3)
	if !reflect.DeepEqual(affected, []int64{1, 2, 3}) {
		t.Fatalf("affected = %v, want [1 2 3]", affected)
	}

	affected = engine.Affected(2)
	if !reflect.DeepEqual(affected, []int64{1, 2}) {
		t.Fatalf("affected = %v, want [1 2]", affected)
	}
}

func TestUnknownObserverGetsEmptySet(t *testing.T) {
	_, engine := newTestEngine(t)
	if got := engine.Nearby(42); got == nil || len(got) != 0 {
		t.Fatalf("unknown observer must get empty non-nil set, got %v", got)
	}
}
