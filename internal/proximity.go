package internal

import "time"

// DefaultStaleAfter drops positions that have not been refreshed recently
// from proximity results, so clients that stop emitting without
// disconnecting do not linger on other users' maps.
const DefaultStaleAfter = 5 * time.Minute

// Engine computes nearby sets over PresenceStore snapshots. Nearby is a pure
// function of the store state, the radius, and the clock, which keeps the
// results deterministic and testable.
//
// Each query is O(n) over active users and a full dispatch sweep is O(n²).
// That is fine for rooms of tens to low hundreds of users; past that, a
// spatial hash grid over lat/lon cells is the upgrade path.
type Engine struct {
	store        *PresenceStore
	radiusMeters float64
	staleAfter   time.Duration
	now          func() time.Time
}

// NewEngine builds an engine over store. A radius <= 0 falls back to
// DefaultRadiusMeters; staleAfter <= 0 disables the freshness cutoff.
func NewEngine(store *PresenceStore, radiusMeters float64, staleAfter time.Duration) *Engine {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Engine{
		store:        store,
		radiusMeters: radiusMeters,
		staleAfter:   staleAfter,
		now:          time.Now,
	}
}

// RadiusMeters returns the configured proximity radius.
func (e *Engine) RadiusMeters() float64 { return e.radiusMeters }

// Nearby returns the other active users within the radius of userID, ordered
// by userID. Inactive observers, observers without a position, and unknown
// users all get an empty set: they see nothing while invisible.
func (e *Engine) Nearby(userID int64) []NearbyUser {
	observer, ok := e.store.Get(userID)
	if !ok || !observer.Active || !observer.HasPosition {
		return []NearbyUser{}
	}
	now := e.now()
	nearby := []NearbyUser{}
	for _, subject := range e.store.AllActive() {
		if subject.UserID == userID {
			continue
		}
		if !subject.HasPosition || e.stale(subject, now) {
			continue
		}
		if !WithinRadius(observer.Latitude, observer.Longitude, subject.Latitude, subject.Longitude, e.radiusMeters) {
			continue
		}
		nearby = append(nearby, NearbyUser{
			UserID:    subject.UserID,
			Username:  subject.Profile.Username,
			Latitude:  subject.Latitude,
			Longitude: subject.Longitude,
			Avatar:    subject.Profile.Avatar,
			IsActive:  subject.Active,
			Headline:  subject.Profile.Headline,
			Pronouns:  subject.Profile.Pronouns,
		})
	}
	return nearby
}

// Affected returns the users whose nearby set may have changed after
// changedID's state mutated. Any position change can cross any other active
// user's radius, so the correct full-sweep answer is every active user, plus
// the acting user (who needs their own set refreshed even when going
// inactive).
func (e *Engine) Affected(changedID int64) []int64 {
	active := e.store.AllActive()
	affected := make([]int64, 0, len(active)+1)
	seen := false
	for _, record := range active {
		affected = append(affected, record.UserID)
		if record.UserID == changedID {
			seen = true
		}
	}
	if !seen {
		affected = append(affected, changedID)
	}
	return affected
}

func (e *Engine) stale(record PresenceRecord, now time.Time) bool {
	if e.staleAfter <= 0 {
		return false
	}
	return now.Sub(record.LastUpdatedAt) > e.staleAfter
}
