package internal

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Profile is the snapshot of account fields attached to a presence record
// when a user joins tracking. It is loaded once per connection; profile
// edits take effect on the next connect.
type Profile struct {
	Username string
	Headline *string
	Pronouns *string
	Avatar   json.RawMessage
}

// PresenceRecord is the live state of one user: last known position, the
// activity flag that gates visibility, and the profile snapshot dispatched
// to observers. Purely in-memory, scoped to the server process.
type PresenceRecord struct {
	UserID        int64
	Profile       Profile
	Latitude      float64
	Longitude     float64
	HasPosition   bool
	Active        bool
	LastUpdatedAt time.Time
}

// PresencePatch is a partial update merged into an existing record by
// Upsert. Nil fields are left untouched.
type PresencePatch struct {
	Profile  *Profile
	Position *Position
	Active   *bool
}

// Position is a coordinate pair with the time it was reported.
type Position struct {
	Latitude  float64
	Longitude float64
	At        time.Time
}

// PresenceStore holds one record per user who has joined tracking during the
// server's lifetime. All methods are safe for concurrent use; the mutex is
// the serialization point that a single event loop would otherwise provide.
type PresenceStore struct {
	mu      sync.RWMutex
	records map[int64]*PresenceRecord
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{records: make(map[int64]*PresenceRecord)}
}

// Upsert merges patch into the record for userID, creating it with defaults
// when absent.
func (ps *PresenceStore) Upsert(userID int64, patch PresencePatch) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	record, ok := ps.records[userID]
	if !ok {
		record = &PresenceRecord{UserID: userID}
		ps.records[userID] = record
	}
	if patch.Profile != nil {
		record.Profile = *patch.Profile
	}
	if patch.Position != nil {
		record.Latitude = patch.Position.Latitude
		record.Longitude = patch.Position.Longitude
		record.HasPosition = true
		record.LastUpdatedAt = patch.Position.At
	}
	if patch.Active != nil {
		record.Active = *patch.Active
	}
}

// Get returns a copy of the record for userID.
func (ps *PresenceStore) Get(userID int64) (PresenceRecord, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	record, ok := ps.records[userID]
	if !ok {
		return PresenceRecord{}, false
	}
	return *record, true
}

// AllActive returns copies of all active records ordered by userID.
func (ps *PresenceStore) AllActive() []PresenceRecord {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	active := make([]PresenceRecord, 0, len(ps.records))
	for _, record := range ps.records {
		if record.Active {
			active = append(active, *record)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].UserID < active[j].UserID })
	return active
}

// Deactivate clears the activity flag and reports whether the record was
// active. The position is kept so a later join resumes instantly.
func (ps *PresenceStore) Deactivate(userID int64) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	record, ok := ps.records[userID]
	if !ok || !record.Active {
		return false
	}
	record.Active = false
	return true
}

// Remove deletes the record entirely.
func (ps *PresenceStore) Remove(userID int64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.records, userID)
}

// ActiveCount returns the number of active records.
func (ps *PresenceStore) ActiveCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	count := 0
	for _, record := range ps.records {
		if record.Active {
			count++
		}
	}
	return count
}
