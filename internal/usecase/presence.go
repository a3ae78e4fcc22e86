package usecase

import (
	"sync"
	"time"

	"github.com/paincake00/geotrack/internal/entity"
)

type presenceState struct {
	locationID *int64
	timestamp  time.Time
}

// PresenceTracker keeps the last resolved named location of every user and
// detects when it changes.
type PresenceTracker struct {
	mu    sync.Mutex
	users map[int64]presenceState
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{users: make(map[int64]presenceState)}
}

// Observe applies a newly resolved location for userID. The first
// observation of a user only sets the baseline. Fixes older than the stored
// timestamp and unchanged locations are ignored. Otherwise the state is
// replaced and the resulting transition is returned with ok set.
func (p *PresenceTracker) Observe(userID int64, locationID *int64, ts time.Time) (t entity.Transition, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, known := p.users[userID]
	if !known {
		p.users[userID] = presenceState{locationID: copyID(locationID), timestamp: ts}
		return entity.Transition{}, false
	}
	if ts.Before(prev.timestamp) || sameLocation(prev.locationID, locationID) {
		return entity.Transition{}, false
	}

	p.users[userID] = presenceState{locationID: copyID(locationID), timestamp: ts}

	t = entity.Transition{UserID: userID, At: ts}
	if locationID != nil {
		t.Kind = entity.TransitionEntered
		t.LocationID = *locationID
	} else {
		t.Kind = entity.TransitionExited
		t.LocationID = *prev.locationID
	}
	t.Event = "user_" + string(t.Kind) + "_location"
	return t, true
}

// Current returns the presence state of userID, if any fix was observed.
func (p *PresenceTracker) Current(userID int64) (entity.Presence, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.users[userID]
	if !ok {
		return entity.Presence{}, false
	}
	return entity.Presence{UserID: userID, LocationID: copyID(st.locationID), Timestamp: st.timestamp}, true
}

// Len returns the number of tracked users.
func (p *PresenceTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.users)
}

func sameLocation(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
