// Package session keeps the gateway's logged-in bridge sessions in memory.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayo6706/twinvest-bridge/internal/auth"
	"github.com/ayo6706/twinvest-bridge/internal/observability"
)

// Entry is one registered bridge session.
type Entry struct {
	ID      uuid.UUID
	Session *auth.Session
	Created time.Time
	Expires time.Time
}

// Registry maps gateway session ids to bridge sessions. Entries expire at
// the earlier of the registry TTL and the provider's own expiry.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
	ttl     time.Duration
	now     func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{entries: make(map[uuid.UUID]Entry), ttl: ttl, now: time.Now}
}

// WithClock replaces the registry's time source.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) Put(s *auth.Session) Entry {
	now := r.now()
	e := Entry{ID: uuid.New(), Session: s, Created: now, Expires: now.Add(r.ttl)}
	if !s.Expires.IsZero() && s.Expires.Before(e.Expires) {
		e.Expires = s.Expires
	}

	r.mu.Lock()
	r.entries[e.ID] = e
	n := len(r.entries)
	r.mu.Unlock()
	observability.SetActiveSessions(n)
	return e
}

// Get returns the entry for id unless it is missing or expired.
func (r *Registry) Get(id uuid.UUID) (Entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok || !r.now().Before(e.Expires) {
		return Entry{}, false
	}
	return e, true
}

func (r *Registry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	n := len(r.entries)
	r.mu.Unlock()
	observability.SetActiveSessions(n)
	return ok
}

// Sweep drops expired entries and reports how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	removed := 0
	for id, e := range r.entries {
		if !now.Before(e.Expires) {
			delete(r.entries, id)
			removed++
		}
	}
	n := len(r.entries)
	r.mu.Unlock()
	observability.SetActiveSessions(n)
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
