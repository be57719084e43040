package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/Rigellute/walk-the-world-frontend/pkg/steps"
)

// Entry is what one instance remembers about a browser session beyond its
// cookie: the last known total and whether a submission is in flight.
type Entry struct {
	// Record is the last known total. Optimistic marks a locally
	// incremented copy that the next home render should use as is.
	Record     *steps.Record
	Optimistic bool

	submitting bool
	expiresAt  time.Time
}

// Store is a thread-safe cache of per-session totals with expiry. It is
// local to the process; a miss only means the next render fetches.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	cleanup *time.Ticker
	done    chan struct{}
	stop    sync.Once
}

// NewStore creates a store whose entries live for ttl after their last
// write, and starts a cleanup goroutine.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go s.cleanupExpired()
	return s
}

// Stop stops the cleanup goroutine.
func (s *Store) Stop() {
	s.stop.Do(func() {
		s.cleanup.Stop()
		close(s.done)
	})
}

func (s *Store) cleanupExpired() {
	for {
		select {
		case <-s.done:
			return
		case now := <-s.cleanup.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// entryLocked returns the live entry for id, creating it if create is set.
// The caller holds s.mu.
func (s *Store) entryLocked(id string, create bool) *Entry {
	e, ok := s.entries[id]
	if ok && time.Now().After(e.expiresAt) {
		delete(s.entries, id)
		ok = false
	}
	if !ok {
		if !create || id == "" {
			return nil
		}
		e = &Entry{}
		s.entries[id] = e
	}
	e.expiresAt = time.Now().Add(s.ttl)
	return e
}

// Get returns a copy of the entry, or false if missing or expired.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	var entry Entry
	if ok {
		entry = *e
		if e.Record != nil {
			record := *e.Record
			entry.Record = &record
		}
	}
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(entry.expiresAt) {
		s.Delete(id)
		return Entry{}, false
	}
	return entry, true
}

// Delete removes a session by ID.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// SetRecord caches a freshly fetched total.
func (s *Store) SetRecord(id string, record steps.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entryLocked(id, true); e != nil {
		e.Record = &record
		e.Optimistic = false
	}
}

// ApplySubmission adds n to the cached total and marks it optimistic. It
// reports false when there is no cached total to add to.
func (s *Store) ApplySubmission(id string, n int64, now time.Time) (steps.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil || e.Record == nil {
		return steps.Record{}, false
	}
	updated := e.Record.Add(n, now)
	e.Record = &updated
	e.Optimistic = true
	return updated, true
}

// TakeOptimistic returns the optimistic total once and clears the flag, so
// the render after that fetches again.
func (s *Store) TakeOptimistic(id string) (steps.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, false)
	if e == nil || !e.Optimistic || e.Record == nil {
		return steps.Record{}, false
	}
	e.Optimistic = false
	return *e.Record, true
}

// BeginSubmit marks a steps submission in flight. It returns false if one
// is already running for this session or id is empty.
func (s *Store) BeginSubmit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id, true)
	if e == nil || e.submitting {
		return false
	}
	e.submitting = true
	return true
}

// EndSubmit clears the in-flight mark set by BeginSubmit.
func (s *Store) EndSubmit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.submitting = false
	}
}

// Len returns the number of cached sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// generateRandomString returns length random bytes, base64 URL encoded.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
