package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelength/pavelength/internal/loader"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

// Store keeps sessions in memory, keyed by a random id.
type Store struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(deps Deps, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{deps: deps, ttl: ttl, now: time.Now, sessions: make(map[string]*Session)}
}

// Create starts a session for a freshly loaded archive. Passing the id of
// an existing session discards it: a new upload resets every prior state.
func (st *Store) Create(res *loader.Result, replace string) *Session {
	s := newSession(uuid.NewString(), st.deps, res, st.now())

	st.mu.Lock()
	old := st.sessions[replace]
	delete(st.sessions, replace)
	st.sessions[s.ID] = s
	st.mu.Unlock()

	if old != nil {
		old.close()
		log.Printf("[session] %s replaced by %s", old.ID, s.ID)
	}
	log.Printf("[session] created %s (%s, %d rows)", s.ID, res.Shapefile, res.Dataset.Len())
	return s
}

// Get returns the session and marks it used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(st.now())
	return s, nil
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.close()
	}
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)
	var expired []*Session

	st.mu.Lock()
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Sweep(); n > 0 {
				log.Printf("[session] expired %d idle sessions", n)
			}
		}
	}
}
