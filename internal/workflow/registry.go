package workflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 24 * time.Hour

type entry struct {
	mu      sync.Mutex
	session *Session
	touched time.Time
}

// Registry owns the sessions of every connected operator. Each session has
// its own lock; sessions never share state.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewRegistry creates a Registry that expires sessions untouched for ttl.
// A non-positive ttl uses DefaultSessionTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create starts a new session and returns its id.
func (r *Registry) Create() string {
	id := uuid.New().String()
	r.mu.Lock()
	r.entries[id] = &entry{session: NewSession(id), touched: r.now()}
	r.mu.Unlock()
	log.Debug().Str("sessionId", id).Msg("Session created")
	return id
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if r.now().Sub(e.touched) > r.ttl {
		delete(r.entries, id)
		return nil, ErrSessionNotFound
	}
	e.touched = r.now()
	return e, nil
}

// Update runs fn with exclusive access to the session.
func (r *Registry) Update(id string, fn func(*Session) error) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// View runs fn with exclusive access to the session. fn must not retain s.
func (r *Registry) View(id string, fn func(s *Session)) error {
	return r.Update(id, func(s *Session) error {
		fn(s)
		return nil
	})
}

// Delete removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// Sweep removes expired sessions and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if r.now().Sub(e.touched) > r.ttl {
			delete(r.entries, id)
			n++
		}
	}
	if n > 0 {
		log.Info().Int("expired", n).Int("remaining", len(r.entries)).Msg("Expired sessions swept")
	}
	return n
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
