package session

import "sync"

// Registry is the process-wide directory from player handle to live
// Session, used by handlers to push frames to arbitrary other players.
// It is bounded by capacity and protected by its own lock; per-game and
// matchmaking state never share this lock.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	sessions map[string]*Session
}

// NewRegistry returns a Registry that holds at most capacity sessions.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		sessions: make(map[string]*Session, capacity),
	}
}

// Add registers a session under its handle. Registration happens right
// after the handshake completes, before the dispatch loop starts.
func (r *Registry) Add(handle string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[handle]; ok {
		return ErrDuplicateHandle
	}
	if len(r.sessions) >= r.capacity {
		return ErrRegistryFull
	}
	r.sessions[handle] = s
	return nil
}

// Remove clears the entry for handle. Deregistration must happen before
// the session's channels are torn down so concurrent pushers never reach
// a dangling connection.
func (r *Registry) Remove(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, handle)
}

// Find returns the live session for handle. A miss means the player is
// currently unreachable, not an error.
func (r *Registry) Find(handle string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[handle]
	return s, ok
}

// All returns a snapshot of every registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	return all
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
