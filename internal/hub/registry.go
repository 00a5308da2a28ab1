package hub

import "sync"

// Registry maps game ids to the sessions watching them. Broadcasts
// iterate over snapshots so a concurrent leave never invalidates an
// iteration in flight.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]map[*Session]struct{})}
}

func (r *Registry) Add(gameID int, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[gameID]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[gameID] = set
	}
	set[s] = struct{}{}
}

func (r *Registry) Remove(gameID int, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[gameID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.sessions, gameID)
	}
}

// Subscribers returns a snapshot of the sessions watching a game.
func (r *Registry) Subscribers(gameID int) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sessions[gameID]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}
