package realtime

import (
	"sort"
	"sync"
)

// Registry tracks which live handles belong to which user. A user may hold
// several handles at once (devices, tabs). It never broadcasts; callers act
// on the transitions it reports.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]Handle // userID -> handleID -> handle
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]Handle)}
}

// Register adds h to userID's handles. It reports true when this is the
// user's first handle (0 -> 1). Registering the same handle twice is a no-op.
func (r *Registry) Register(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := r.users[userID]
	if handles == nil {
		handles = make(map[string]Handle)
		r.users[userID] = handles
	}
	if _, ok := handles[h.ID()]; ok {
		return false
	}
	handles[h.ID()] = h
	return len(handles) == 1
}

// Unregister removes h. It reports true when the user has no handles left
// (1 -> 0); the user entry is then removed entirely.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles, ok := r.users[userID]
	if !ok {
		return false
	}
	if _, ok := handles[h.ID()]; !ok {
		return false
	}
	delete(handles, h.ID())
	if len(handles) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// IsOnline is true iff at least one handle is registered for userID.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// HandlesFor returns a snapshot of userID's handles ordered by handle id.
func (r *Registry) HandlesFor(userID string) []Handle {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.users[userID]))
	for _, h := range r.users[userID] {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i].ID() < handles[j].ID() })
	return handles
}

// NotifyUser sends payload to every handle of userID and returns how many accepted it.
func (r *Registry) NotifyUser(userID string, payload []byte) int {
	delivered := 0
	for _, h := range r.HandlesFor(userID) {
		if err := h.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Close terminates all tracked handles and clears registry state.
func (r *Registry) Close() {
	r.mu.Lock()
	var handles []Handle
	for _, set := range r.users {
		for _, h := range set {
			handles = append(handles, h)
		}
	}
	r.users = make(map[string]map[string]Handle)
	r.mu.Unlock()

	for _, h := range handles {
		h.Close(1001, "server shutdown")
	}
}
