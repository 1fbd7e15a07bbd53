package realtime

import (
	"sort"
	"sync"
)

// Reach counts, per user, how many of that user's handles accepted a multicast payload.
type Reach map[string]int

// Reached reports whether at least one handle of userID accepted the payload.
func (r Reach) Reached(userID string) bool {
	return r[userID] > 0
}

// Router coordinates logical rooms (two-party conversations) and fans out
// payloads to every handle joined to a room.
type Router struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Handle   // roomID -> handleID -> handle
	handleRooms map[string]map[string]struct{} // handleID -> set of roomIDs
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		rooms:       make(map[string]map[string]Handle),
		handleRooms: make(map[string]map[string]struct{}),
	}
}

// Join adds the handle to the room. It reports false if it was already a member.
func (r *Router) Join(h Handle, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]Handle)
		r.rooms[roomID] = room
	}
	if _, ok := room[h.ID()]; ok {
		return false
	}
	room[h.ID()] = h

	memberships := r.handleRooms[h.ID()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.handleRooms[h.ID()] = memberships
	}
	memberships[roomID] = struct{}{}
	return true
}

// Leave removes the handle from the room.
func (r *Router) Leave(h Handle, roomID string) {
	r.mu.Lock()
	r.leaveLocked(roomID, h.ID())
	r.mu.Unlock()
}

// LeaveAll removes the handle from every room and returns the rooms it left.
func (r *Router) LeaveAll(h Handle) []string {
	r.mu.Lock()
	rooms := sortedKeys(r.handleRooms[h.ID()])
	for _, roomID := range rooms {
		r.leaveLocked(roomID, h.ID())
	}
	delete(r.handleRooms, h.ID())
	r.mu.Unlock()
	return rooms
}

// RoomsOf returns the rooms the handle is currently joined to.
func (r *Router) RoomsOf(h Handle) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.handleRooms[h.ID()])
}

// UserHandlesIn counts the handles of userID joined to roomID.
func (r *Router) UserHandlesIn(roomID, userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, h := range r.rooms[roomID] {
		if h.UserID() == userID {
			n++
		}
	}
	return n
}

// Multicast writes payload to every handle in the room, the sender's own
// handles included. An empty room is a no-op.
func (r *Router) Multicast(roomID string, payload []byte) Reach {
	r.mu.RLock()
	members := make([]Handle, 0, len(r.rooms[roomID]))
	for _, h := range r.rooms[roomID] {
		members = append(members, h)
	}
	r.mu.RUnlock()

	reach := make(Reach, 2)
	for _, h := range members {
		if err := h.Send(payload); err == nil {
			reach[h.UserID()]++
		}
	}
	return reach
}

func (r *Router) leaveLocked(roomID string, handleID string) {
	if handleID == "" {
		return
	}
	if room := r.rooms[roomID]; room != nil {
		delete(room, handleID)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if memberships, ok := r.handleRooms[handleID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(r.handleRooms, handleID)
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
