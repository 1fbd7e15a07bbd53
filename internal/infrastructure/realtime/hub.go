package realtime

import "sort"

// Hub pairs the connection registry with the room router. It is constructed
// once at process start and closed at shutdown.
type Hub struct {
	*Registry
	*Router
}

func NewHub() *Hub {
	return &Hub{Registry: NewRegistry(), Router: NewRouter()}
}

// RoomsOfUser returns every room any of userID's handles is joined to.
func (h *Hub) RoomsOfUser(userID string) []string {
	set := make(map[string]struct{})
	for _, handle := range h.HandlesFor(userID) {
		for _, room := range h.RoomsOf(handle) {
			set[room] = struct{}{}
		}
	}
	rooms := make([]string, 0, len(set))
	for room := range set {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}
