package chat

import "time"

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// Presence is derived from the connection registry; LastActive is the last
// time the user connected, pinged or disconnected.
type Presence struct {
	UserID     string         `json:"userId"`
	Status     PresenceStatus `json:"status"`
	LastActive time.Time      `json:"lastActive"`
}
