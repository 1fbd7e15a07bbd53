package realtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"matchchat/internal/infrastructure/realtime"
	"matchchat/internal/infrastructure/realtime/realtimetest"
)

func TestRoomsOfUserUnionsDevices(t *testing.T) {
	hub := realtime.NewHub()
	phone := realtimetest.NewHandle("p", "alice")
	laptop := realtimetest.NewHandle("l", "alice")
	hub.Register("alice", phone)
	hub.Register("alice", laptop)
	hub.Join(phone, "alice:bob")
	hub.Join(laptop, "alice:bob")
	hub.Join(laptop, "alice:carol")

	assert.Equal(t, []string{"alice:bob", "alice:carol"}, hub.RoomsOfUser("alice"))
	assert.Empty(t, hub.RoomsOfUser("bob"))
}
