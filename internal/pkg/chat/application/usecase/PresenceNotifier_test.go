package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheadapter "matchchat/internal/infrastructure/cache/adapter"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

func TestPresenceAnnouncesIntoJoinedRooms(t *testing.T) {
	e := newEngine(t)
	bob := e.connect("b1", "bob", "alice")
	carol := e.connect("c1", "carol", "alice")
	alice := e.connect("a1", "alice", "bob")
	e.hub.Join(alice, chat.RoomID("alice", "carol"))

	p := NewPresenceNotifier(e.hub, e.deps)
	assert.Equal(t, 2, p.AnnounceOnline(context.Background(), "alice"))

	for _, h := range []interface{ FramesOfType(string) []map[string]any }{bob, carol} {
		frames := h.FramesOfType(event.TypePresence)
		require.Len(t, frames, 1)
		assert.Equal(t, "alice", frames[0]["userId"])
		assert.Equal(t, string(chat.PresenceOnline), frames[0]["status"])
	}

	rooms := e.hub.LeaveAll(alice)
	e.hub.Unregister("alice", alice)
	assert.Equal(t, 2, p.AnnounceOffline(context.Background(), "alice", rooms))
	frames := bob.FramesOfType(event.TypePresence)
	require.Len(t, frames, 2)
	assert.Equal(t, string(chat.PresenceOffline), frames[1]["status"])
}

func TestPresenceSnapshotUsesRegistryAndLastActive(t *testing.T) {
	e := newEngine(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.deps.Now = func() time.Time { return now }
	p := NewPresenceNotifier(e.hub, e.deps)

	snap := p.Snapshot(context.Background(), "alice")
	assert.Equal(t, chat.PresenceOffline, snap.Status)
	assert.True(t, snap.LastActive.IsZero())

	e.connect("a1", "alice", "bob")
	p.Touch(context.Background(), "alice")
	snap = p.Snapshot(context.Background(), "alice")
	assert.Equal(t, chat.PresenceOnline, snap.Status)
	assert.Equal(t, now, snap.LastActive)
}

func TestPresenceLastActiveIsSharedThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := cacheadapter.NewRedisCache(context.Background(), "redis://"+mr.Addr(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	e := newEngine(t)
	e.deps.Cache = cache
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.deps.Now = func() time.Time { return now }

	NewPresenceNotifier(e.hub, e.deps).Touch(context.Background(), "alice")

	other := NewPresenceNotifier(e.hub, e.deps)
	last, ok := other.LastActive(context.Background(), "alice")
	require.True(t, ok)
	assert.Equal(t, now, last)
}

func TestAnnounceInRoomTargetsOneRoom(t *testing.T) {
	e := newEngine(t)
	bob := e.connect("b1", "bob", "alice")
	carol := e.connect("c1", "carol", "alice")

	NewPresenceNotifier(e.hub, e.deps).AnnounceInRoom(context.Background(), "alice", chat.RoomID("alice", "bob"))
	assert.Len(t, bob.FramesOfType(event.TypePresence), 1)
	assert.Empty(t, carol.FramesOfType(event.TypePresence))
}

func TestAnnounceOfflineReachesRoomsAnnouncedByEarlierHandles(t *testing.T) {
	e := newEngine(t)
	bob := e.connect("b1", "bob", "alice")
	p := NewPresenceNotifier(e.hub, e.deps)

	// The handle that announced into the room is gone by the time the last
	// handle disconnects, so the captured rooms are empty.
	p.AnnounceInRoom(context.Background(), "alice", chat.RoomID("alice", "bob"))
	assert.Equal(t, 1, p.AnnounceOffline(context.Background(), "alice", nil))

	frames := bob.FramesOfType(event.TypePresence)
	require.Len(t, frames, 2)
	assert.Equal(t, string(chat.PresenceOffline), frames[1]["status"])

	// The set is cleared once offline was announced.
	assert.Equal(t, 0, p.AnnounceOffline(context.Background(), "alice", nil))
}
