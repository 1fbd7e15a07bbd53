package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchchat/internal/infrastructure/logging"
	"matchchat/internal/infrastructure/realtime"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
	"matchchat/internal/pkg/chat/application/usecase"
	"matchchat/internal/pkg/chat/persistence/repository/adapter"
	"matchchat/internal/pkg/chat/presentation/controller"
)

type chatServer struct {
	url string
	hub *realtime.Hub
}

func startServer(t *testing.T) *chatServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub()
	engine := usecase.NewEngine(usecase.Deps{
		Store:  adapter.NewMemoryMessageStore(),
		Fanout: hub,
		Locks:  usecase.NewUserLocks(),
		Log:    logging.Discard(),
	}, hub, nil)
	r := gin.New()
	r.GET("/ws", controller.NewChatSocketController(hub, engine, controller.Identifier{}, logging.Discard(), time.Second).Handle())
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &chatServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", hub: hub}
}

type recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recorder) record(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.Type == typ {
			n++
		}
	}
	return n
}

func runClient(t *testing.T, c *Client) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func status(c *Client, id string) chat.Status {
	e, _ := c.Timeline().Get(id)
	return e.Status
}

func TestClientFlushesOutboxAndTracksStatus(t *testing.T) {
	srv := startServer(t)

	alice := New(Options{URL: srv.url, UserID: "alice", ReconnectInitial: 10 * time.Millisecond})
	require.NoError(t, ignoreNotConnected(alice.Join("bob")))
	m, err := alice.Send("bob", "queued while offline")
	require.NoError(t, err)
	assert.Equal(t, chat.StatusSending, status(alice, m.ID))

	runClient(t, alice)
	require.Eventually(t, func() bool { return status(alice, m.ID) == chat.StatusSent }, 2*time.Second, 10*time.Millisecond)

	bobFrames := &recorder{}
	bob := New(Options{URL: srv.url, UserID: "bob", ReconnectInitial: 10 * time.Millisecond, OnFrame: bobFrames.record})
	require.NoError(t, ignoreNotConnected(bob.Join("alice")))
	runClient(t, bob)

	require.Eventually(t, func() bool { return status(alice, m.ID) == chat.StatusDelivered }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return bobFrames.count(event.TypeMessage) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Seen("alice", ""))
	require.Eventually(t, func() bool { return status(alice, m.ID) == chat.StatusRead }, 2*time.Second, 10*time.Millisecond)
}

func TestClientReconnectsAndRejoins(t *testing.T) {
	srv := startServer(t)

	alice := New(Options{URL: srv.url, UserID: "alice", ReconnectInitial: 10 * time.Millisecond, ReconnectMax: 50 * time.Millisecond})
	require.NoError(t, ignoreNotConnected(alice.Join("bob")))
	runClient(t, alice)
	require.Eventually(t, func() bool { return len(srv.hub.RoomsOfUser("alice")) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Drop every server-side handle; the client must come back on its own.
	srv.hub.Close()
	require.Eventually(t, func() bool {
		return alice.Connected() && len(srv.hub.RoomsOfUser("alice")) == 1
	}, 3*time.Second, 10*time.Millisecond)

	m, err := alice.Send("bob", "after reconnect")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return status(alice, m.ID) == chat.StatusSent }, 2*time.Second, 10*time.Millisecond)
}

func TestClientMarksUnackedMessagesAsError(t *testing.T) {
	// Nothing listens here; every dial fails.
	c := New(Options{
		URL:              "ws://127.0.0.1:1/ws",
		UserID:           "alice",
		AckTimeout:       30 * time.Millisecond,
		ReconnectInitial: 10 * time.Millisecond,
	})
	m, err := c.Send("bob", "lost")
	require.NoError(t, err)
	runClient(t, c)

	require.Eventually(t, func() bool { return status(c, m.ID) == chat.StatusError }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Retry(m.ID))
	assert.Equal(t, chat.StatusSending, status(c, m.ID))
}

func TestClientRejectsInvalidMessages(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws", UserID: "alice"})
	_, err := c.Send("alice", "self")
	assert.ErrorIs(t, err, chat.ErrSelfConversation)
	assert.Empty(t, c.Timeline().Entries())
}

func ignoreNotConnected(err error) error {
	if err == ErrNotConnected {
		return nil
	}
	return err
}
