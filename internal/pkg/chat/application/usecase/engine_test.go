package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	qport "matchchat/internal/infrastructure/queue/port"
	"matchchat/internal/infrastructure/realtime"
	"matchchat/internal/infrastructure/realtime/realtimetest"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/persistence/repository/adapter"
	repository "matchchat/internal/pkg/chat/persistence/repository/port"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore fails the next N appends per owner before delegating.
type flakyStore struct {
	repository.MessageStore

	mu          sync.Mutex
	failAppends map[string]int
	appends     map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		MessageStore: adapter.NewMemoryMessageStore(),
		failAppends:  make(map[string]int),
		appends:      make(map[string]int),
	}
}

func (s *flakyStore) failNextAppends(owner string, n int) {
	s.mu.Lock()
	s.failAppends[owner] = n
	s.mu.Unlock()
}

func (s *flakyStore) appendCalls(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends[owner]
}

func (s *flakyStore) AppendMessage(ctx context.Context, ownerID, partnerID string, m chat.Message) error {
	s.mu.Lock()
	s.appends[ownerID]++
	if s.failAppends[ownerID] > 0 {
		s.failAppends[ownerID]--
		s.mu.Unlock()
		return errStoreDown
	}
	s.mu.Unlock()
	return s.MessageStore.AppendMessage(ctx, ownerID, partnerID, m)
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []qport.Task
	opts  []qport.EnqueueOption
}

func (q *recordingQueue) Enqueue(_ context.Context, t qport.Task, opts ...qport.EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	q.opts = append(q.opts, opts...)
	return "task-1", nil
}

func (q *recordingQueue) Close() error { return nil }

type fixture struct {
	*Engine
	store *flakyStore
	hub   *realtime.Hub
	queue *recordingQueue
	deps  Deps
}

func newEngine(t *testing.T) *fixture {
	t.Helper()
	e := &fixture{store: newFlakyStore(), hub: realtime.NewHub(), queue: &recordingQueue{}}
	e.deps = Deps{
		Store:  e.store,
		Fanout: e.hub,
		Queue:  e.queue,
		Locks:  NewUserLocks(),
		Retry:  RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2},
	}
	e.Engine = NewEngine(e.deps, e.hub, nil)
	return e
}

// connect registers a handle for user and joins it to the room with partner.
func (e *fixture) connect(handleID, user, partner string) *realtimetest.Handle {
	h := realtimetest.NewHandle(handleID, user)
	e.hub.Register(user, h)
	e.hub.Join(h, chat.RoomID(user, partner))
	return h
}

func (e *fixture) copyOf(t *testing.T, owner, id string) chat.Message {
	t.Helper()
	m, err := e.store.FindMessage(context.Background(), owner, id)
	require.NoError(t, err)
	return *m
}

func messageIDs(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
