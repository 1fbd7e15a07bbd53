package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheadapter "matchchat/internal/infrastructure/cache/adapter"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

func TestSendDeliversToJoinedRecipient(t *testing.T) {
	e := newEngine(t)
	alice := e.connect("a1", "alice", "bob")
	bob := e.connect("b1", "bob", "alice")

	res, err := e.Send.Execute(context.Background(), SendMessageInput{
		MessageID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi",
	})
	require.NoError(t, err)
	assert.True(t, res.Reached)
	assert.False(t, res.Duplicate)
	assert.True(t, res.Message.Delivered)

	require.Len(t, alice.FramesOfType(event.TypeSent), 1)
	require.Len(t, alice.FramesOfType(event.TypeMessage), 1)
	require.Len(t, bob.FramesOfType(event.TypeMessage), 1)
	require.Len(t, alice.FramesOfType(event.TypeDelivered), 1)
	assert.Equal(t, "m1", alice.FramesOfType(event.TypeDelivered)[0]["messageId"])

	assert.True(t, e.copyOf(t, "bob", "m1").Delivered)
	assert.True(t, e.copyOf(t, "alice", "m1").Delivered)
}

func TestSendRejectsInvalidPayload(t *testing.T) {
	e := newEngine(t)
	cases := []SendMessageInput{
		{SenderID: "", ReceiverID: "bob", Content: "x"},
		{SenderID: "alice", ReceiverID: "alice", Content: "x"},
		{SenderID: "alice", ReceiverID: "bob", Content: "   "},
	}
	for _, in := range cases {
		_, err := e.Send.Execute(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	}
	assert.Zero(t, e.store.appendCalls("alice"))
}

func TestSendToOfflineRecipientStaysUndelivered(t *testing.T) {
	e := newEngine(t)
	alice := e.connect("a1", "alice", "bob")

	res, err := e.Send.Execute(context.Background(), SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message.ID)
	assert.False(t, res.Reached)

	assert.False(t, e.copyOf(t, "bob", res.Message.ID).Delivered)
	assert.Empty(t, alice.FramesOfType(event.TypeDelivered))
}

func TestSendTwiceWithSameIDPersistsOnce(t *testing.T) {
	e := newEngine(t)
	e.connect("a1", "alice", "bob")
	in := SendMessageInput{MessageID: "dup", SenderID: "alice", ReceiverID: "bob", Content: "once"}

	first, err := e.Send.Execute(context.Background(), in)
	require.NoError(t, err)
	second, err := e.Send.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Message.ID, second.Message.ID)
	assert.Equal(t, first.Message.CreatedAt, second.Message.CreatedAt)

	for owner, partner := range map[string]string{"alice": "bob", "bob": "alice"} {
		conv, err := e.store.FindConversation(context.Background(), owner, partner)
		require.NoError(t, err)
		assert.Len(t, conv.Messages, 1, owner)
	}
}

func TestSendRejectsIDReusedForAnotherConversation(t *testing.T) {
	e := newEngine(t)
	_, err := e.Send.Execute(context.Background(), SendMessageInput{MessageID: "x", SenderID: "alice", ReceiverID: "bob", Content: "a"})
	require.NoError(t, err)

	_, err = e.Send.Execute(context.Background(), SendMessageInput{MessageID: "x", SenderID: "alice", ReceiverID: "carol", Content: "b"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSendSenderCopyExhaustionMulticastsNothing(t *testing.T) {
	e := newEngine(t)
	alice := e.connect("a1", "alice", "bob")
	bob := e.connect("b1", "bob", "alice")
	e.store.failNextAppends("alice", 3)

	_, err := e.Send.Execute(context.Background(), SendMessageInput{MessageID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	require.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, 3, e.store.appendCalls("alice"))
	assert.Zero(t, e.store.appendCalls("bob"))
	assert.Empty(t, alice.Payloads())
	assert.Empty(t, bob.Payloads())
	_, err = e.store.FindMessage(context.Background(), "alice", "m1")
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}

func TestSendRecipientCopyExhaustionSchedulesRepair(t *testing.T) {
	e := newEngine(t)
	alice := e.connect("a1", "alice", "bob")
	bob := e.connect("b1", "bob", "alice")
	e.store.failNextAppends("bob", 3)

	_, err := e.Send.Execute(context.Background(), SendMessageInput{MessageID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	require.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, alice.Payloads())
	assert.Empty(t, bob.Payloads())

	require.Len(t, e.queue.tasks, 1)
	assert.Equal(t, RepairCopyTaskType, e.queue.tasks[0].Type)
	var payload RepairCopyPayload
	require.NoError(t, json.Unmarshal(e.queue.tasks[0].Payload, &payload))
	assert.Equal(t, "bob", payload.OwnerID)

	require.NoError(t, NewRepairCopyUseCase(e.deps).Execute(context.Background(), payload))
	assert.Equal(t, "hi", e.copyOf(t, "bob", "m1").Content)
}

func TestSendRetryConvergesAfterTransientFailures(t *testing.T) {
	e := newEngine(t)
	e.store.failNextAppends("bob", 2)

	_, err := e.Send.Execute(context.Background(), SendMessageInput{MessageID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 3, e.store.appendCalls("bob"))
	assert.Empty(t, e.queue.tasks)
}

func TestDuplicateSendRepairsMissingRecipientCopy(t *testing.T) {
	e := newEngine(t)
	e.deps.Queue = nil
	e.Send = NewSendMessageUseCase(e.deps, e.Delivered)
	in := SendMessageInput{MessageID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}

	e.store.failNextAppends("bob", 3)
	_, err := e.Send.Execute(context.Background(), in)
	require.ErrorIs(t, err, ErrPersistence)

	bob := e.connect("b1", "bob", "alice")
	res, err := e.Send.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.True(t, res.Reached)
	assert.Len(t, bob.FramesOfType(event.TypeMessage), 1)
	assert.True(t, e.copyOf(t, "bob", "m1").Delivered)
}

func TestSendDedupeUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := cacheadapter.NewRedisCache(context.Background(), "redis://"+mr.Addr(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	e := newEngine(t)
	e.deps.Cache = cache
	e.Send = NewSendMessageUseCase(e.deps, e.Delivered)
	in := SendMessageInput{MessageID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}

	_, err = e.Send.Execute(context.Background(), in)
	require.NoError(t, err)
	raw, err := cache.Get(context.Background(), dedupeKey("alice", "m1"))
	require.NoError(t, err)
	assert.Contains(t, raw, `"id":"m1"`)

	res, err := e.Send.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 1, e.store.appendCalls("alice"))
}

func TestConcurrentSendsKeepEveryMessage(t *testing.T) {
	e := newEngine(t)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Send.Execute(context.Background(), SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "hey"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sender, err := e.store.FindConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	recipient, err := e.store.FindConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, sender.Messages, n)
	assert.Len(t, recipient.Messages, n)
	assert.Zero(t, e.deps.Locks.size())
}
