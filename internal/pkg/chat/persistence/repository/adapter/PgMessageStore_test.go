package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "matchchat/internal/pkg/chat/application/domain"
)

func newMockStore(t *testing.T) (*PgMessageStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPgMessageStore(mock), mock
}

func TestPgAppendMessageWritesRowAndTouchesConversation(t *testing.T) {
	store, mock := newMockStore(t)
	msg := chat.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat.message").
		WithArgs("bob", "m1", "alice", "alice", "bob", "hi", pgxmock.AnyArg(), false, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO chat.conversation").
		WithArgs("bob", "alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.AppendMessage(context.Background(), "bob", "alice", msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppendMessageRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)
	msg := chat.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Content: "hi", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat.message").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.AppendMessage(context.Background(), "alice", "bob", msg)

	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindConversationKeepsOrder(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT updated_at FROM chat.conversation").
		WithArgs("alice", "bob").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery("SELECT id, sender_id, receiver_id").
		WithArgs("alice", "bob").
		WillReturnRows(pgxmock.NewRows([]string{"id", "sender_id", "receiver_id", "content", "created_at", "delivered", "read"}).
			AddRow("m1", "bob", "alice", "hello", now, true, false).
			AddRow("m2", "alice", "bob", "hey", now, false, false))

	conv, err := store.FindConversation(context.Background(), "alice", "bob")

	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "m1", conv.Messages[0].ID)
	assert.True(t, conv.Messages[0].Delivered)
	assert.Equal(t, "m2", conv.Messages[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgFindConversationNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT updated_at FROM chat.conversation").
		WithArgs("alice", "zed").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.FindConversation(context.Background(), "alice", "zed")

	assert.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestPgFindMessageNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, sender_id, receiver_id").
		WithArgs("alice", "nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.FindMessage(context.Background(), "alice", "nope")

	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
}

func TestPgSetMessageFlag(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE chat.message SET read").
		WithArgs("bob", "m1", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE chat.message SET delivered").
		WithArgs("bob", "missing", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, store.SetMessageFlag(context.Background(), "bob", "m1", chat.FlagRead, true))
	assert.ErrorIs(t, store.SetMessageFlag(context.Background(), "bob", "missing", chat.FlagDelivered, true), chat.ErrMessageNotFound)
	assert.ErrorIs(t, store.SetMessageFlag(context.Background(), "bob", "m1", chat.Flag("pinned"), true), chat.ErrUnknownFlag)
	assert.NoError(t, mock.ExpectationsWereMet())
}
