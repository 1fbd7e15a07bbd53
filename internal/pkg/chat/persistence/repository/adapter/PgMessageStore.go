package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	chat "matchchat/internal/pkg/chat/application/domain"
	repository "matchchat/internal/pkg/chat/persistence/repository/port"
)

// PgxConn is the subset of *pgxpool.Pool the store needs.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the tables used by PgMessageStore. Messages are keyed by
// (owner_id, id) so each participant copy is a separate row; seq keeps
// insertion order.
const Schema = `
CREATE SCHEMA IF NOT EXISTS chat;
CREATE TABLE IF NOT EXISTS chat.conversation (
	owner_id   TEXT        NOT NULL,
	partner_id TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, partner_id)
);
CREATE TABLE IF NOT EXISTS chat.message (
	owner_id    TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	partner_id  TEXT        NOT NULL,
	seq         BIGSERIAL,
	sender_id   TEXT        NOT NULL,
	receiver_id TEXT        NOT NULL,
	content     TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	delivered   BOOLEAN     NOT NULL DEFAULT FALSE,
	read        BOOLEAN     NOT NULL DEFAULT FALSE,
	PRIMARY KEY (owner_id, id)
);
CREATE INDEX IF NOT EXISTS message_owner_partner_seq ON chat.message (owner_id, partner_id, seq);
`

type PgMessageStore struct {
	db PgxConn
}

func NewPgMessageStore(db PgxConn) *PgMessageStore {
	return &PgMessageStore{db: db}
}

var _ repository.MessageStore = (*PgMessageStore)(nil)

// EnsureSchema applies Schema. It is safe to call on every start.
func (s *PgMessageStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("PgMessageStore: nil pool")
	}
	_, err := s.db.Exec(ctx, Schema)
	return err
}

func (s *PgMessageStore) AppendMessage(ctx context.Context, ownerID, partnerID string, m chat.Message) (err error) {
	if s == nil || s.db == nil {
		return errors.New("PgMessageStore: nil pool")
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO chat.message (owner_id, id, partner_id, sender_id, receiver_id, content, created_at, delivered, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, id) DO NOTHING
	`, ownerID, m.ID, partnerID, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt, m.Delivered, m.Read)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat.conversation (owner_id, partner_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, partner_id)
		DO UPDATE SET updated_at = GREATEST(chat.conversation.updated_at, EXCLUDED.updated_at)
	`, ownerID, partnerID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgMessageStore) FindConversation(ctx context.Context, ownerID, partnerID string) (*chat.Conversation, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	conv := chat.Conversation{OwnerID: ownerID, PartnerID: partnerID}
	err := s.db.QueryRow(ctx, `
		SELECT updated_at FROM chat.conversation WHERE owner_id = $1 AND partner_id = $2
	`, ownerID, partnerID).Scan(&conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at, delivered, read
		FROM chat.message
		WHERE owner_id = $1 AND partner_id = $2
		ORDER BY seq ASC
	`, ownerID, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.Delivered, &m.Read); err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return &conv, nil
}

func (s *PgMessageStore) FindMessage(ctx context.Context, ownerID, messageID string) (*chat.Message, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	var m chat.Message
	err := s.db.QueryRow(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at, delivered, read
		FROM chat.message
		WHERE owner_id = $1 AND id = $2
	`, ownerID, messageID).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.Delivered, &m.Read)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PgMessageStore) SetMessageFlag(ctx context.Context, ownerID, messageID string, flag chat.Flag, value bool) error {
	if s == nil || s.db == nil {
		return errors.New("PgMessageStore: nil pool")
	}
	var query string
	switch flag {
	case chat.FlagDelivered:
		query = `UPDATE chat.message SET delivered = $3 WHERE owner_id = $1 AND id = $2`
	case chat.FlagRead:
		query = `UPDATE chat.message SET read = $3, delivered = delivered OR $3 WHERE owner_id = $1 AND id = $2`
	default:
		return chat.ErrUnknownFlag
	}
	ct, err := s.db.Exec(ctx, query, ownerID, messageID, value)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrMessageNotFound
	}
	return nil
}
