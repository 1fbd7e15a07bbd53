package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Flag names one of the two mutable delivery flags of a message copy.
type Flag string

const (
	FlagDelivered Flag = "delivered"
	FlagRead      Flag = "read"
)

// Valid reports whether f is a known flag.
func (f Flag) Valid() bool {
	return f == FlagDelivered || f == FlagRead
}

// Status is the UI-facing lifecycle state of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusError     Status = "error"
)

// Rank orders statuses along the lifecycle; error ranks lowest so that any
// acknowledgement overrides it.
func (s Status) Rank() int {
	switch s {
	case StatusSending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	default:
		return 0
	}
}

// Message is one entry of a two-party conversation. Everything but the
// Delivered and Read flags is immutable once persisted.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"sender"`
	ReceiverID string    `db:"receiver_id" json:"receiver"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
	Delivered  bool      `db:"delivered" json:"delivered"`
	Read       bool      `db:"read" json:"read"`
}

// NewMessage validates m and fills the server-side defaults: a fresh id when
// the client did not provide one and a creation time of now.
func NewMessage(m Message, now time.Time) (*Message, error) {
	m.SenderID = strings.TrimSpace(m.SenderID)
	m.ReceiverID = strings.TrimSpace(m.ReceiverID)
	if m.SenderID == "" || m.ReceiverID == "" {
		return nil, ErrMissingParticipant
	}
	if m.SenderID == m.ReceiverID {
		return nil, ErrSelfConversation
	}
	if strings.TrimSpace(m.Content) == "" {
		return nil, ErrEmptyMessage
	}

	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		if now.IsZero() {
			now = time.Now()
		}
		m.CreatedAt = now
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.Delivered = false
	m.Read = false
	return &m, nil
}

// Status derives the UI status from the flags. Read dominates delivered.
func (m Message) Status() Status {
	switch {
	case m.Read:
		return StatusRead
	case m.Delivered:
		return StatusDelivered
	default:
		return StatusSent
	}
}

// Has reports whether flag is effectively set. Read implies delivered.
func (m Message) Has(flag Flag) bool {
	switch flag {
	case FlagRead:
		return m.Read
	case FlagDelivered:
		return m.Delivered || m.Read
	}
	return false
}

// Apply sets flag and reports whether anything changed. Flags only move
// forward; setting read also sets delivered.
func (m *Message) Apply(flag Flag) bool {
	changed := false
	switch flag {
	case FlagRead:
		if !m.Read {
			m.Read = true
			changed = true
		}
		if !m.Delivered {
			m.Delivered = true
			changed = true
		}
	case FlagDelivered:
		if !m.Delivered {
			m.Delivered = true
			changed = true
		}
	}
	return changed
}

