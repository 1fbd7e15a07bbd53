package client

import (
	"errors"
	"sync"
	"time"

	chat "matchchat/internal/pkg/chat/application/domain"
)

var (
	ErrUnknownMessage = errors.New("client: unknown message")
	ErrNotRetryable   = errors.New("client: message is not in error state")
)

// Entry is one rendered message and its current status.
type Entry struct {
	Message  chat.Message
	Status   chat.Status
	QueuedAt time.Time
}

// Timeline is the client's view of its conversations: own messages waiting
// in the outbox plus everything acknowledged or received, keyed by message id
// so echoes and replays never render twice.
type Timeline struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*Entry
	now     func() time.Time
}

func NewTimeline(now func() time.Time) *Timeline {
	if now == nil {
		now = time.Now
	}
	return &Timeline{entries: make(map[string]*Entry), now: now}
}

func (t *Timeline) insertLocked(e *Entry) {
	t.order = append(t.order, e.Message.ID)
	t.entries[e.Message.ID] = e
}

// Enqueue adds an outgoing message in the sending state.
func (t *Timeline) Enqueue(m chat.Message) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[m.ID]; ok {
		return *e
	}
	e := &Entry{Message: m, Status: chat.StatusSending, QueuedAt: t.now()}
	t.insertLocked(e)
	return *e
}

// Ack applies a server echo of an own message. An unknown id (sent from
// another device) is inserted.
func (t *Timeline) Ack(m chat.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := m.Status()
	e, ok := t.entries[m.ID]
	if !ok {
		t.insertLocked(&Entry{Message: m, Status: status, QueuedAt: t.now()})
		return
	}
	e.Message.CreatedAt = m.CreatedAt
	if status.Rank() > e.Status.Rank() {
		e.Status = status
	}
}

// Receive records an incoming message. It reports false for an id already
// present, which the caller must not render again.
func (t *Timeline) Receive(m chat.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[m.ID]; ok {
		return false
	}
	t.insertLocked(&Entry{Message: m, Status: m.Status(), QueuedAt: t.now()})
	return true
}

// Advance moves id forward to status; it never moves backwards.
func (t *Timeline) Advance(id string, status chat.Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || status.Rank() <= e.Status.Rank() {
		return false
	}
	e.Status = status
	switch status {
	case chat.StatusRead:
		e.Message.Read, e.Message.Delivered = true, true
	case chat.StatusDelivered:
		e.Message.Delivered = true
	}
	return true
}

// Fail marks a message still sending as error.
func (t *Timeline) Fail(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.Status != chat.StatusSending {
		return false
	}
	e.Status = chat.StatusError
	return true
}

// Expire moves messages that stayed in sending longer than timeout to error
// and returns their ids.
func (t *Timeline) Expire(timeout time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-timeout)
	var ids []string
	for _, id := range t.order {
		e := t.entries[id]
		if e.Status == chat.StatusSending && e.QueuedAt.Before(cutoff) {
			e.Status = chat.StatusError
			ids = append(ids, id)
		}
	}
	return ids
}

// Retry puts an errored message back into the outbox.
func (t *Timeline) Retry(id string) (chat.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return chat.Message{}, ErrUnknownMessage
	}
	if e.Status != chat.StatusError {
		return chat.Message{}, ErrNotRetryable
	}
	e.Status = chat.StatusSending
	e.QueuedAt = t.now()
	return e.Message, nil
}

// Outbox returns messages still waiting for a server ack, oldest first.
func (t *Timeline) Outbox() []chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []chat.Message
	for _, id := range t.order {
		if e := t.entries[id]; e.Status == chat.StatusSending {
			out = append(out, e.Message)
		}
	}
	return out
}

// Get returns the entry for id.
func (t *Timeline) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns every entry in insertion order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.entries[id])
	}
	return out
}
