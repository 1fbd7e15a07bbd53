package adapter

import (
	"context"
	"sync"

	chat "matchchat/internal/pkg/chat/application/domain"
	repository "matchchat/internal/pkg/chat/persistence/repository/port"
)

// MemoryMessageStore keeps conversations in process memory. It backs the
// "memory" store driver and the tests.
type MemoryMessageStore struct {
	mu            sync.RWMutex
	conversations map[string]map[string]*chat.Conversation // owner -> partner -> copy
	partners      map[string]map[string]string             // owner -> messageID -> partner
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		conversations: make(map[string]map[string]*chat.Conversation),
		partners:      make(map[string]map[string]string),
	}
}

var _ repository.MessageStore = (*MemoryMessageStore)(nil)

func (s *MemoryMessageStore) AppendMessage(ctx context.Context, ownerID, partnerID string, m chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[ownerID][m.ID]; ok {
		return nil
	}
	byPartner := s.conversations[ownerID]
	if byPartner == nil {
		byPartner = make(map[string]*chat.Conversation)
		s.conversations[ownerID] = byPartner
	}
	conv := byPartner[partnerID]
	if conv == nil {
		conv = &chat.Conversation{OwnerID: ownerID, PartnerID: partnerID}
		byPartner[partnerID] = conv
	}
	conv.Messages = append(conv.Messages, m)
	if m.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = m.CreatedAt
	}

	index := s.partners[ownerID]
	if index == nil {
		index = make(map[string]string)
		s.partners[ownerID] = index
	}
	index[m.ID] = partnerID
	return nil
}

func (s *MemoryMessageStore) FindConversation(ctx context.Context, ownerID, partnerID string) (*chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.conversations[ownerID][partnerID]
	if conv == nil {
		return nil, chat.ErrConversationNotFound
	}
	cp := *conv
	cp.Messages = append([]chat.Message(nil), conv.Messages...)
	return &cp, nil
}

func (s *MemoryMessageStore) FindMessage(ctx context.Context, ownerID, messageID string) (*chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.lookupLocked(ownerID, messageID)
	if m == nil {
		return nil, chat.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryMessageStore) SetMessageFlag(ctx context.Context, ownerID, messageID string, flag chat.Flag, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !flag.Valid() {
		return chat.ErrUnknownFlag
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.lookupLocked(ownerID, messageID)
	if m == nil {
		return chat.ErrMessageNotFound
	}
	switch flag {
	case chat.FlagDelivered:
		m.Delivered = value
	case chat.FlagRead:
		m.Read = value
		m.Delivered = m.Delivered || value
	}
	return nil
}

func (s *MemoryMessageStore) lookupLocked(ownerID, messageID string) *chat.Message {
	partner, ok := s.partners[ownerID][messageID]
	if !ok {
		return nil
	}
	conv := s.conversations[ownerID][partner]
	if conv == nil {
		return nil
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == messageID {
			return &conv.Messages[i]
		}
	}
	return nil
}
