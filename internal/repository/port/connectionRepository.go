package repository

import "context"

// ConnectionRepository answers whether two users are allowed to chat. The
// connection-request workflow that writes this state lives outside the chat
// service; this is a read-only view of it.
type ConnectionRepository interface {
	AreConnected(ctx context.Context, userA, userB string) (bool, error)
}

// AllowAll admits every pair; used when no gating backend is configured.
type AllowAll struct{}

func (AllowAll) AreConnected(context.Context, string, string) (bool, error) { return true, nil }
