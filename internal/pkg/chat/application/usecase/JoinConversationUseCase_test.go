package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFunc func(a, b string) (bool, error)

func (f gateFunc) AreConnected(_ context.Context, a, b string) (bool, error) { return f(a, b) }

func TestJoinConversationResolvesSymmetricRoom(t *testing.T) {
	uc := NewJoinConversationUseCase(nil)

	ab, err := uc.Execute(context.Background(), JoinConversationInput{UserID: "alice", OtherUserID: "bob"})
	require.NoError(t, err)
	ba, err := uc.Execute(context.Background(), JoinConversationInput{UserID: "bob", OtherUserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestJoinConversationConsultsGate(t *testing.T) {
	tests := []struct {
		name string
		gate gateFunc
		want error
	}{
		{"refused", func(string, string) (bool, error) { return false, nil }, ErrNotConnected},
		{"gate down", func(string, string) (bool, error) { return false, errors.New("db down") }, ErrPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJoinConversationUseCase(tt.gate).Execute(context.Background(), JoinConversationInput{UserID: "alice", OtherUserID: "bob"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJoinConversationValidates(t *testing.T) {
	uc := NewJoinConversationUseCase(nil)
	_, err := uc.Execute(context.Background(), JoinConversationInput{UserID: "alice"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = uc.Execute(context.Background(), JoinConversationInput{UserID: "alice", OtherUserID: "alice"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
