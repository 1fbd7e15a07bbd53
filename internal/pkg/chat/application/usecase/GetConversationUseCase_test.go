package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConversationPagesFromNewest(t *testing.T) {
	e := newEngine(t)
	for i := 1; i <= 5; i++ {
		_, err := e.Send.Execute(context.Background(), SendMessageInput{MessageID: fmt.Sprint(i), SenderID: "alice", ReceiverID: "bob", Content: "x"})
		require.NoError(t, err)
	}
	uc := NewGetConversationUseCase(e.deps)

	conv, err := uc.Execute(context.Background(), GetConversationInput{OwnerID: "bob", PartnerID: "alice", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, messageIDs(conv.Messages))

	conv, err = uc.Execute(context.Background(), GetConversationInput{OwnerID: "bob", PartnerID: "alice", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, messageIDs(conv.Messages))

	conv, err = uc.Execute(context.Background(), GetConversationInput{OwnerID: "bob", PartnerID: "alice", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestGetConversationEmptyForUnknownPair(t *testing.T) {
	e := newEngine(t)
	conv, err := NewGetConversationUseCase(e.deps).Execute(context.Background(), GetConversationInput{OwnerID: "bob", PartnerID: "carol"})
	require.NoError(t, err)
	assert.NotNil(t, conv.Messages)
	assert.Empty(t, conv.Messages)

	_, err = NewGetConversationUseCase(e.deps).Execute(context.Background(), GetConversationInput{OwnerID: "bob", PartnerID: "carol", Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
