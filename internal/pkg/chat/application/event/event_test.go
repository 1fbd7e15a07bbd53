package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "matchchat/internal/pkg/chat/application/domain"
)

func TestDecodeRequiresType(t *testing.T) {
	_, err := Decode([]byte(`{"sender":"a"}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	in, err := Decode([]byte(`{"type":"send","messageId":"c1","sender":"a","receiver":"b","content":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSend, in.Type)
	assert.Equal(t, "c1", in.MessageID)
}

func TestMessageFrameFlattensPayload(t *testing.T) {
	m := chat.Message{ID: "m1", SenderID: "bob", ReceiverID: "alice", Content: "hello", CreatedAt: time.Unix(0, 0).UTC(), Read: true}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(Encode(NewMessage(m, true)), &decoded))

	assert.Equal(t, TypeMessage, decoded["type"])
	assert.Equal(t, chat.RoomID("alice", "bob"), decoded["room"])
	assert.Equal(t, true, decoded["replay"])
	inner := decoded["message"].(map[string]any)
	assert.Equal(t, "m1", inner["id"])
	assert.Equal(t, "hello", inner["content"])
	assert.Equal(t, "read", inner["status"])
}

func TestNewSeenSingleAndBulk(t *testing.T) {
	single := NewSeen([]string{"m1"}, "bob", "alice")
	assert.Equal(t, "m1", single.MessageID)

	bulk := NewSeen([]string{"m1", "m2"}, "bob", "alice")
	assert.Empty(t, bulk.MessageID)
	assert.Len(t, bulk.MessageIDs, 2)
}

func TestEncodeRejectsUnsupportedValues(t *testing.T) {
	assert.Nil(t, Encode(make(chan int)))
}
