package chat

import (
	"strconv"
	"strings"
)

// RoomSeparator joins the parts of a room id.
const RoomSeparator = ":"

// RoomID returns the identifier of the conversation room between a and b.
// It is symmetric, RoomID(a, b) == RoomID(b, a), and the length prefix of the
// lower id keeps it injective even when ids contain the separator.
func RoomID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + RoomSeparator + a + RoomSeparator + b
}

