package chat

import "time"

// Conversation is one participant's own copy of a two-party thread.
// Messages are kept in insertion order.
type Conversation struct {
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	PartnerID string    `db:"partner_id" json:"partnerId"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Undelivered returns, in order, messages from sender not yet delivered to the owner.
func (c *Conversation) Undelivered(sender string) []Message {
	if c == nil {
		return nil
	}
	var out []Message
	for _, m := range c.Messages {
		if m.SenderID == sender && !m.Has(FlagDelivered) {
			out = append(out, m)
		}
	}
	return out
}

// Unread returns, in order, messages from sender the owner has not read yet.
func (c *Conversation) Unread(sender string) []Message {
	if c == nil {
		return nil
	}
	var out []Message
	for _, m := range c.Messages {
		if m.SenderID == sender && !m.Read {
			out = append(out, m)
		}
	}
	return out
}
