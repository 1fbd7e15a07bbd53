// Package client is a resilient chat client: it keeps an outbox of unacked
// messages, dedupes echoes and replays, pings the server and reconnects with
// exponential backoff, re-joining rooms and re-sending the outbox.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

var ErrNotConnected = errors.New("client: not connected")

const writeWait = 5 * time.Second

type Options struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8080/api/v1/chat/ws.
	URL    string
	UserID string
	// Token is sent as a bearer token; without it UserID goes in the query.
	Token string

	PingInterval     time.Duration
	AckTimeout       time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	Dialer *websocket.Dialer
	Log    logrus.FieldLogger
	// OnFrame observes every inbound frame after the timeline was updated.
	// Replayed or echoed messages already on the timeline are not passed on.
	OnFrame func(Frame)
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = 500 * time.Millisecond
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = 30 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.Log = l
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Frame is any server → client frame. Fields unused by a type stay empty.
type Frame struct {
	Type        string                `json:"type"`
	Room        string                `json:"room,omitempty"`
	UserID      string                `json:"userId,omitempty"`
	OtherUserID string                `json:"otherUserId,omitempty"`
	Success     bool                  `json:"success,omitempty"`
	Message     *event.MessagePayload `json:"message,omitempty"`
	Replay      bool                  `json:"replay,omitempty"`
	MessageID   string                `json:"messageId,omitempty"`
	MessageIDs  []string              `json:"messageIds,omitempty"`
	Sender      string                `json:"sender,omitempty"`
	Receiver    string                `json:"receiver,omitempty"`
	Reader      string                `json:"reader,omitempty"`
	Status      string                `json:"status,omitempty"`
	LastActive  time.Time             `json:"lastActive,omitempty"`
	Code        string                `json:"code,omitempty"`
	Error       string                `json:"error,omitempty"`
	Time        int64                 `json:"time,omitempty"`
}

type Client struct {
	opts     Options
	timeline *Timeline

	mu    sync.Mutex
	conn  *websocket.Conn
	rooms map[string]struct{} // partner ids

	writeMu sync.Mutex
}

func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:     opts,
		timeline: NewTimeline(opts.Now),
		rooms:    make(map[string]struct{}),
	}
}

func (c *Client) Timeline() *Timeline { return c.timeline }

// Connected reports whether a session is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run keeps a session open until ctx ends, reconnecting with exponential
// backoff. The backoff resets after every successful connect.
func (c *Client) Run(ctx context.Context) error {
	go c.sweep(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectInitial
	b.MaxInterval = c.opts.ReconnectMax
	b.MaxElapsedTime = 0

	for {
		err := c.session(ctx, b.Reset)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		c.opts.Log.WithError(err).WithField("retry_in", wait.String()).Info("chat connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Join remembers partner's room and joins it now if connected. Rooms are
// re-joined on every reconnect, which triggers the server-side replay.
func (c *Client) Join(partnerID string) error {
	c.mu.Lock()
	c.rooms[partnerID] = struct{}{}
	c.mu.Unlock()
	return c.write(event.Inbound{Type: event.TypeJoin, UserID: c.opts.UserID, OtherUserID: partnerID})
}

func (c *Client) Leave(partnerID string) error {
	c.mu.Lock()
	delete(c.rooms, partnerID)
	c.mu.Unlock()
	return c.write(event.Inbound{Type: event.TypeLeave, UserID: c.opts.UserID, OtherUserID: partnerID})
}

// Send queues a message and transmits it if connected. A failed write leaves
// it in the outbox for the next session.
func (c *Client) Send(receiverID, content string) (chat.Message, error) {
	m, err := chat.NewMessage(chat.Message{SenderID: c.opts.UserID, ReceiverID: receiverID, Content: content}, c.opts.Now())
	if err != nil {
		return chat.Message{}, err
	}
	c.timeline.Enqueue(*m)
	if err := c.transmit(*m); err != nil && !errors.Is(err, ErrNotConnected) {
		c.opts.Log.WithField("message_id", m.ID).WithError(err).Debug("send deferred to next session")
	}
	return *m, nil
}

// Retry re-queues a message in error state.
func (c *Client) Retry(id string) error {
	m, err := c.timeline.Retry(id)
	if err != nil {
		return err
	}
	if err := c.transmit(m); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// Seen marks messages from partnerID read; an empty messageID means all.
func (c *Client) Seen(partnerID, messageID string) error {
	return c.write(event.Inbound{Type: event.TypeSeen, MessageID: messageID, Sender: c.opts.UserID, Receiver: partnerID})
}

func (c *Client) Typing(partnerID string, typing bool) error {
	typ := event.TypeStopTyping
	if typing {
		typ = event.TypeTyping
	}
	return c.write(event.Inbound{Type: typ, Sender: c.opts.UserID, Receiver: partnerID})
}

func (c *Client) transmit(m chat.Message) error {
	ts := m.CreatedAt
	return c.write(event.Inbound{
		Type:      event.TypeSend,
		MessageID: m.ID,
		Sender:    m.SenderID,
		Receiver:  m.ReceiverID,
		Content:   m.Content,
		Timestamp: &ts,
	})
}

func (c *Client) write(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeTo(conn, v)
}

func (c *Client) writeTo(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	} else {
		q := u.Query()
		q.Set("user_id", c.opts.UserID)
		u.RawQuery = q.Encode()
	}
	conn, _, err := c.opts.Dialer.DialContext(ctx, u.String(), header)
	return conn, err
}

// session runs one connection until it fails.
func (c *Client) session(ctx context.Context, connected func()) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	connected()

	readTimeout := 2 * c.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.rooms))
	for partner := range c.rooms {
		rooms = append(rooms, partner)
	}
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
	}()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	for _, partner := range rooms {
		if err := c.writeTo(conn, event.Inbound{Type: event.TypeJoin, UserID: c.opts.UserID, OtherUserID: partner}); err != nil {
			return err
		}
	}
	for _, m := range c.timeline.Outbox() {
		if err := c.transmit(m); err != nil {
			return err
		}
	}
	go c.keepAlive(sessionCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.opts.Log.WithError(err).Debug("undecodable frame dropped")
			continue
		}
		c.handle(f)
	}
}

// keepAlive sends application pings; the server answers with pong and
// refreshes the user's last activity.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeTo(conn, event.Inbound{Type: event.TypePing, Time: c.opts.Now().UnixMilli()}); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// sweep moves messages unacked for longer than AckTimeout to error.
func (c *Client) sweep(ctx context.Context) {
	interval := c.opts.AckTimeout / 2
	if interval <= 0 {
		interval = c.opts.AckTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range c.timeline.Expire(c.opts.AckTimeout) {
				c.opts.Log.WithField("message_id", id).Warn("message not acknowledged in time")
			}
		}
	}
}

func (c *Client) handle(f Frame) {
	switch f.Type {
	case event.TypeSent:
		if f.Message != nil {
			c.timeline.Ack(f.Message.Message)
		}
	case event.TypeMessage:
		if f.Message == nil {
			return
		}
		if f.Message.SenderID == c.opts.UserID {
			c.timeline.Ack(f.Message.Message)
			return
		}
		if !c.timeline.Receive(f.Message.Message) {
			return
		}
	case event.TypeDelivered:
		c.timeline.Advance(f.MessageID, chat.StatusDelivered)
	case event.TypeDeliveredBatch:
		for _, id := range f.MessageIDs {
			c.timeline.Advance(id, chat.StatusDelivered)
		}
	case event.TypeSeen:
		ids := f.MessageIDs
		if len(ids) == 0 && f.MessageID != "" {
			ids = []string{f.MessageID}
		}
		for _, id := range ids {
			c.timeline.Advance(id, chat.StatusRead)
		}
	case event.TypeError:
		if f.MessageID != "" {
			c.timeline.Fail(f.MessageID)
		}
	}
	if c.opts.OnFrame != nil {
		c.opts.OnFrame(f)
	}
}
