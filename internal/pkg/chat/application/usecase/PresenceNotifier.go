package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	cacheport "matchchat/internal/infrastructure/cache/port"
	chat "matchchat/internal/pkg/chat/application/domain"
	"matchchat/internal/pkg/chat/application/event"
)

// Directory answers who is online and where. *realtime.Hub satisfies it.
type Directory interface {
	IsOnline(userID string) bool
	RoomsOfUser(userID string) []string
}

// PresenceNotifier announces online/offline transitions into the rooms a user
// participates in. It is only called on 0→1 and 1→0 handle transitions, so
// extra devices never re-announce.
type PresenceNotifier struct {
	dir    Directory
	fanout Fanout
	cache  cacheport.Cache
	ttl    time.Duration
	log    logrus.FieldLogger
	now    func() time.Time

	mu         sync.Mutex
	lastActive map[string]time.Time
	announced  map[string]map[string]struct{} // user -> rooms told "online"
}

func NewPresenceNotifier(dir Directory, deps Deps) *PresenceNotifier {
	deps = deps.withDefaults()
	return &PresenceNotifier{
		dir:        dir,
		fanout:     deps.Fanout,
		cache:      deps.Cache,
		ttl:        30 * 24 * time.Hour,
		log:        deps.Log,
		now:        deps.Now,
		lastActive: make(map[string]time.Time),
		announced:  make(map[string]map[string]struct{}),
	}
}

func lastActiveKey(userID string) string {
	return "presence:last_active:" + userID
}

// Touch records activity for userID and returns the recorded time.
func (p *PresenceNotifier) Touch(ctx context.Context, userID string) time.Time {
	now := p.now().UTC()
	p.mu.Lock()
	p.lastActive[userID] = now
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Set(ctx, lastActiveKey(userID), now.Format(time.RFC3339Nano), p.ttl); err != nil {
			p.log.WithField("user_id", userID).WithError(err).Debug("last active not cached")
		}
	}
	return now
}

// LastActive returns the last recorded activity, preferring the shared cache.
func (p *PresenceNotifier) LastActive(ctx context.Context, userID string) (time.Time, bool) {
	if p.cache != nil {
		raw, err := p.cache.Get(ctx, lastActiveKey(userID))
		if err == nil {
			if t, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
				return t, true
			}
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastActive[userID]
	return t, ok
}

// Snapshot is the current presence of userID.
func (p *PresenceNotifier) Snapshot(ctx context.Context, userID string) chat.Presence {
	status := chat.PresenceOffline
	if p.dir.IsOnline(userID) {
		status = chat.PresenceOnline
	}
	last, _ := p.LastActive(ctx, userID)
	return chat.Presence{UserID: userID, Status: status, LastActive: last}
}

// AnnounceOnline multicasts an online event to every room any handle of
// userID has joined. It returns the number of rooms announced to.
func (p *PresenceNotifier) AnnounceOnline(ctx context.Context, userID string) int {
	pr := chat.Presence{UserID: userID, Status: chat.PresenceOnline, LastActive: p.Touch(ctx, userID)}
	rooms := p.dir.RoomsOfUser(userID)
	p.remember(userID, rooms...)
	return p.announce(pr, rooms)
}

// AnnounceOffline multicasts an offline event to rooms, which must be
// captured before the last handle left them, and to every room userID was
// announced online in since its first handle connected.
func (p *PresenceNotifier) AnnounceOffline(ctx context.Context, userID string, rooms []string) int {
	pr := chat.Presence{UserID: userID, Status: chat.PresenceOffline, LastActive: p.Touch(ctx, userID)}
	return p.announce(pr, p.forget(userID, rooms))
}

// AnnounceInRoom tells one room that userID is online; used when the user's
// first handle enters that room.
func (p *PresenceNotifier) AnnounceInRoom(ctx context.Context, userID, roomID string) {
	last, ok := p.LastActive(ctx, userID)
	if !ok {
		last = p.Touch(ctx, userID)
	}
	p.remember(userID, roomID)
	p.announce(chat.Presence{UserID: userID, Status: chat.PresenceOnline, LastActive: last}, []string{roomID})
}

func (p *PresenceNotifier) remember(userID string, rooms ...string) {
	if len(rooms) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.announced[userID]
	if set == nil {
		set = make(map[string]struct{}, len(rooms))
		p.announced[userID] = set
	}
	for _, room := range rooms {
		set[room] = struct{}{}
	}
}

// forget drops the announced set of userID and returns it merged with rooms.
func (p *PresenceNotifier) forget(userID string, rooms []string) []string {
	p.mu.Lock()
	set := p.announced[userID]
	delete(p.announced, userID)
	p.mu.Unlock()

	if set == nil {
		set = make(map[string]struct{}, len(rooms))
	}
	for _, room := range rooms {
		set[room] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for room := range set {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

func (p *PresenceNotifier) announce(pr chat.Presence, rooms []string) int {
	if len(rooms) == 0 {
		return 0
	}
	payload := event.Encode(event.NewPresence(pr))
	for _, room := range rooms {
		p.fanout.Multicast(room, payload)
	}
	p.log.WithFields(logrus.Fields{
		"user_id": pr.UserID,
		"status":  pr.Status,
		"rooms":   len(rooms),
	}).Debug("presence announced")
	return len(rooms)
}
