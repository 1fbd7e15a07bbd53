package usecase

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	cacheport "matchchat/internal/infrastructure/cache/port"
	qport "matchchat/internal/infrastructure/queue/port"
	"matchchat/internal/infrastructure/realtime"
	repository "matchchat/internal/pkg/chat/persistence/repository/port"
)

// Fanout is how the engine reaches live handles. *realtime.Hub satisfies it.
type Fanout interface {
	Multicast(roomID string, payload []byte) realtime.Reach
	NotifyUser(userID string, payload []byte) int
}

// Emitter is a single live handle.
type Emitter interface {
	Send(payload []byte) error
}

// Deps groups the collaborators shared by the delivery engine use cases.
// Cache and Queue are optional. Locks must be one instance shared by every
// use case built from these deps; nil gives each use case a private set.
type Deps struct {
	Store     repository.MessageStore
	Fanout    Fanout
	Locks     *UserLocks
	Retry     RetryPolicy
	Cache     cacheport.Cache
	DedupeTTL time.Duration
	Queue     qport.Client
	Log       logrus.FieldLogger
	Now       func() time.Time
	// Meter records the engine counters; nil uses the global provider.
	Meter metric.Meter
}

func (d Deps) withDefaults() Deps {
	if d.Locks == nil {
		d.Locks = NewUserLocks()
	}
	d.Retry = d.Retry.normalized()
	if d.DedupeTTL <= 0 {
		d.DedupeTTL = 24 * time.Hour
	}
	if d.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		d.Log = l
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Meter == nil {
		d.Meter = otel.Meter(meterName)
	}
	return d
}
