package usecase

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "matchchat/chat"

type engineMetrics struct {
	sent            metric.Int64Counter
	duplicates      metric.Int64Counter
	persistFailures metric.Int64Counter
	delivered       metric.Int64Counter
	read            metric.Int64Counter
	replayed        metric.Int64Counter
	repairEnqueued  metric.Int64Counter
	repaired        metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter) *engineMetrics {
	return &engineMetrics{
		sent:            counter(meter, "chat.messages.sent", "Messages persisted in both copies"),
		duplicates:      counter(meter, "chat.messages.duplicate", "Sends answered from an existing message"),
		persistFailures: counter(meter, "chat.persistence.failures", "Store writes that exhausted retries"),
		delivered:       counter(meter, "chat.messages.delivered", "Delivered transitions"),
		read:            counter(meter, "chat.messages.read", "Read transitions"),
		replayed:        counter(meter, "chat.messages.replayed", "Messages flushed on join"),
		repairEnqueued:  counter(meter, "chat.repair.enqueued", "Background copy repairs scheduled"),
		repaired:        counter(meter, "chat.repair.completed", "Participant copies repaired in the background"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func add(ctx context.Context, c metric.Int64Counter, n int) {
	if n > 0 {
		c.Add(ctx, int64(n))
	}
}
