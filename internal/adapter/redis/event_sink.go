package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/rankpulse/internal/domain"
)

// EventsChannel is the pub/sub channel domain events are published on.
const EventsChannel = "rankpulse:events"

// EventSink publishes domain events to a Redis channel for consumers outside
// this process. A circuit breaker stops publishing while Redis is failing so a
// Redis outage costs one fast error per event instead of a timeout.
type EventSink struct {
	rdb goredis.Cmdable
	cb  *gobreaker.CircuitBreaker
}

func NewEventSink(rdb goredis.Cmdable) *EventSink {
	return newEventSink(rdb, gobreaker.Settings{
		Name:        "redis-events",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}

func newEventSink(rdb goredis.Cmdable, settings gobreaker.Settings) *EventSink {
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
	}
	return &EventSink{rdb: rdb, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (s *EventSink) Name() string { return "redis" }

func (s *EventSink) Send(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.cb.Execute(func() (any, error) {
		return nil, s.rdb.Publish(ctx, EventsChannel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}
	return nil
}

// State reports the breaker state.
func (s *EventSink) State() gobreaker.State {
	return s.cb.State()
}
