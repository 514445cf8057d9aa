// Package eventpublisher fans domain events out to live delivery sinks
// without blocking the request that produced them.
package eventpublisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pscheid92/rankpulse/internal/adapter/metrics"
	"github.com/pscheid92/rankpulse/internal/domain"
)

const (
	DefaultBufferSize  = 256
	DefaultSendTimeout = 2 * time.Second
)

// Sink delivers one event to one transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, event domain.Event) error
}

type queuedEvent struct {
	ctx   context.Context
	event domain.Event
}

// Publisher implements domain.EventPublisher. Events are queued and delivered
// to every sink by a single worker, so each sink sees events in publish order.
// When the queue is full the event is dropped.
type Publisher struct {
	sinks       []Sink
	queue       chan queuedEvent
	sendTimeout time.Duration
	metrics     *metrics.EventMetrics

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ domain.EventPublisher = (*Publisher)(nil)

type Option func(*Publisher)

func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan queuedEvent, n)
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

func WithMetrics(m *metrics.EventMetrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New starts the delivery worker. Call Stop to drain and release it.
func New(sinks []Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sinks:       sinks,
		queue:       make(chan queuedEvent, DefaultBufferSize),
		sendTimeout: DefaultSendTimeout,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run()
	return p
}

func (p *Publisher) Publish(ctx context.Context, event domain.Event) {
	select {
	case <-p.quit:
		slog.DebugContext(ctx, "Event publisher stopped, dropping event", "kind", event.Kind)
		return
	default:
	}

	select {
	case p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		p.setQueueLen()
	default:
		if p.metrics != nil {
			p.metrics.Dropped.Inc()
		}
		slog.WarnContext(ctx, "Event queue full, dropping event", "kind", event.Kind)
	}
}

// Stop delivers what is already queued and waits for the worker, or gives up
// when ctx ends first.
func (p *Publisher) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.quit) })

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	for {
		select {
		case q := <-p.queue:
			p.deliver(q)
		case <-p.quit:
			for {
				select {
				case q := <-p.queue:
					p.deliver(q)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) deliver(q queuedEvent) {
	p.setQueueLen()

	for _, sink := range p.sinks {
		ctx, cancel := context.WithTimeout(q.ctx, p.sendTimeout)
		err := sink.Send(ctx, q.event)
		cancel()

		if err != nil {
			if p.metrics != nil {
				p.metrics.Failed.WithLabelValues(sink.Name()).Inc()
			}
			slog.WarnContext(q.ctx, "Failed to deliver event", "sink", sink.Name(), "kind", q.event.Kind, "error", err)
			continue
		}
		if p.metrics != nil {
			p.metrics.Delivered.WithLabelValues(sink.Name(), string(q.event.Kind)).Inc()
		}
	}
}

func (p *Publisher) setQueueLen() {
	if p.metrics != nil {
		p.metrics.QueueLen.Set(float64(len(p.queue)))
	}
}
