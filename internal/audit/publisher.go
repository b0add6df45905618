package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher buffers events and persists them from a background worker.
// Telemetry audit is operational, not compliance: when the buffer is full the
// event is dropped and counted rather than blocking the ingest path.
type Publisher struct {
	store   Store
	inbox   chan Event
	logger  *slog.Logger
	metrics *Metrics
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithLogger sets a logger for persistence failures.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferSize overrides the inbox capacity.
func WithBufferSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Event, n)
		}
	}
}

// NewPublisher constructs a buffered audit publisher over the given store.
func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		inbox:  make(chan Event, 1024),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Emit enqueues an event. Never blocks; a full buffer drops the event.
func (p *Publisher) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
		p.metrics.IncEmitted()
	default:
		p.metrics.IncDropped()
	}
}

// Run drains the inbox into the store until ctx is cancelled. Persistence
// failures are logged and counted, never fatal: one bad write must not stop
// the audit stream.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case event := <-p.inbox:
			p.append(ctx, event)
		}
	}
}

// drain flushes whatever is already buffered during shutdown.
func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-p.inbox:
			p.append(ctx, event)
		default:
			return
		}
	}
}

func (p *Publisher) append(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures()
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"shipment_id", event.ShipmentID,
			"error", err,
		)
	}
}
