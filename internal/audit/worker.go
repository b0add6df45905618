package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes one record to the audit topic. Implemented by
// platform/kafka; kept as an interface so relay tests can stub the broker.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// OutboxRelay polls the audit outbox and ships unpublished entries to Kafka.
// At-least-once: an entry is marked published only after the broker acks, so
// a crash between produce and mark replays the entry.
type OutboxRelay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger
	metrics  *Metrics
	interval time.Duration
	batch    int
}

// RelayOption configures an OutboxRelay.
type RelayOption func(*OutboxRelay)

// WithRelayInterval overrides the poll interval.
func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *OutboxRelay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRelayMetrics sets the metrics collector.
func WithRelayMetrics(m *Metrics) RelayOption {
	return func(r *OutboxRelay) {
		r.metrics = m
	}
}

// NewOutboxRelay constructs a relay over the outbox table.
func NewOutboxRelay(db *sql.DB, producer Producer, logger *slog.Logger, opts ...RelayOption) *OutboxRelay {
	r := &OutboxRelay{
		db:       db,
		producer: producer,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run polls until ctx is cancelled. Publish failures are logged and retried
// on the next tick.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.metrics.IncRelayFailures()
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

type outboxEntry struct {
	id          uuid.UUID
	aggregateID string
	payload     []byte
}

func (r *OutboxRelay) relayBatch(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, r.batch)
	if err != nil {
		return fmt.Errorf("select outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []outboxEntry
	for rows.Next() {
		var e outboxEntry
		if err := rows.Scan(&e.id, &e.aggregateID, &e.payload); err != nil {
			return fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox entries: %w", err)
	}

	for _, e := range entries {
		if err := r.producer.Produce(ctx, e.aggregateID, e.payload); err != nil {
			return fmt.Errorf("produce outbox entry %s: %w", e.id, err)
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = $1 WHERE id = $2`,
			time.Now().UTC(), e.id,
		); err != nil {
			return fmt.Errorf("mark outbox entry %s published: %w", e.id, err)
		}
		r.metrics.IncRelayPublished()
	}
	return nil
}
