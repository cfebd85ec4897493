// Package postgres implements the scheduling repositories on top of pgx. Every mutation writes
// its outbox rows in the same transaction as the change itself.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelmorch/platform-sports/internal/events"
)

const insertOutboxSQL = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

// outboxRecord is one event queued alongside a mutation.
type outboxRecord struct {
	eventType    string
	aggregateID  string
	partitionKey string
	occurredAt   time.Time
	payload      any
}

// queueOutbox appends the outbox insert for rec to batch.
func queueOutbox(batch *pgx.Batch, rec outboxRecord) error {
	route, ok := events.RouteFor(rec.eventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", rec.eventType)
	}
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}
	partitionKey := rec.partitionKey
	if partitionKey == "" {
		partitionKey = rec.aggregateID
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", rec.aggregateID, rec.eventType, rec.occurredAt.UnixNano())

	batch.Queue(insertOutboxSQL,
		route.AggregateType,
		rec.aggregateID,
		rec.eventType,
		route.Topic,
		route.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return nil
}

// withTx runs fn inside a transaction and commits when it returns nil.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) (err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// execBatch sends every queued statement and fails on the first error.
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}
