package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler writes consumed events into the scheduling_event_log table.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event once per (topic, partition, offset); redelivered records are ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	ref, err := subjectOf(msg)
	if err != nil {
		return err
	}

	received := msg.Timestamp
	if received.IsZero() {
		received = time.Now().UTC()
	}

	_, err = h.pool.Exec(ctx,
		`INSERT INTO scheduling_event_log (topic, partition, "offset", event_type, activity_id, user_id, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         ON CONFLICT (topic, partition, "offset") DO NOTHING`,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.EventType,
		ref.ActivityID,
		ref.UserID,
		msg.Payload,
		received,
	)
	return err
}

type eventSubject struct {
	ActivityID string `json:"activity_id"`
	UserID     string `json:"user_id"`
}

func subjectOf(msg Message) (eventSubject, error) {
	var ref eventSubject
	if err := json.Unmarshal(msg.Payload, &ref); err != nil {
		return eventSubject{}, fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	if ref.ActivityID == "" {
		ref.ActivityID = msg.Key
	}
	if ref.ActivityID == "" {
		return eventSubject{}, fmt.Errorf("%s payload has no activity_id", msg.EventType)
	}
	return ref, nil
}
