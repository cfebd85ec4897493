package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/events"
)

// AttendanceRepository stores attendance entries keyed by (activity_id, user_id).
type AttendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Find returns the entry or nil when the user has not confirmed.
func (r *AttendanceRepository) Find(ctx context.Context, activityID, userID string) (*domain.AttendanceEntry, error) {
	const query = `SELECT activity_id, user_id, confirmed_at FROM attendance_entries WHERE activity_id=$1 AND user_id=$2`

	var entry domain.AttendanceEntry
	err := r.pool.QueryRow(ctx, query, activityID, userID).Scan(&entry.ActivityID, &entry.UserID, &entry.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	entry.ConfirmedAt = entry.ConfirmedAt.UTC()
	return &entry, nil
}

// Insert stores the entry unless one already exists for the pair. The primary key absorbs
// double submissions.
func (r *AttendanceRepository) Insert(ctx context.Context, entry domain.AttendanceEntry) (bool, error) {
	created := false
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO attendance_entries (activity_id, user_id, confirmed_at) VALUES ($1,$2,$3)
             ON CONFLICT (activity_id, user_id) DO NOTHING`,
			entry.ActivityID, entry.UserID, entry.ConfirmedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true

		batch := &pgx.Batch{}
		if err := queueOutbox(batch, outboxRecord{
			eventType:    events.TypeAttendanceConfirmed,
			aggregateID:  entry.ActivityID + ":" + entry.UserID,
			partitionKey: entry.ActivityID,
			occurredAt:   entry.ConfirmedAt,
			payload: events.AttendanceConfirmed{
				ActivityID:  entry.ActivityID,
				UserID:      entry.UserID,
				ConfirmedAt: entry.ConfirmedAt,
			},
		}); err != nil {
			return err
		}
		return execBatch(ctx, tx, batch)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Delete removes the entry and reports whether one existed.
func (r *AttendanceRepository) Delete(ctx context.Context, activityID, userID string) (bool, error) {
	removed := false
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM attendance_entries WHERE activity_id=$1 AND user_id=$2`, activityID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		removed = true

		now := time.Now().UTC()
		batch := &pgx.Batch{}
		if err := queueOutbox(batch, outboxRecord{
			eventType:    events.TypeAttendanceCancelled,
			aggregateID:  activityID + ":" + userID,
			partitionKey: activityID,
			occurredAt:   now,
			payload:      events.AttendanceCancelled{ActivityID: activityID, UserID: userID, OccurredAt: now},
		}); err != nil {
			return err
		}
		return execBatch(ctx, tx, batch)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Count returns the authoritative number of entries for the activity.
func (r *AttendanceRepository) Count(ctx context.Context, activityID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_entries WHERE activity_id=$1`, activityID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountMany returns entry counts for several activities in one query. Activities without
// entries are absent from the map.
func (r *AttendanceRepository) CountMany(ctx context.Context, activityIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(activityIDs))
	if len(activityIDs) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT activity_id, COUNT(*) FROM attendance_entries WHERE activity_id = ANY($1) GROUP BY activity_id`,
		activityIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// List returns entries in confirmation order.
func (r *AttendanceRepository) List(ctx context.Context, activityID string) ([]domain.AttendanceEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT activity_id, user_id, confirmed_at FROM attendance_entries
          WHERE activity_id=$1 ORDER BY confirmed_at ASC, user_id ASC`,
		activityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AttendanceEntry, 0)
	for rows.Next() {
		var entry domain.AttendanceEntry
		if err := rows.Scan(&entry.ActivityID, &entry.UserID, &entry.ConfirmedAt); err != nil {
			return nil, err
		}
		entry.ConfirmedAt = entry.ConfirmedAt.UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
