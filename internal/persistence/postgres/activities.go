package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/events"
)

const activityColumns = `activity_id, owner_id, title, sport, description, start_at, address_text, city, state,
        capacity, waitlist_capacity, price_cents, image_ref, published, is_public, created_at, updated_at`

const insertActivitySQL = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

// ActivityRepository persists activity records.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// CreateBatch inserts every activity and its activity.published event in one transaction.
func (r *ActivityRepository) CreateBatch(ctx context.Context, activities []domain.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range activities {
			if err := queueActivityInsert(batch, a); err != nil {
				return err
			}
		}
		return execBatch(ctx, tx, batch)
	})
}

// UpdateWithSiblings rewrites the edited activity and inserts any new siblings atomically.
func (r *ActivityRepository) UpdateWithSiblings(ctx context.Context, updated domain.Activity, siblings []domain.Activity) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		const stmt = `UPDATE activities
               SET title=$2, sport=$3, description=$4, start_at=$5, address_text=$6, city=$7, state=$8,
                   capacity=$9, waitlist_capacity=$10, price_cents=$11, published=$12, is_public=$13, updated_at=$14
             WHERE activity_id=$1`

		tag, err := tx.Exec(ctx, stmt,
			updated.ID,
			updated.Title,
			updated.Sport,
			updated.Description,
			updated.StartAt,
			updated.AddressText,
			updated.City,
			updated.State,
			updated.Capacity,
			updated.WaitlistCapacity,
			updated.PriceCents,
			updated.Published,
			updated.Public,
			updated.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}

		batch := &pgx.Batch{}
		if err := queueOutbox(batch, outboxRecord{
			eventType:   events.TypeActivityUpdated,
			aggregateID: updated.ID,
			occurredAt:  updated.UpdatedAt,
			payload:     events.ActivityUpdated(activityPayload(updated, updated.UpdatedAt)),
		}); err != nil {
			return err
		}
		for _, sibling := range siblings {
			if err := queueActivityInsert(batch, sibling); err != nil {
				return err
			}
		}
		return execBatch(ctx, tx, batch)
	})
}

// Get returns the activity or nil when it does not exist.
func (r *ActivityRepository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// ListUpcoming returns published public activities starting at or after from, soonest first.
func (r *ActivityRepository) ListUpcoming(ctx context.Context, from time.Time, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{from, limit}
	query := `SELECT ` + activityColumns + ` FROM activities
        WHERE published AND is_public AND start_at >= $1`
	if cursor != nil {
		query += ` AND (start_at, activity_id) > ($3, $4)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY start_at ASC, activity_id ASC LIMIT $2`

	return r.list(ctx, query, args, limit)
}

// ListByOwner returns the owner's activities, latest start first.
func (r *ActivityRepository) ListByOwner(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{ownerID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id=$1`
	if cursor != nil {
		query += ` AND (start_at, activity_id) < ($3, $4)`
		args = append(args, cursor.At, cursor.ID)
	}
	query += ` ORDER BY start_at DESC, activity_id DESC LIMIT $2`

	return r.list(ctx, query, args, limit)
}

// Delete removes the activity. Entries and messages go with it through ON DELETE CASCADE.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var ownerID string
		err := tx.QueryRow(ctx, `DELETE FROM activities WHERE activity_id=$1 RETURNING owner_id`, id).Scan(&ownerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}

		now := time.Now().UTC()
		batch := &pgx.Batch{}
		if err := queueOutbox(batch, outboxRecord{
			eventType:   events.TypeActivityDeleted,
			aggregateID: id,
			occurredAt:  now,
			payload:     events.ActivityDeleted{ActivityID: id, OwnerID: ownerID, OccurredAt: now},
		}); err != nil {
			return err
		}
		return execBatch(ctx, tx, batch)
	})
}

// SetImage stores a new image reference on the activity.
func (r *ActivityRepository) SetImage(ctx context.Context, id, imageRef string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE activities SET image_ref=$2, updated_at=$3 WHERE activity_id=$1`, id, imageRef, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByImageRef counts activities still pointing at the image.
func (r *ActivityRepository) CountByImageRef(ctx context.Context, imageRef string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activities WHERE image_ref=$1`, imageRef).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ActivityRepository) list(ctx context.Context, query string, args []any, limit int) ([]domain.Activity, *domain.Cursor, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.StartAt, ID: last.ID}
	}
	return results, next, nil
}

func queueActivityInsert(batch *pgx.Batch, a domain.Activity) error {
	batch.Queue(insertActivitySQL,
		a.ID,
		a.OwnerID,
		a.Title,
		a.Sport,
		a.Description,
		a.StartAt,
		a.AddressText,
		a.City,
		a.State,
		a.Capacity,
		a.WaitlistCapacity,
		a.PriceCents,
		a.ImageRef,
		a.Published,
		a.Public,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err := queueOutbox(batch, outboxRecord{
		eventType:   events.TypeActivityPublished,
		aggregateID: a.ID,
		occurredAt:  a.CreatedAt,
		payload:     activityPayload(a, a.CreatedAt),
	}); err != nil {
		return fmt.Errorf("queue publish event for %s: %w", a.ID, err)
	}
	return nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Title,
		&a.Sport,
		&a.Description,
		&a.StartAt,
		&a.AddressText,
		&a.City,
		&a.State,
		&a.Capacity,
		&a.WaitlistCapacity,
		&a.PriceCents,
		&a.ImageRef,
		&a.Published,
		&a.Public,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Activity{}, err
	}
	a.StartAt = a.StartAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func activityPayload(a domain.Activity, at time.Time) events.ActivityPublished {
	return events.ActivityPublished{
		ActivityID:       a.ID,
		OwnerID:          a.OwnerID,
		Title:            a.Title,
		Sport:            a.Sport,
		StartAt:          a.StartAt,
		City:             a.City,
		State:            a.State,
		Capacity:         a.Capacity,
		WaitlistCapacity: a.WaitlistCapacity,
		Published:        a.Published,
		Public:           a.Public,
		OccurredAt:       at,
	}
}
