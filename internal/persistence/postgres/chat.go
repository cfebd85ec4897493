package postgres

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/events"
)

// ChatRepository is the append-only chat log.
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository constructs a ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// Append stores the message and returns it with its sequence number.
func (r *ChatRepository) Append(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO chat_messages (message_id, activity_id, user_id, body, posted_at)
             VALUES ($1,$2,$3,$4,$5) RETURNING seq`,
			msg.ID, msg.ActivityID, msg.UserID, msg.Body, msg.PostedAt,
		).Scan(&msg.Seq)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		if err := queueOutbox(batch, outboxRecord{
			eventType:    events.TypeChatMessagePosted,
			aggregateID:  msg.ID,
			partitionKey: msg.ActivityID,
			occurredAt:   msg.PostedAt,
			payload: events.ChatMessagePosted{
				MessageID:  msg.ID,
				ActivityID: msg.ActivityID,
				UserID:     msg.UserID,
				PostedAt:   msg.PostedAt,
			},
		}); err != nil {
			return err
		}
		return execBatch(ctx, tx, batch)
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// List returns up to limit messages after the cursor, ordered by (posted_at, seq).
func (r *ChatRepository) List(ctx context.Context, activityID string, after *domain.Cursor, limit int) ([]domain.ChatMessage, *domain.Cursor, error) {
	args := []any{activityID, limit}
	query := `SELECT seq, message_id, activity_id, user_id, body, posted_at FROM chat_messages WHERE activity_id=$1`
	if after != nil {
		seq, err := strconv.ParseInt(after.ID, 10, 64)
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: "cursor", Reason: "malformed chat cursor"}
		}
		query += ` AND (posted_at, seq) > ($3, $4)`
		args = append(args, after.At, seq)
	}
	query += ` ORDER BY posted_at ASC, seq ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	messages := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ActivityID, &msg.UserID, &msg.Body, &msg.PostedAt); err != nil {
			return nil, nil, err
		}
		msg.PostedAt = msg.PostedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(messages) == limit {
		last := messages[len(messages)-1]
		next = &domain.Cursor{At: last.PostedAt, ID: strconv.FormatInt(last.Seq, 10)}
	}
	return messages, next, nil
}
