package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaelmorch/platform-sports/internal/domain"
)

// ProfileDirectory reads identity snapshots recorded from authenticated requests.
type ProfileDirectory struct {
	pool *pgxpool.Pool
}

// NewProfileDirectory constructs a ProfileDirectory.
func NewProfileDirectory(pool *pgxpool.Pool) *ProfileDirectory {
	return &ProfileDirectory{pool: pool}
}

// Lookup resolves every known id in a single query. Unknown ids are absent from the result.
func (d *ProfileDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]domain.Profile, error) {
	profiles := make(map[string]domain.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	rows, err := d.pool.Query(ctx, `SELECT user_id, display_name, email FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.Email); err != nil {
			return nil, err
		}
		profiles[p.UserID] = p
	}
	return profiles, rows.Err()
}

// Upsert records the latest name and email seen for a user.
func (d *ProfileDirectory) Upsert(ctx context.Context, profile domain.Profile) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, display_name, email, updated_at) VALUES ($1,$2,$3,NOW())
         ON CONFLICT (user_id) DO UPDATE SET display_name=EXCLUDED.display_name, email=EXCLUDED.email, updated_at=NOW()`,
		profile.UserID, profile.DisplayName, profile.Email,
	)
	return err
}
