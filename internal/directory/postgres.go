package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS relay_users (
	user_id    TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	avatar_url TEXT
);

CREATE TABLE IF NOT EXISTS relay_room_members (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);
`

type Postgres struct{ DB *sql.DB }

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) Profiles(ctx context.Context, userIDs []string) (map[string]domain.Identity, error) {
	out := make(map[string]domain.Identity, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := p.DB.QueryContext(ctx,
		`SELECT user_id, username, avatar_url FROM relay_users WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ident domain.Identity
		var avatar sql.NullString
		if err := rows.Scan(&ident.UserID, &ident.Username, &avatar); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		ident.Avatar = avatar.String
		out[ident.UserID] = ident
	}
	return out, rows.Err()
}

func (p *Postgres) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var listed, member bool
	err := p.DB.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM relay_room_members WHERE room_id = $1),
			EXISTS (SELECT 1 FROM relay_room_members WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID).Scan(&listed, &member)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return !listed || member, nil
}

// Upsert creates or updates a profile.
func (p *Postgres) Upsert(ctx context.Context, ident domain.Identity) error {
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO relay_users (user_id, username, avatar_url) VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url`,
		ident.UserID, ident.Username, ident.Avatar)
	return err
}

func (p *Postgres) AddMember(ctx context.Context, roomID, userID string) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO relay_room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roomID, userID)
	return err
}
