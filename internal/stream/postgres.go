package stream

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/domain"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS relay_room_sequences (
	room_id  TEXT PRIMARY KEY,
	last_seq BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS relay_messages (
	room_id       TEXT   NOT NULL,
	seq           BIGINT NOT NULL,
	user_id       TEXT   NOT NULL,
	username      TEXT   NOT NULL,
	avatar        TEXT   NOT NULL DEFAULT '',
	body          TEXT   NOT NULL,
	kind          TEXT   NOT NULL,
	created_at_ms BIGINT NOT NULL,
	PRIMARY KEY (room_id, seq)
);
`

// Postgres stores messages in relay_messages. Ids are per-room sequence
// numbers allocated from relay_room_sequences in the append transaction, so
// concurrent appends to one room serialize on the sequence row.
type Postgres struct {
	DB *sql.DB
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	return db, db.PingContext(ctx)
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (p *Postgres) getter(tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return p.DB
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) Append(ctx context.Context, roomID string, msg domain.Message) (domain.Message, error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: begin: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	seq, err := p.nextSequence(ctx, tx, roomID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: next sequence: %v", domain.ErrStoreUnavailable, err)
	}

	msg.ID = strconv.FormatInt(seq, 10)
	msg.RoomID = roomID
	if err := p.insertMessage(ctx, tx, seq, msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: insert: %v", domain.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Message{}, fmt.Errorf("%w: commit: %v", domain.ErrStoreUnavailable, err)
	}
	return msg, nil
}

func (p *Postgres) nextSequence(ctx context.Context, tx *sql.Tx, roomID string) (int64, error) {
	var next int64

	q := p.getter(tx)
	err := q.QueryRowContext(ctx, `
		INSERT INTO relay_room_sequences (room_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (room_id)
		DO UPDATE SET last_seq = relay_room_sequences.last_seq + 1
		RETURNING last_seq
	`, roomID).Scan(&next)

	return next, err
}

func (p *Postgres) insertMessage(ctx context.Context, tx *sql.Tx, seq int64, msg domain.Message) error {
	q := p.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO relay_messages (
			room_id, seq, user_id, username, avatar, body, kind, created_at_ms
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		msg.RoomID,
		seq,
		msg.UserID,
		msg.Username,
		msg.Avatar,
		msg.Text,
		string(msg.Kind),
		msg.Timestamp,
	)
	return err
}

const selectColumns = `seq, user_id, username, avatar, body, kind, created_at_ms`

func (p *Postgres) ReadRange(ctx context.Context, roomID string, r Range) ([]domain.Message, error) {
	after, err := parseSeq(r.After)
	if err != nil {
		return nil, err
	}
	before, err := parseSeq(r.Before)
	if err != nil {
		return nil, err
	}
	limit := r.limit()

	var (
		query    string
		args     []any
		reversed bool
	)
	switch {
	case r.After == "" && r.Before == "":
		query = `SELECT ` + selectColumns + ` FROM relay_messages
			WHERE room_id = $1 ORDER BY seq DESC LIMIT $2`
		args = []any{roomID, limit}
		reversed = true
	case r.After == "":
		query = `SELECT ` + selectColumns + ` FROM relay_messages
			WHERE room_id = $1 AND seq < $2 ORDER BY seq DESC LIMIT $3`
		args = []any{roomID, before, limit}
		reversed = true
	case r.Before == "":
		query = `SELECT ` + selectColumns + ` FROM relay_messages
			WHERE room_id = $1 AND seq > $2 ORDER BY seq ASC LIMIT $3`
		args = []any{roomID, after, limit}
	default:
		query = `SELECT ` + selectColumns + ` FROM relay_messages
			WHERE room_id = $1 AND seq > $2 AND seq < $3 ORDER BY seq ASC LIMIT $4`
		args = []any{roomID, after, before, limit}
	}

	rows, err := p.getter(nil).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrStoreUnavailable, roomID, err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var (
			seq  int64
			kind string
			m    domain.Message
		)
		if err := rows.Scan(&seq, &m.UserID, &m.Username, &m.Avatar, &m.Text, &kind, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", domain.ErrStoreUnavailable, err)
		}
		m.ID = strconv.FormatInt(seq, 10)
		m.RoomID = roomID
		m.Kind = domain.Kind(kind)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", domain.ErrStoreUnavailable, err)
	}

	if reversed {
		reverse(msgs)
	}
	return msgs, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
