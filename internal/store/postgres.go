package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS anticheat_audit (
    id BIGSERIAL PRIMARY KEY,
    match_id TEXT NOT NULL DEFAULT '',
    room_code TEXT NOT NULL DEFAULT '',
    player_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    violation_type TEXT NOT NULL DEFAULT '',
    count INTEGER NOT NULL DEFAULT 0,
    value DOUBLE PRECISION NOT NULL DEFAULT 0,
    "limit" DOUBLE PRECISION NOT NULL DEFAULT 0,
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_anticheat_audit_player ON anticheat_audit(player_id, created_at DESC);
`

const defaultListLimit = 100

// PostgresStore implements AuditStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Save inserts an audit record.
func (s *PostgresStore) Save(ctx context.Context, rec AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO anticheat_audit
		 (match_id, room_code, player_id, kind, violation_type, count, value, "limit", detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.MatchID, rec.RoomCode, rec.PlayerID, rec.Kind, rec.ViolationType,
		rec.Count, rec.Value, rec.Limit, rec.Detail, rec.CreatedAt)
	return err
}

// ListByPlayer returns up to limit records for a player, newest first.
// A non-positive limit uses the default of 100.
func (s *PostgresStore) ListByPlayer(ctx context.Context, playerID string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, match_id, room_code, player_id, kind, violation_type, count, value, "limit", detail, created_at
		 FROM anticheat_audit WHERE player_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(&rec.ID, &rec.MatchID, &rec.RoomCode, &rec.PlayerID, &rec.Kind,
			&rec.ViolationType, &rec.Count, &rec.Value, &rec.Limit, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
