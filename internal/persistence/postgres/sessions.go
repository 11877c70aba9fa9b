package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionStore keeps anonymous session keys in the sessions table.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create records a session key valid for ttl.
func (s *SessionStore) Create(ctx context.Context, key string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_key, created_at, expires_at) VALUES ($1,$2,$3)`,
		key, now, now.Add(ttl),
	)
	return err
}

// Exists reports whether key names an unexpired session.
func (s *SessionStore) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE session_key=$1 AND expires_at > NOW())`,
		key,
	).Scan(&exists)
	return exists, err
}

// PurgeExpired deletes expired sessions and returns how many were removed. Activities
// owned by a purged session stay in place but are no longer reachable.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
