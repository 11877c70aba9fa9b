package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// SessionStore keeps anonymous session keys in the sessions table.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Create records a session key valid for ttl.
func (s *SessionStore) Create(ctx context.Context, key string, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, created_at, expires_at) VALUES (?,?,?)`,
		key, formatTime(now), formatTime(now.Add(ttl)),
	)
	return err
}

// Exists reports whether key names an unexpired session.
func (s *SessionStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_key=? AND expires_at > ?`,
		key, formatTime(s.now()),
	).Scan(&n)
	return n > 0, err
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(s.now()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
