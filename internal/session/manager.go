// Package session issues and resolves the cookie-backed sessions that own anonymous
// visitors' activities.
package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cdriehuys/timetracker/internal/observability"
)

// Store persists session keys with an expiry.
type Store interface {
	Create(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Manager reads and writes the session cookie.
type Manager struct {
	store  Store
	cookie CookieConfig
	log    zerolog.Logger
}

// NewManager constructs a Manager.
func NewManager(store Store, cookie CookieConfig, logger zerolog.Logger) *Manager {
	if cookie.Name == "" {
		cookie.Name = "sessionid"
	}
	return &Manager{
		store:  store,
		cookie: cookie,
		log:    logger.With().Str("component", "session").Logger(),
	}
}

// Resolve returns the request's session key, or "" when the cookie is absent, unknown
// or expired.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (string, error) {
	c, err := r.Cookie(m.cookie.Name)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return "", nil
	}
	ok, err := m.store.Exists(ctx, c.Value)
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return "", nil
	}
	return c.Value, nil
}

// Issue creates a new session and attaches its cookie to the response.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter) (string, error) {
	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := m.store.Create(ctx, key, m.cookie.TTL); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    key,
		Path:     "/",
		MaxAge:   int(m.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	observability.RecordSessionIssued()
	m.log.Debug().Msg("anonymous session issued")
	return key, nil
}
