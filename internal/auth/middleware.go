package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cdriehuys/timetracker/internal/api/respond"
)

// Skipper allows callers to bypass identification for specific requests.
type Skipper func(r *http.Request) bool

// SessionResolver returns the caller's live session key, or "" when there is none.
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) (string, error)
}

// Middleware attaches a Caller to every request it lets through.
type Middleware struct {
	Config         Config
	Sessions       SessionResolver
	AllowAnonymous bool
	Skipper        Skipper
	logger         zerolog.Logger
}

// NewMiddleware constructs a Middleware. Health and metrics endpoints are skipped.
func NewMiddleware(cfg Config, sessions SessionResolver, allowAnonymous bool, logger zerolog.Logger) Middleware {
	return Middleware{
		Config:         cfg,
		Sessions:       sessions,
		AllowAnonymous: allowAnonymous,
		Skipper: func(r *http.Request) bool {
			return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
		},
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Wrap wraps an http.Handler with caller identification.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := m.identify(r)
		switch {
		case errors.Is(err, ErrInvalidToken):
			m.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected bearer token")
			respond.WriteError(w, http.StatusUnauthorized, respond.TypeUnauthorized, "invalid or expired bearer token")
			return
		case err != nil:
			m.logger.Error().Err(err).Msg("session lookup failed")
			respond.WriteServerError(w)
			return
		}

		if !caller.Authenticated() && !m.AllowAnonymous {
			respond.WriteError(w, http.StatusForbidden, respond.TypeForbidden, "authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m Middleware) identify(r *http.Request) (Caller, error) {
	header := r.Header.Get("Authorization")
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return Caller{}, ErrInvalidToken
		}
		claims, err := Parse(header[len("Bearer "):], m.Config)
		if err != nil {
			if errors.Is(err, ErrMissingToken) {
				return Caller{}, ErrInvalidToken
			}
			return Caller{}, err
		}
		return Caller{UserID: claims.Subject}, nil
	}

	if m.Sessions == nil {
		return Caller{}, nil
	}
	key, err := m.Sessions.Resolve(r.Context(), r)
	if err != nil {
		return Caller{}, err
	}
	return Caller{SessionKey: key}, nil
}
