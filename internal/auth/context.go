package auth

import (
	"context"

	"github.com/cdriehuys/timetracker/internal/domain"
)

// Caller identifies who is making a request. At most one field is set; both empty
// means an anonymous visitor without a session.
type Caller struct {
	UserID     string
	SessionKey string
}

// Authenticated reports whether the caller presented a valid bearer token.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Owner converts the caller into the ownership reference used by the domain.
func (c Caller) Owner() domain.Owner {
	if c.UserID != "" {
		return domain.Owner{UserID: c.UserID}
	}
	return domain.Owner{SessionKey: c.SessionKey}
}

type contextKey string

const callerKey contextKey = "timetracker-caller"

// WithCaller stores the caller on the context.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext retrieves the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}
