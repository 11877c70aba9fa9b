// Package domain defines the business logic for the timetracker service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cdriehuys/timetracker/internal/observability"
)

// ActivityRepository captures persistence operations. Every lookup is scoped to an owner;
// implementations return (nil, nil) from GetForOwner and ErrActivityNotFound from Update
// and Delete when no row matches both the id and the owner.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity) error
	FindByOwner(ctx context.Context, owner Owner, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	GetForOwner(ctx context.Context, owner Owner, activityID string) (*Activity, error)
	Update(ctx context.Context, owner Owner, activity Activity) error
	Delete(ctx context.Context, owner Owner, activityID string) error
}

// Cursor models the pagination token: the last row returned by the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CreateActivityInput captures the client-supplied fields of a new activity.
type CreateActivityInput struct {
	Title     string
	StartTime *time.Time
	EndTime   *time.Time
}

// ActivityPatch describes a full or partial update. Nil fields are left untouched.
type ActivityPatch struct {
	Title        *string
	StartTime    *time.Time
	EndTime      *time.Time
	ClearEndTime bool
}

// Apply copies the patch onto a.
func (p ActivityPatch) Apply(a *Activity) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.StartTime != nil {
		a.StartTime = NormalizeTime(*p.StartTime)
	}
	switch {
	case p.ClearEndTime:
		a.EndTime = nil
	case p.EndTime != nil:
		a.EndTime = normalizeTimePtr(p.EndTime)
	}
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source used for defaults and bookkeeping timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo ActivityRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  logger.With().Str("component", "activity_service").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateActivity stamps the owner onto a new activity and persists it.
func (s *Service) CreateActivity(ctx context.Context, owner Owner, input CreateActivityInput) (*Activity, error) {
	now := NormalizeTime(s.now())
	start := now
	if input.StartTime != nil {
		start = NormalizeTime(*input.StartTime)
	}

	activity := Activity{
		ID:        uuid.NewString(),
		Owner:     owner,
		Title:     input.Title,
		StartTime: start,
		EndTime:   normalizeTimePtr(input.EndTime),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.validate(activity, "create"); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}

	observability.RecordActivityWrite("create")
	s.log.Debug().Str("activity_id", activity.ID).Str("owner_kind", owner.Kind()).Msg("activity created")
	return &activity, nil
}

// ListActivities returns the activities visible to owner. An empty owner sees nothing.
func (s *Service) ListActivities(ctx context.Context, owner Owner, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	if owner.IsZero() {
		return []Activity{}, nil, nil
	}
	if err := owner.Validate(); err != nil {
		return nil, nil, err
	}
	return s.repo.FindByOwner(ctx, owner, cursor, limit)
}

// GetActivity fetches an activity within owner's scope.
func (s *Service) GetActivity(ctx context.Context, owner Owner, activityID string) (*Activity, error) {
	if owner.IsZero() || !IsCanonicalID(activityID) {
		return nil, ErrActivityNotFound
	}
	activity, err := s.repo.GetForOwner(ctx, owner, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// UpdateActivity applies patch to an activity within owner's scope.
func (s *Service) UpdateActivity(ctx context.Context, owner Owner, activityID string, patch ActivityPatch) (*Activity, error) {
	activity, err := s.GetActivity(ctx, owner, activityID)
	if err != nil {
		return nil, err
	}

	patch.Apply(activity)
	activity.UpdatedAt = NormalizeTime(s.now())

	if err := s.validate(*activity, "update"); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, owner, *activity); err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update activity: %w", err)
	}

	observability.RecordActivityWrite("update")
	s.log.Debug().Str("activity_id", activity.ID).Msg("activity updated")
	return activity, nil
}

// DeleteActivity permanently removes an activity within owner's scope.
func (s *Service) DeleteActivity(ctx context.Context, owner Owner, activityID string) error {
	if owner.IsZero() || !IsCanonicalID(activityID) {
		return ErrActivityNotFound
	}
	if err := s.repo.Delete(ctx, owner, activityID); err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			return err
		}
		return fmt.Errorf("delete activity: %w", err)
	}

	observability.RecordActivityWrite("delete")
	s.log.Debug().Str("activity_id", activityID).Msg("activity deleted")
	return nil
}

func (s *Service) validate(activity Activity, op string) error {
	err := activity.Validate()
	if err == nil {
		return nil
	}

	reason := "invalid_fields"
	if errors.Is(err, ErrOwnershipConflict) {
		reason = "ownership_conflict"
	}
	observability.RecordValidationRejection(reason)
	s.log.Error().
		Err(err).
		Str("op", op).
		Str("reason", reason).
		Str("title", activity.Title).
		Msg("activity write rejected")
	return err
}

// IsCanonicalID reports whether id is a UUID in its lowercase hyphenated form. Other
// spellings uuid.Parse accepts (URN, braced, bare hex) are rejected so every store
// sees the same key.
func IsCanonicalID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}
