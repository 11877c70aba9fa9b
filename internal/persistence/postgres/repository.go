package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cdriehuys/timetracker/internal/domain"
	"github.com/cdriehuys/timetracker/internal/events"
	"github.com/cdriehuys/timetracker/internal/observability"
	"github.com/cdriehuys/timetracker/internal/persistence"
)

const activityColumns = `activity_id::text, user_id, session_key, title, start_time, end_time, created_at, updated_at`

// Option configures optional behaviour for the Repository.
type Option func(*Repository)

// WithOutbox records a change event in the outbox table, in the same transaction, for
// every write. Events are routed to topic by the relay.
func WithOutbox(topic string) Option {
	return func(r *Repository) {
		r.outboxTopic = topic
	}
}

// Repository provides Postgres-backed persistence for activities.
type Repository struct {
	pool        *pgxpool.Pool
	outboxTopic string
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts the activity and its outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertActivity = `INSERT INTO activities (activity_id, user_id, session_key, title, start_time, end_time, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		nullIfEmpty(activity.Owner.UserID),
		nullIfEmpty(activity.Owner.SessionKey),
		activity.Title,
		activity.StartTime,
		activity.EndTime,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, activity.ID, events.ActivityCreated, changedEvent(activity)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// FindByOwner returns the owner's activities ordered by creation time, then id.
func (r *Repository) FindByOwner(ctx context.Context, owner domain.Owner, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	column, value := ownerColumn(owner)
	args := []interface{}{value}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE ` + column + `=$1`

	if cursor != nil {
		query += ` AND (created_at, activity_id) > ($2, $3::uuid)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at, activity_id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return results, persistence.NextCursor(results, limit), nil
}

// GetForOwner retrieves an activity by id when it belongs to owner.
func (r *Repository) GetForOwner(ctx context.Context, owner domain.Owner, activityID string) (*domain.Activity, error) {
	column, value := ownerColumn(owner)
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1 AND ` + column + `=$2`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, activityID, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// Update overwrites the mutable fields of an activity owned by owner.
func (r *Repository) Update(ctx context.Context, owner domain.Owner, activity domain.Activity) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	column, value := ownerColumn(owner)
	stmt := `UPDATE activities SET title=$1, start_time=$2, end_time=$3, updated_at=$4
        WHERE activity_id=$5 AND ` + column + `=$6`

	tag, err := tx.Exec(ctx, stmt, activity.Title, activity.StartTime, activity.EndTime, activity.UpdatedAt, activity.ID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrActivityNotFound
		return err
	}

	if err = r.insertOutbox(ctx, tx, activity.ID, events.ActivityUpdated, changedEvent(activity)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Delete permanently removes an activity owned by owner.
func (r *Repository) Delete(ctx context.Context, owner domain.Owner, activityID string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	column, value := ownerColumn(owner)
	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1 AND `+column+`=$2`, activityID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrActivityNotFound
		return err
	}

	removed := events.ActivityRemoved{
		ActivityID: activityID,
		OwnerKind:  owner.Kind(),
		UserID:     owner.UserID,
		OccurredAt: domain.NormalizeTime(time.Now()),
	}
	if err = r.insertOutbox(ctx, tx, activityID, events.ActivityDeleted, removed); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, activityID, eventType string, payload interface{}) error {
	if r.outboxTopic == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activityID,
		eventType,
		r.outboxTopic,
		activityID,
		body,
		fmt.Sprintf("%s:%s", activityID, eventType),
	)
	return err
}

func changedEvent(activity domain.Activity) events.ActivityChanged {
	return events.ActivityChanged{
		ActivityID: activity.ID,
		OwnerKind:  activity.Owner.Kind(),
		UserID:     activity.Owner.UserID,
		Title:      activity.Title,
		StartTime:  activity.StartTime,
		EndTime:    activity.EndTime,
		OccurredAt: activity.UpdatedAt,
	}
}

// ownerColumn maps the owner's populated reference to the column that scopes queries.
func ownerColumn(owner domain.Owner) (string, string) {
	if owner.UserID != "" {
		return "user_id", owner.UserID
	}
	return "session_key", owner.SessionKey
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		activity   domain.Activity
		userID     *string
		sessionKey *string
	)
	if err := row.Scan(&activity.ID, &userID, &sessionKey, &activity.Title, &activity.StartTime, &activity.EndTime, &activity.CreatedAt, &activity.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	if userID != nil {
		activity.Owner.UserID = *userID
	}
	if sessionKey != nil {
		activity.Owner.SessionKey = *sessionKey
	}
	activity.StartTime = activity.StartTime.UTC()
	activity.CreatedAt = activity.CreatedAt.UTC()
	activity.UpdatedAt = activity.UpdatedAt.UTC()
	if activity.EndTime != nil {
		end := activity.EndTime.UTC()
		activity.EndTime = &end
	}
	return activity, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
