package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cdriehuys/timetracker/internal/domain"
	"github.com/cdriehuys/timetracker/internal/observability"
	"github.com/cdriehuys/timetracker/internal/persistence"
)

// timeLayout is fixed-width so lexical order in SQLite matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const activityColumns = `activity_id, user_id, session_key, title, start_time, end_time, created_at, updated_at`

// Repository provides SQLite-backed persistence for activities.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new activity.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (`+activityColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		activity.ID,
		nullString(activity.Owner.UserID),
		nullString(activity.Owner.SessionKey),
		activity.Title,
		formatTime(activity.StartTime),
		formatTimePtr(activity.EndTime),
		formatTime(activity.CreatedAt),
		formatTime(activity.UpdatedAt),
	)
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// FindByOwner returns the owner's activities ordered by creation time, then id.
func (r *Repository) FindByOwner(ctx context.Context, owner domain.Owner, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	column, value := ownerColumn(owner)
	args := []interface{}{value}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE ` + column + `=?`

	if cursor != nil {
		query += ` AND (created_at > ? OR (created_at = ? AND activity_id > ?))`
		ts := formatTime(cursor.CreatedAt)
		args = append(args, ts, ts, cursor.ID)
	}

	query += ` ORDER BY created_at, activity_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	row := r.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE activity_id=? AND `+column+`=?`,
		activityID, value,
	)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

// Update overwrites the mutable fields of an activity owned by owner.
func (r *Repository) Update(ctx context.Context, owner domain.Owner, activity domain.Activity) error {
	column, value := ownerColumn(owner)
	res, err := r.db.ExecContext(ctx,
		`UPDATE activities SET title=?, start_time=?, end_time=?, updated_at=? WHERE activity_id=? AND `+column+`=?`,
		activity.Title,
		formatTime(activity.StartTime),
		formatTimePtr(activity.EndTime),
		formatTime(activity.UpdatedAt),
		activity.ID,
		value,
	)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Delete permanently removes an activity owned by owner.
func (r *Repository) Delete(ctx context.Context, owner domain.Owner, activityID string) error {
	column, value := ownerColumn(owner)
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE activity_id=? AND `+column+`=?`, activityID, value)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func ownerColumn(owner domain.Owner) (string, string) {
	if owner.UserID != "" {
		return "user_id", owner.UserID
	}
	return "session_key", owner.SessionKey
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		activity   domain.Activity
		userID     sql.NullString
		sessionKey sql.NullString
		start      string
		end        sql.NullString
		created    string
		updated    string
	)
	if err := row.Scan(&activity.ID, &userID, &sessionKey, &activity.Title, &start, &end, &created, &updated); err != nil {
		return domain.Activity{}, err
	}
	activity.Owner = domain.Owner{UserID: userID.String, SessionKey: sessionKey.String}

	var err error
	if activity.StartTime, err = parseTime(start); err != nil {
		return domain.Activity{}, err
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return domain.Activity{}, err
		}
		activity.EndTime = &t
	}
	if activity.CreatedAt, err = parseTime(created); err != nil {
		return domain.Activity{}, err
	}
	if activity.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
