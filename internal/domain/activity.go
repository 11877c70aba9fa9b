package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength bounds the activity title, counted in characters.
const MaxTitleLength = 200

// displayLayout renders timestamps as YYYY-MM-DD HH:MM.
const displayLayout = "2006-01-02 15:04"

// Owner identifies who an activity belongs to: a registered user or an anonymous session.
type Owner struct {
	UserID     string
	SessionKey string
}

// IsZero reports whether neither owner reference is set.
func (o Owner) IsZero() bool {
	return o.UserID == "" && o.SessionKey == ""
}

// Kind returns "user", "session", or "" for an empty owner.
func (o Owner) Kind() string {
	switch {
	case o.UserID != "":
		return "user"
	case o.SessionKey != "":
		return "session"
	default:
		return ""
	}
}

// Validate enforces that at most one owner reference is populated.
func (o Owner) Validate() error {
	if o.UserID != "" && o.SessionKey != "" {
		verr := newValidationError(ErrOwnershipConflict)
		verr.Add("user", "Only one of user or session may be set.")
		verr.Add("session", "Only one of user or session may be set.")
		return verr
	}
	return nil
}

// Activity is a titled time interval owned by a user or an anonymous session.
type Activity struct {
	ID        string
	Owner     Owner
	Title     string
	StartTime time.Time
	EndTime   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the activity is still in progress.
func (a Activity) IsActive() bool {
	return a.EndTime == nil
}

// Path returns the item location of the activity.
func (a Activity) Path() string {
	return "/activities/" + a.ID + "/"
}

func (a Activity) String() string {
	end := "(in progress)"
	if a.EndTime != nil {
		end = a.EndTime.Format(displayLayout)
	}
	return fmt.Sprintf("%s: %s - %s", a.Title, a.StartTime.Format(displayLayout), end)
}

// Validate checks the invariants that must hold before an activity is written.
func (a Activity) Validate() error {
	if err := a.Owner.Validate(); err != nil {
		return err
	}
	verr := newValidationError(ErrInvalidActivity)
	if msg := CheckTitle(a.Title); msg != "" {
		verr.Add("title", msg)
	}
	if a.StartTime.IsZero() {
		verr.Add("start_time", "This field is required.")
	} else if msg := CheckTime(a.StartTime); msg != "" {
		verr.Add("start_time", msg)
	}
	if a.EndTime != nil {
		if msg := CheckTime(*a.EndTime); msg != "" {
			verr.Add("end_time", msg)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// CheckTitle returns a field message describing why title is unacceptable, or "".
func CheckTitle(title string) string {
	if strings.ContainsRune(title, 0) {
		return "Null characters are not allowed."
	}
	if strings.TrimSpace(title) == "" {
		return "This field may not be blank."
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Sprintf("Ensure this field has no more than %d characters.", MaxTitleLength)
	}
	return ""
}

// CheckTime returns a field message when t falls outside years 0001 through 9999 in UTC,
// the range every store and the JSON encoding can represent.
func CheckTime(t time.Time) string {
	if year := t.UTC().Year(); year < 1 || year > 9999 {
		return "Datetime must fall between years 0001 and 9999 in UTC."
	}
	return ""
}

// NormalizeTime converts t to UTC at microsecond precision, the resolution every store keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := NormalizeTime(*t)
	return &n
}
