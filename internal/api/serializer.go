package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cdriehuys/timetracker/internal/domain"
)

const maxBodyBytes = 1 << 20

// decodeMode selects which fields a payload must carry.
type decodeMode int

const (
	modeCreate decodeMode = iota
	modeReplace
	modePartial
)

// ActivityView is the wire representation of an activity.
type ActivityView struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:        a.ID,
		Title:     a.Title,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
	}
}

func toActivityViews(activities []domain.Activity) []ActivityView {
	out := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityView(a))
	}
	return out
}

// activityPayload holds the client-writable fields that were present in a request.
type activityPayload struct {
	Title        *string
	StartTime    *time.Time
	EndTime      *time.Time
	ClearEndTime bool
}

func (p activityPayload) createInput() domain.CreateActivityInput {
	in := domain.CreateActivityInput{StartTime: p.StartTime, EndTime: p.EndTime}
	if p.Title != nil {
		in.Title = *p.Title
	}
	return in
}

func (p activityPayload) patch() domain.ActivityPatch {
	return domain.ActivityPatch{
		Title:        p.Title,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		ClearEndTime: p.ClearEndTime,
	}
}

// decodeActivity reads the request body into a payload. Keys other than title,
// start_time and end_time, including id and any owner fields, are ignored.
func decodeActivity(r *http.Request, mode decodeMode) (activityPayload, *domain.ValidationError) {
	var payload activityPayload
	verr := domain.NewValidationError()

	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		verr.Add("non_field_errors", "Unable to read request body.")
		return payload, verr
	}
	if len(bytes.TrimSpace(body)) == 0 && mode == modePartial {
		body = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		verr.Add("non_field_errors", "Expected a JSON object.")
		return payload, verr
	}

	if raw, ok := fields["title"]; ok {
		var title *string
		switch {
		case json.Unmarshal(raw, &title) != nil:
			verr.Add("title", "Not a valid string.")
		case title == nil:
			verr.Add("title", "This field may not be null.")
		default:
			if msg := domain.CheckTitle(*title); msg != "" {
				verr.Add("title", msg)
			}
			payload.Title = title
		}
	} else if mode != modePartial {
		verr.Add("title", "This field is required.")
	}

	if raw, ok := fields["start_time"]; ok {
		t, isNull, msg := decodeTime(raw)
		switch {
		case msg != "":
			verr.Add("start_time", msg)
		case isNull:
			verr.Add("start_time", "This field may not be null.")
		default:
			payload.StartTime = t
		}
	}

	if raw, ok := fields["end_time"]; ok {
		t, isNull, msg := decodeTime(raw)
		switch {
		case msg != "":
			verr.Add("end_time", msg)
		case isNull:
			payload.ClearEndTime = true
		default:
			payload.EndTime = t
		}
	}

	if !verr.Empty() {
		return activityPayload{}, verr
	}
	return payload, nil
}

const timeFormatMessage = "Datetime has wrong format. Use RFC 3339, e.g. 2025-10-27T20:00:00Z."

func decodeTime(raw json.RawMessage) (*time.Time, bool, string) {
	if strings.TrimSpace(string(raw)) == "null" {
		return nil, true, ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, timeFormatMessage
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return nil, false, timeFormatMessage
	}
	if msg := domain.CheckTime(t); msg != "" {
		return nil, false, msg
	}
	t = t.UTC()
	return &t, false, ""
}
