package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cdriehuys/timetracker/internal/events"
)

func TestBuildRecordsGroupsByTopic(t *testing.T) {
	now := time.Date(2025, 10, 27, 20, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(events.ActivityChanged{ActivityID: "a1", OwnerKind: "session", Title: "t"})
	require.NoError(t, err)

	batches, err := buildRecords([]Message{
		{EventID: 1, AggregateType: "activity", AggregateID: "a1", EventType: events.ActivityCreated, Topic: "activity_events", PartitionKey: "a1", Payload: payload},
		{EventID: 2, AggregateType: "activity", AggregateID: "a1", EventType: events.ActivityDeleted, Topic: "activity_events", PartitionKey: "a1", Payload: json.RawMessage(`{"activity_id":"a1"}`)},
		{EventID: 3, AggregateType: "activity", AggregateID: "b2", EventType: events.ActivityUpdated, Topic: "audit", PartitionKey: "b2", Payload: json.RawMessage(`{}`)},
	}, now)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Len(t, batches["activity_events"], 2)
	require.Len(t, batches["audit"], 1)

	first := batches["activity_events"][0]
	require.Equal(t, []byte("a1"), first.Key)
	require.JSONEq(t, string(payload), string(first.Value))
	require.Equal(t, now, first.Time)
	require.Equal(t, "event_type", first.Headers[0].Key)
	require.Equal(t, events.ActivityCreated, string(first.Headers[0].Value))
	require.NotContains(t, string(first.Value), "session_key")
}

func TestBuildRecordsRejectsUnknownEvents(t *testing.T) {
	_, err := buildRecords([]Message{
		{EventID: 1, EventType: "activity.renamed", Topic: "activity_events", Payload: json.RawMessage(`{}`)},
	}, time.Now())
	require.ErrorContains(t, err, "unknown event_type=activity.renamed")

	_, err = buildRecords([]Message{
		{EventID: 2, EventType: events.ActivityCreated, Topic: "activity_events", Payload: json.RawMessage(`{`)},
	}, time.Now())
	require.ErrorContains(t, err, "invalid payload for event_id=2")
}
