//go:build integration

package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/cdriehuys/timetracker/internal/domain"
	"github.com/cdriehuys/timetracker/internal/events"
	"github.com/cdriehuys/timetracker/internal/persistence/postgres"
)

func TestDispatcherPublishesRepositoryEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	repo := postgres.NewRepository(pool, postgres.WithOutbox("activity_events"))
	owner := domain.Owner{SessionKey: "secret-session"}
	now := domain.NormalizeTime(time.Now())
	activity := domain.Activity{ID: uuid.NewString(), Owner: owner, Title: "relay", StartTime: now, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, activity))
	require.NoError(t, repo.Delete(ctx, owner, activity.ID))

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5, zerolog.Nop())

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	for _, msg := range producer.writes[0].messages {
		require.Equal(t, activity.ID, string(msg.Key))
		require.NotContains(t, string(msg.Value), "secret-session")
	}
	require.Equal(t, events.ActivityCreated, string(producer.writes[0].messages[0].Headers[0].Value))
	require.Equal(t, events.ActivityDeleted, string(producer.writes[0].messages[1].Headers[0].Value))

	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published rows are not claimed again")
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	aggregateID := seedOutbox(t, ctx, pool, events.ActivityCreated)

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5, zerolog.Nop())

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("activity_events"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("activity_events")), 0.0001)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE aggregate_id = $1`, aggregateID).Scan(&reason))
	require.Contains(t, reason, "kafka write failed")

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherUnknownEventMovesToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	aggregateID := seedOutbox(t, ctx, pool, "activity.unknown")

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5, zerolog.Nop())

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Empty(t, producer.writes, "unknown events skip kafka writes")

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE aggregate_id = $1`, aggregateID).Scan(&reason))
	require.Contains(t, reason, "unknown event_type=activity.unknown")
}

func TestClaimedRowsAreSkippedUntilLeaseExpires(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	aggregateID := seedOutbox(t, ctx, pool, events.ActivityCreated)

	first := NewDispatcher(pool, &stubProducer{}, 10*time.Millisecond, 5, zerolog.Nop())
	second := NewDispatcher(pool, &stubProducer{}, 10*time.Millisecond, 5, zerolog.Nop())

	claimed, err := first.fetchAndClaim(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, aggregateID, claimed[0].AggregateID)

	again, err := second.fetchAndClaim(ctx)
	require.NoError(t, err)
	require.Empty(t, again, "a fresh claim hides the row from other relays")

	_, err = pool.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() - interval '2 minutes' WHERE aggregate_id = $1`, aggregateID)
	require.NoError(t, err)

	reclaimed, err := second.fetchAndClaim(ctx)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1, "an expired claim can be picked up again")
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("timetracker"),
		postgrescontainer.WithUsername("timetracker"),
		postgrescontainer.WithPassword("timetracker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventType string) string {
	t.Helper()

	aggregateID := uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6)`,
		"activity", aggregateID, eventType, "activity_events", aggregateID, []byte(`{"activity_id":"`+aggregateID+`"}`),
	)
	require.NoError(t, err)
	return aggregateID
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
