package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cdriehuys/timetracker/internal/config"
	"github.com/cdriehuys/timetracker/internal/domain"
)

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver:  "sqlite",
		SessionStore: "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "nested", "tt.db"),
	}

	stores, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(stores.Close)
	require.Nil(t, stores.Pool)
	require.NotNil(t, stores.Purger)

	require.NoError(t, stores.Migrate(ctx))
	require.NoError(t, stores.Migrate(ctx), "migrations are idempotent")

	now := domain.NormalizeTime(time.Now())
	owner := domain.Owner{UserID: "alice"}
	require.NoError(t, stores.Activities.Create(ctx, domain.Activity{
		ID: "7f1c2a64-3b7e-4f5e-9a53-0c7f5f0f6a11", Owner: owner, Title: "file backed",
		StartTime: now, CreatedAt: now, UpdatedAt: now,
	}))

	list, _, err := stores.Activities.FindByOwner(ctx, owner, nil, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, stores.Sessions.Create(ctx, "k", time.Hour))
	ok, err := stores.Sessions.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "mysql"}, zerolog.Nop())
	require.Error(t, err)
}
