package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, "postgres", cfg.SessionStore)
	require.Equal(t, "sessionid", cfg.SessionCookieName)
	require.Equal(t, 14*24*time.Hour, cfg.SessionTTL)
	require.True(t, cfg.AllowAnonymous)
	require.False(t, cfg.OutboxEnabled)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TIMETRACKER_STORE_DRIVER", "sqlite")
	t.Setenv("TIMETRACKER_SQLITE_PATH", "/tmp/tt.db")
	t.Setenv("TIMETRACKER_ALLOW_ANONYMOUS", "false")
	t.Setenv("TIMETRACKER_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TIMETRACKER_SESSION_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, "sqlite", cfg.SessionStore)
	require.Equal(t, "/tmp/tt.db", cfg.SQLitePath)
	require.False(t, cfg.AllowAnonymous)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestResolveDefaults(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
		store   string
	}{
		{name: "redis sessions with sqlite", cfg: Config{StoreDriver: "sqlite", SessionStore: "redis"}, store: "redis"},
		{name: "unknown driver", cfg: Config{StoreDriver: "mysql"}, wantErr: true},
		{name: "unknown session store", cfg: Config{StoreDriver: "postgres", SessionStore: "memcached"}, wantErr: true},
		{name: "mismatched session store", cfg: Config{StoreDriver: "sqlite", SessionStore: "postgres"}, wantErr: true},
		{name: "outbox needs postgres", cfg: Config{StoreDriver: "sqlite", OutboxEnabled: true}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if cfg.OutboxBatchSize == 0 {
				cfg.OutboxBatchSize = 1
			}
			if cfg.SessionTTL == 0 {
				cfg.SessionTTL = time.Hour
			}
			err := cfg.ResolveDefaults()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.store, cfg.SessionStore)
		})
	}
}
