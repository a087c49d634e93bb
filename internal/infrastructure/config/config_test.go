package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"BACKOFFICE_APP_NAME",
	"BACKOFFICE_APP_ENV",
	"BACKOFFICE_DATABASE_DRIVER",
	"BACKOFFICE_DATABASE_HOST",
	"BACKOFFICE_DATABASE_PORT",
	"BACKOFFICE_DATABASE_PASSWORD",
	"BACKOFFICE_DATABASE_SSLMODE",
	"BACKOFFICE_DATABASE_MAX_OPEN_CONNS",
	"BACKOFFICE_DATABASE_MAX_IDLE_CONNS",
	"BACKOFFICE_NUMBERING_STORE",
	"BACKOFFICE_NUMBERING_HOLD_TIMEOUT",
	"BACKOFFICE_NUMBERING_RETRY_BACKOFF",
	"BACKOFFICE_NUMBERING_TIME_ZONE",
	"BACKOFFICE_TELEMETRY_SAMPLING_RATIO",
}

// clearEnv blanks every managed variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "backoffice-numbering", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "backoffice", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, StoreDatabase, cfg.Numbering.Store)
		assert.Equal(t, 5*time.Second, cfg.Numbering.HoldTimeout)
		assert.Equal(t, 10*time.Millisecond, cfg.Numbering.RetryBackoff)
		assert.Equal(t, "seq:", cfg.Numbering.RedisKeyPrefix)
		assert.Equal(t, numbering.DefaultSchemes(), cfg.Numbering.Schemes)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	})

	t.Run("loads values from environment variables with BACKOFFICE prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BACKOFFICE_APP_NAME", "seq-test")
		t.Setenv("BACKOFFICE_DATABASE_DRIVER", "sqlite")
		t.Setenv("BACKOFFICE_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("BACKOFFICE_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("BACKOFFICE_NUMBERING_STORE", "redis")
		t.Setenv("BACKOFFICE_NUMBERING_HOLD_TIMEOUT", "750ms")
		t.Setenv("BACKOFFICE_NUMBERING_TIME_ZONE", "UTC")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "seq-test", cfg.App.Name)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, StoreRedis, cfg.Numbering.Store)
		assert.Equal(t, 750*time.Millisecond, cfg.Numbering.HoldTimeout)
		loc, err := cfg.Numbering.Location()
		require.NoError(t, err)
		assert.Equal(t, time.UTC, loc)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		cases := map[string]map[string]string{
			"unknown driver":            {"BACKOFFICE_DATABASE_DRIVER": "mysql"},
			"unknown store":             {"BACKOFFICE_NUMBERING_STORE": "etcd"},
			"idle exceeds open":         {"BACKOFFICE_DATABASE_MAX_OPEN_CONNS": "2", "BACKOFFICE_DATABASE_MAX_IDLE_CONNS": "3"},
			"backoff exceeds hold":      {"BACKOFFICE_NUMBERING_HOLD_TIMEOUT": "10ms", "BACKOFFICE_NUMBERING_RETRY_BACKOFF": "20ms"},
			"bad time zone":             {"BACKOFFICE_NUMBERING_TIME_ZONE": "Mars/Olympus"},
			"bad sampling ratio":        {"BACKOFFICE_TELEMETRY_SAMPLING_RATIO": "1.5"},
			"production without tls":    {"BACKOFFICE_APP_ENV": "production", "BACKOFFICE_DATABASE_PASSWORD": "secret"},
			"production memory store":   {"BACKOFFICE_APP_ENV": "production", "BACKOFFICE_DATABASE_DRIVER": "sqlite", "BACKOFFICE_NUMBERING_STORE": "memory"},
			"production with no secret": {"BACKOFFICE_APP_ENV": "production", "BACKOFFICE_DATABASE_SSLMODE": "require"},
		}
		for name, env := range cases {
			t.Run(name, func(t *testing.T) {
				clearEnv(t)
				for k, v := range env {
					t.Setenv(k, v)
				}
				_, err := Load()
				assert.Error(t, err)
			})
		}
	})
}

func TestLoadFrom_Schemes(t *testing.T) {
	clearEnv(t)

	t.Run("reads scheme table from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[[numbering.schemes]]
record_type = "customer"
prefix = "CUST"
width = 6

[[numbering.schemes]]
record_type = "payment_request"
width = 5

  [[numbering.schemes.request_types]]
  request_type = "Check"
  prefix = "CR"

  [[numbering.schemes.request_types]]
  request_type = "Manager's Check"
  prefix = "MCR"
`), 0o600))

		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		require.Len(t, cfg.Numbering.Schemes, 2)
		assert.Equal(t, numbering.RecordTypeCustomer, cfg.Numbering.Schemes[0].RecordType)
		assert.Equal(t, "CUST", cfg.Numbering.Schemes[0].Prefix)
		assert.Equal(t, 6, cfg.Numbering.Schemes[0].Width)
		assert.Equal(t, "Manager's Check", cfg.Numbering.Schemes[1].RequestTypes[1].RequestType)
	})

	t.Run("rejects colliding prefixes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[[numbering.schemes]]
record_type = "customer"
prefix = "C"
width = 5

[[numbering.schemes]]
record_type = "booking"
prefix = "C"
width = 5
`), 0o600))

		_, err := LoadFrom(path)
		assert.ErrorIs(t, err, numbering.ErrInvalidScheme)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss word", DBName: "backoffice", SSLMode: "require"}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/backoffice?sslmode=require", d.DSN())

	s := DatabaseConfig{SQLitePath: "/tmp/seq.db", BusyTimeout: 2 * time.Second}
	assert.Equal(t, "file:/tmp/seq.db?_busy_timeout=2000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", s.SQLiteDSN())
}
