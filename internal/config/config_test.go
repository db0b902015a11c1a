package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/filestore"
	"github.com/koustreak/sqlforge/internal/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
database:
  driver: libpq
  dsn: postgres://app:secret@db:5432/postgres
  procedure_schema: meta
  max_conns: 8
  connect_timeout: 3s
log:
  level: debug
  format: console
generator:
  include_data: false
  drop_and_recreate: true
store:
  provider: s3
  region: eu-west-1
  bucket: migrations
server:
  addr: "127.0.0.1:9090"
  write_timeout: 2m
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	db := cfg.DatabaseConfig()
	assert.Equal(t, database.DriverLibPQ, db.Driver)
	assert.Equal(t, "meta", db.ProcedureSchema)
	assert.Equal(t, int32(8), db.MaxConns)
	assert.Equal(t, 3*time.Second, db.ConnectTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Minute, db.MaxConnLifetime)

	assert.Equal(t, generator.Options{IncludeData: false, DropAndRecreate: true}, cfg.Options())

	require.NotNil(t, cfg.Store)
	fs := cfg.Store.Filestore()
	assert.Equal(t, filestore.ProviderS3, fs.Provider)
	assert.Equal(t, "exports", fs.Prefix)
	assert.Equal(t, 24*time.Hour, fs.PresignTTL)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	lc := cfg.Logger(os.Stdout)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "console", lc.Format)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Nil(t, cfg.Store)
	assert.Equal(t, generator.DefaultOptions(), cfg.Options())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "database:\n  dsnn: x\n"},
		{"bad driver", "database:\n  driver: mysql\n"},
		{"bad duration", "server:\n  read_timeout: soon\n"},
		{"pool bounds", "database:\n  max_conns: 2\n  min_conns: 5\n"},
		{"store without bucket", "store:\n  provider: minio\n  endpoint: localhost:9000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	t.Setenv(EnvDSN, "postgres://override@db/postgres")
	t.Setenv(EnvDriver, "pgx")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://override@db/postgres", cfg.Database.DSN)
	assert.Equal(t, database.DriverPgx, cfg.DatabaseConfig().Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestStoreConfig_ApplyDefaults(t *testing.T) {
	sc := &StoreConfig{Provider: "minio", Endpoint: "localhost:9000", Bucket: "scripts"}
	sc.ApplyDefaults()
	assert.Equal(t, "exports", sc.Prefix)
	assert.Equal(t, 24*time.Hour, sc.PresignTTL)

	sc = &StoreConfig{Prefix: "nightly", PresignTTL: time.Hour}
	sc.ApplyDefaults()
	assert.Equal(t, "nightly", sc.Prefix)
	assert.Equal(t, time.Hour, sc.PresignTTL)
}

func TestApplyEnv_IgnoresEmpty(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "postgres://file"
	cfg.applyEnv(func(key string) (string, bool) { return "", true })
	assert.Equal(t, "postgres://file", cfg.Database.DSN)
}

func TestWithDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "postgres://default"

	db := cfg.WithDSN("postgres://request")
	assert.Equal(t, "postgres://request", db.DSN)
	assert.Equal(t, "postgres://default", cfg.Database.DSN)
}
