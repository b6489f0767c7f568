package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ebean/internal/orm/cache"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ebean.yaml"), []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Database.Platform != "postgres" {
		t.Errorf("expected default platform postgres, got %s", cfg.Database.Platform)
	}
	if cfg.Migration.Dir != filepath.Join(dir, "dbmigration") {
		t.Errorf("expected migration dir under %s, got %s", dir, cfg.Migration.Dir)
	}
	if cfg.Migration.Terminator != ";" {
		t.Errorf("expected default terminator ';', got %q", cfg.Migration.Terminator)
	}
	if cfg.LazyLoad.BatchSize != 10 {
		t.Errorf("expected default batch size 10, got %d", cfg.LazyLoad.BatchSize)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected memory cache backend, got %s", cfg.Cache.Backend)
	}
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "_with_history", cfg.Deploy.AsOfSuffix)
	assert.Equal(t, "update", cfg.DocStore.Persist)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
database:
  url: sqlite://app.db
  platform: sqlite
migration:
  dir: /var/migrations
  entities: model/entities.yaml
deploy:
  pluralize_tables: true
docstore:
  persist: queue
cache:
  backend: redis
  ttl: 30s
  redis:
    addr: cache:6379
lazyload:
  batch_size: 25
logging:
  level: debug
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite://app.db", cfg.Database.URL)
	assert.Equal(t, "/var/migrations", cfg.Migration.Dir)
	assert.Equal(t, filepath.Join(dir, "model/entities.yaml"), cfg.Migration.Entities)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 25, cfg.LazyLoad.BatchSize)
	assert.Equal(t, "cache:6379", cfg.QueueAddr())

	dc := cfg.DeployConfig()
	assert.True(t, dc.PluralizeTables)
	assert.Equal(t, deploy.DocStoreQueue, dc.DocStorePersist)

	driver, err := cfg.DriverName()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", driver)

	ddl, err := cfg.PlatformDdl()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", ddl.Name())

	assert.Equal(t, "debug", cfg.LoggerConfig().Level)
}

func TestQueueOptions(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
cache:
  redis:
    addr: cache:6379
    password: cache-secret
    db: 2
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	shared := cfg.QueueOptions()
	assert.Equal(t, "cache:6379", shared.Addr)
	assert.Equal(t, "cache-secret", shared.Password)
	assert.Equal(t, 2, shared.DB)

	writeConfig(t, dir, `
cache:
  redis:
    addr: cache:6379
    password: cache-secret
    db: 2
docstore:
  queue_addr: queue:6379
  queue_password: queue-secret
  queue_db: 5
`)
	cfg, err = Load(dir)
	require.NoError(t, err)

	own := cfg.QueueOptions()
	assert.Equal(t, "queue:6379", own.Addr)
	assert.Equal(t, "queue-secret", own.Password)
	assert.Equal(t, 5, own.DB)
	assert.Equal(t, "queue:6379", cfg.QueueAddr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "database:\n  url: postgres://file\n")
	t.Setenv("EBEAN_DATABASE_URL", "postgres://env")
	t.Setenv("EBEAN_LAZYLOAD_BATCH_SIZE", "50")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, 50, cfg.LazyLoad.BatchSize)
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "postgres://fallback")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://fallback", cfg.Database.URL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown platform", "database:\n  platform: oracle\n"},
		{"empty terminator", "migration:\n  terminator: \"\"\n"},
		{"unknown doc store mode", "docstore:\n  persist: sometimes\n"},
		{"unknown cache backend", "cache:\n  backend: memcached\n"},
		{"zero batch size", "lazyload:\n  batch_size: 0\n"},
		{"unknown log level", "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestDriverName(t *testing.T) {
	tests := map[string]string{
		"postgres":  "pgx",
		"sqlite":    "sqlite3",
		"sqlserver": "sqlserver",
	}
	for platformName, want := range tests {
		cfg := &Config{Database: DatabaseConfig{Platform: platformName}}
		got, err := cfg.DriverName()
		require.NoError(t, err, platformName)
		assert.Equal(t, want, got)
	}

	_, err := (&Config{Database: DatabaseConfig{Platform: "h2"}}).DriverName()
	assert.Error(t, err)
}

func TestNewCache_Memory(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	c, err := cfg.NewCache(context.Background())
	require.NoError(t, err)
	_, ok := c.(*cache.MemoryCache)
	assert.True(t, ok, "expected memory cache, got %T", c)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(oldWd)

	got, err := FindProjectRoot()
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotResolved)
}
