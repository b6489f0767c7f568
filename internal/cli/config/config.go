package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/conduit-lang/ebean/internal/logging"
	"github.com/conduit-lang/ebean/internal/orm/cache"
	"github.com/conduit-lang/ebean/internal/orm/deploy"
	"github.com/conduit-lang/ebean/internal/orm/migrate/model"
	"github.com/conduit-lang/ebean/internal/orm/migrate/platform"
)

// FileName is the configuration file name without extension
const FileName = "ebean"

// Config represents the ebean configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Migration MigrationConfig `mapstructure:"migration"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	DocStore  DocStoreConfig  `mapstructure:"docstore"`
	Cache     CacheConfig     `mapstructure:"cache"`
	LazyLoad  LazyLoadConfig  `mapstructure:"lazyload"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Platform string `mapstructure:"platform"`
}

// MigrationConfig represents migration generation settings
type MigrationConfig struct {
	Dir        string `mapstructure:"dir"`
	Terminator string `mapstructure:"terminator"`
	// Entities is the YAML deployment file describing the entity beans
	Entities string `mapstructure:"entities"`
}

// DeployConfig holds the server wide deployment settings
type DeployConfig struct {
	AsOfSuffix            string `mapstructure:"as_of_suffix"`
	VersionsBetweenSuffix string `mapstructure:"versions_between_suffix"`
	PluralizeTables       bool   `mapstructure:"pluralize_tables"`
}

// DocStoreConfig holds the doc store defaults
type DocStoreConfig struct {
	Persist string `mapstructure:"persist"`
	// QueueAddr is the redis address of the doc store queue. When empty the
	// queue shares the cache redis and its credentials.
	QueueAddr     string `mapstructure:"queue_addr"`
	QueuePassword string `mapstructure:"queue_password"`
	QueueDB       int    `mapstructure:"queue_db"`
}

// CacheConfig holds the L2 cache backend settings
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LazyLoadConfig holds lazy loading settings
type LazyLoadConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level         string        `mapstructure:"level"`
	Development   bool          `mapstructure:"development"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.platform", platform.Postgres)
	v.SetDefault("migration.dir", "dbmigration")
	v.SetDefault("migration.terminator", ";")
	v.SetDefault("migration.entities", "entities.yaml")
	v.SetDefault("deploy.as_of_suffix", "_with_history")
	v.SetDefault("deploy.versions_between_suffix", "_with_history")
	v.SetDefault("deploy.pluralize_tables", false)
	v.SetDefault("docstore.persist", "update")
	v.SetDefault("docstore.queue_addr", "")
	v.SetDefault("docstore.queue_password", "")
	v.SetDefault("docstore.queue_db", 0)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("lazyload.batch_size", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.slow_threshold", time.Duration(0))
}

// Load loads the configuration from ebean.yaml in dir, overlaid by EBEAN_*
// environment variables. A missing file leaves the defaults in place.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("EBEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// relative paths in the file are relative to the file
	config.Migration.Dir = resolve(dir, config.Migration.Dir)
	config.Migration.Entities = resolve(dir, config.Migration.Entities)

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// PlatformDdl returns the DDL generator of the configured platform
func (c *Config) PlatformDdl() (*platform.PlatformDdl, error) {
	return platform.Lookup(c.Database.Platform)
}

// DriverName returns the database/sql driver registered for the platform
func (c *Config) DriverName() (string, error) {
	switch strings.ToLower(c.Database.Platform) {
	case platform.Postgres, "postgresql", "pgx":
		return "pgx", nil
	case platform.SQLite, "sqlite3":
		return "sqlite3", nil
	case platform.SQLServer, "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("no database driver for platform %q", c.Database.Platform)
	}
}

// DeployConfig returns the deployment settings for the descriptor manager
func (c *Config) DeployConfig() *deploy.Config {
	cfg := deploy.DefaultConfig()
	cfg.AsOfSuffix = c.Deploy.AsOfSuffix
	cfg.VersionsBetweenSuffix = c.Deploy.VersionsBetweenSuffix
	cfg.PluralizeTables = c.Deploy.PluralizeTables
	// validated on load
	cfg.DocStorePersist, _ = deploy.ParseDocStoreMode(c.DocStore.Persist)
	return cfg
}

// MConfiguration returns the DDL formatting options
func (c *Config) MConfiguration() *model.MConfiguration {
	cfg := model.NewMConfiguration()
	cfg.Terminator = c.Migration.Terminator
	cfg.Platform = c.Database.Platform
	return cfg
}

// LoggerConfig returns the logger settings
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Development:   c.Logging.Development,
		SlowThreshold: c.Logging.SlowThreshold,
	}
}

// NewCache creates the configured L2 cache backend
func (c *Config) NewCache(ctx context.Context) (cache.Cache, error) {
	base := cache.DefaultConfig()
	base.DefaultTTL = c.Cache.TTL

	switch c.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			Config:   base,
		})
	default:
		return cache.NewMemoryCacheWithConfig(base), nil
	}
}

// QueueAddr returns the redis address of the doc store queue
func (c *Config) QueueAddr() string {
	if c.DocStore.QueueAddr != "" {
		return c.DocStore.QueueAddr
	}
	return c.Cache.Redis.Addr
}

// QueueOptions returns the redis connection of the doc store queue
func (c *Config) QueueOptions() *redis.Options {
	if c.DocStore.QueueAddr == "" {
		return &redis.Options{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
		}
	}
	return &redis.Options{
		Addr:     c.DocStore.QueueAddr,
		Password: c.DocStore.QueuePassword,
		DB:       c.DocStore.QueueDB,
	}
}

// FindProjectRoot walks up from the working directory looking for ebean.yaml
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yaml", ".yml"} {
			if _, err := os.Stat(filepath.Join(dir, FileName+ext)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yaml found in this or any parent directory", FileName)
		}
		dir = parent
	}
}

func validateConfig(cfg *Config) error {
	if _, err := platform.Lookup(cfg.Database.Platform); err != nil {
		return fmt.Errorf("database.platform: %w", err)
	}
	if cfg.Migration.Terminator == "" {
		return fmt.Errorf("migration.terminator must not be empty")
	}
	if _, err := deploy.ParseDocStoreMode(cfg.DocStore.Persist); err != nil {
		return fmt.Errorf("docstore.persist: %w", err)
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got: %s", cfg.Cache.Backend)
	}
	if cfg.LazyLoad.BatchSize <= 0 {
		return fmt.Errorf("lazyload.batch_size must be positive, got: %d", cfg.LazyLoad.BatchSize)
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
