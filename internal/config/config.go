package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Storage backends for the conversation key-value substrate.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config holds all stuplan configuration.
type Config struct {
	DataDir     string `mapstructure:"data_dir"`
	TermsFile   string `mapstructure:"terms_file"`   // Academic terms YAML, optional
	CatalogFile string `mapstructure:"catalog_file"` // Programs and students YAML, optional

	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // Path to SQLite database file
	URL    string `mapstructure:"url"`    // PostgreSQL connection URL
}

// StorageConfig selects where conversation state and the recent index live.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // memory, file or redis
	Dir       string `mapstructure:"dir"`
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ConversationConfig holds conversation retention settings.
type ConversationConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxIndexEntries int           `mapstructure:"max_index_entries"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Port int    `mapstructure:"port"`
}

// ListenAddr returns host:port for the HTTP server.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file, environment, and defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultDataDir := filepath.Join(home, ".stuplan")

	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("database.driver", DriverSQLite)
	viper.SetDefault("storage.backend", BackendFile)
	viper.SetDefault("storage.key_prefix", "stuplan")
	viper.SetDefault("conversation.ttl", 7*24*time.Hour)
	viper.SetDefault("conversation.max_index_entries", 20)
	viper.SetDefault("server.addr", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides
	if dir := os.Getenv("STUPLAN_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if url := os.Getenv("STUPLAN_DATABASE_URL"); url != "" {
		cfg.Database.URL = url
		if os.Getenv("STUPLAN_DATABASE_DRIVER") == "" {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if driver := os.Getenv("STUPLAN_DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if url := os.Getenv("STUPLAN_REDIS_URL"); url != "" {
		cfg.Storage.RedisURL = url
	}

	// Derived paths
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "stuplan.db")
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(cfg.DataDir, "conversations")
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %q", c.Database.Driver)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q", c.Storage.Backend)
	}

	if c.Conversation.TTL <= 0 {
		return fmt.Errorf("conversation.ttl must be positive")
	}
	if c.Conversation.MaxIndexEntries <= 0 {
		return fmt.Errorf("conversation.max_index_entries must be positive")
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Database.Driver == DriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	if c.Storage.Backend == BackendFile {
		dirs = append(dirs, c.Storage.Dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
