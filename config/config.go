package config

import (
	"fmt"
	"strings"
	"sync"

	"neodymium/database"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken  string `env:"DISCORD_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"/"`

	// Storage configuration
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"file"`
	DataDir        string `env:"DATA_DIR" envDefault:"."`
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseName   string `env:"DATABASE_NAME"`

	// Observability
	MetricsAddr string `env:"METRICS_ADDR"`
	NATSURL     string `env:"NATS_URL"` // empty disables event forwarding
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		cfg, err := load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		mu.Lock()
		instance = cfg
		mu.Unlock()
	})

	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// Load parses and validates configuration from the environment without
// touching the global instance
func Load() (*Config, error) {
	return load()
}

// GetDatabaseURL returns the database URL with DatabaseName applied
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the bot runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	config.StorageBackend = strings.ToLower(strings.TrimSpace(config.StorageBackend))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that required settings are present for the chosen backend
func (c *Config) Validate() error {
	if c.Environment != "test" && c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}

	if strings.TrimSpace(c.CommandPrefix) == "" {
		return fmt.Errorf("COMMAND_PREFIX cannot be empty")
	}

	switch c.StorageBackend {
	case StorageFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file storage backend")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (expected %q or %q)", c.StorageBackend, StorageFile, StoragePostgres)
	}

	return nil
}

// DatabaseConfig is the subset of configuration used by the migrate commands
type DatabaseConfig struct {
	DatabaseURL  string `env:"DATABASE_URL,notEmpty"`
	DatabaseName string `env:"DATABASE_NAME"`
}

// LoadDatabaseURL reads only the database settings from the environment
func LoadDatabaseURL() (string, error) {
	var cfg DatabaseConfig
	if err := env.Parse(&cfg); err != nil {
		return "", fmt.Errorf("parse env: %w", err)
	}
	return database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName), nil
}

// SetTestConfig replaces the global configuration. Tests only.
func SetTestConfig(testConfig *Config) {
	once.Do(func() {})
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig clears the global configuration so the next Get reloads it. Tests only.
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig returns a configuration suitable for tests
func NewTestConfig() *Config {
	return &Config{
		CommandPrefix:  "/",
		StorageBackend: StorageFile,
		DataDir:        ".",
		LogLevel:       "debug",
		Environment:    "test",
	}
}
