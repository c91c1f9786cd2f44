package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/neuroonc-procedure-classifier/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("NEUROONC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 50.0)
	viper.SetDefault("server.rate_burst", 100)

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "neuroonc_cohort")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "10m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.lru_size", 10000)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Reference artifact defaults
	viper.SetDefault("reference.rules_path", "config/rules.yaml")

	// Engine defaults
	viper.SetDefault("engine.workers", 0) // 0 selects runtime.NumCPU
	viper.SetDefault("engine.review_threshold", 70)

	// Review store defaults
	viper.SetDefault("review.backend", "sqlite")
	viper.SetDefault("review.sqlite_path", "data/review.db")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit <= 0 {
		return fmt.Errorf("invalid rate limit: %f", config.Server.RateLimit)
	}

	// Validate reference artifact path
	if config.Reference.RulesPath == "" {
		return fmt.Errorf("reference rules path is required")
	}

	// Validate engine configuration
	if config.Engine.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", config.Engine.Workers)
	}
	if config.Engine.ReviewThreshold < 0 || config.Engine.ReviewThreshold > 100 {
		return fmt.Errorf("invalid review threshold: %d", config.Engine.ReviewThreshold)
	}

	// Validate database configuration when the warehouse sink is enabled
	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	// Validate cache configuration when enabled
	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required")
	}

	// Validate review store configuration
	switch config.Review.Backend {
	case "sqlite":
		if config.Review.SQLitePath == "" {
			return fmt.Errorf("sqlite review store path is required")
		}
	case "postgres":
		if !config.Database.Enabled {
			return fmt.Errorf("postgres review store requires database.enabled")
		}
	default:
		return fmt.Errorf("invalid review backend: %s", config.Review.Backend)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
