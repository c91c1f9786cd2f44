package domain

import "time"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Review    ReviewConfig    `mapstructure:"review"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RateLimit is requests per second per client; RateBurst the burst size.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// DatabaseConfig holds warehouse re-materialization database settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	Enabled         bool          `mapstructure:"enabled"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	LRUSize    int           `mapstructure:"lru_size"`
	Enabled    bool          `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ReferenceConfig holds reference-artifact settings.
type ReferenceConfig struct {
	// RulesPath is the path to the versioned YAML rule artifact. The
	// artifact is loadable without any live database connection.
	RulesPath string `mapstructure:"rules_path"`
}

// EngineConfig holds classification engine settings.
type EngineConfig struct {
	// Workers is the batch evaluation parallelism. Records are independent,
	// so any value >= 1 yields identical results.
	Workers int `mapstructure:"workers"`
	// ReviewThreshold is the confidence score below which non-excluded
	// results are routed to human review.
	ReviewThreshold int `mapstructure:"review_threshold"`
}

// ReviewConfig holds reviewer-feedback store settings.
type ReviewConfig struct {
	// Backend selects the store: "sqlite" or "postgres".
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path"`
}
