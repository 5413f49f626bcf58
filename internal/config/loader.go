package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rpattn/memberdesk/internal/db"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration
type Config struct {
	Database db.Config
	Server   ServerConfig
	Log      LogConfig
	Import   ImportConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type LogConfig struct {
	Level  string
	Format string
}

// ImportConfig tunes the bulk import pipeline
type ImportConfig struct {
	PlaceholderPhotoURL string
	DefaultCountry      string
	AllocationAttempts  int
	Tracker             string // memory or redis
	TrackerTTL          time.Duration
	TrackerSize         int // memory tracker capacity in batches
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   5 * time.Minute,
			IdleTimeout:    60 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Import: ImportConfig{
			PlaceholderPhotoURL: "https://placehold.co/400x400?text=Member",
			DefaultCountry:      "India",
			AllocationAttempts:  3,
			Tracker:             "memory",
			TrackerTTL:          time.Hour,
			TrackerSize:         1024,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadEnv loads the given dotenv files that exist, earlier files winning
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads config.yaml from configPath and applies environment overrides
// such as DATABASE_HOST or IMPORT_TRACKER on top of the defaults.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return cfg, fmt.Errorf("failed to load env files: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"database.host", "database.port", "database.user", "database.password", "database.dbname", "database.sslmode",
		"database.max_conns", "database.min_conns", "database.max_conn_lifetime", "database.max_conn_idle_time",
		"server.addr", "server.allowed_origins", "server.max_upload_bytes",
		"server.read_timeout", "server.write_timeout", "server.idle_timeout",
		"log.level", "log.format",
		"import.placeholder_photo_url", "import.default_country", "import.allocation_attempts",
		"import.tracker", "import.tracker_ttl", "import.tracker_size",
		"redis.addr", "redis.password", "redis.db",
		"metrics.enabled", "metrics.path",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_conns") {
		cfg.Database.MaxConns = v.GetInt32("database.max_conns")
	}
	if v.IsSet("database.min_conns") {
		cfg.Database.MinConns = v.GetInt32("database.min_conns")
	}
	if v.IsSet("database.max_conn_lifetime") {
		cfg.Database.MaxConnLifetime = v.GetDuration("database.max_conn_lifetime")
	}
	if v.IsSet("database.max_conn_idle_time") {
		cfg.Database.MaxConnIdleTime = v.GetDuration("database.max_conn_idle_time")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("server.max_upload_bytes") {
		cfg.Server.MaxUploadBytes = v.GetInt64("server.max_upload_bytes")
	}
	if v.IsSet("server.read_timeout") {
		cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	}
	if v.IsSet("server.write_timeout") {
		cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	}
	if v.IsSet("server.idle_timeout") {
		cfg.Server.IdleTimeout = v.GetDuration("server.idle_timeout")
	}

	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}

	if v.IsSet("import.placeholder_photo_url") {
		cfg.Import.PlaceholderPhotoURL = v.GetString("import.placeholder_photo_url")
	}
	if v.IsSet("import.default_country") {
		cfg.Import.DefaultCountry = v.GetString("import.default_country")
	}
	if v.IsSet("import.allocation_attempts") {
		cfg.Import.AllocationAttempts = v.GetInt("import.allocation_attempts")
	}
	if v.IsSet("import.tracker") {
		cfg.Import.Tracker = v.GetString("import.tracker")
	}
	if v.IsSet("import.tracker_ttl") {
		cfg.Import.TrackerTTL = v.GetDuration("import.tracker_ttl")
	}
	if v.IsSet("import.tracker_size") {
		cfg.Import.TrackerSize = v.GetInt("import.tracker_size")
	}

	if v.IsSet("redis.addr") {
		cfg.Redis.Addr = v.GetString("redis.addr")
	}
	if v.IsSet("redis.password") {
		cfg.Redis.Password = v.GetString("redis.password")
	}
	if v.IsSet("redis.db") {
		cfg.Redis.DB = v.GetInt("redis.db")
	}

	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
	if v.IsSet("metrics.path") {
		cfg.Metrics.Path = v.GetString("metrics.path")
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the services cannot run with
func (c Config) Validate() error {
	if c.Import.Tracker != "memory" && c.Import.Tracker != "redis" {
		return fmt.Errorf("import tracker must be 'memory' or 'redis', got '%s'", c.Import.Tracker)
	}
	if c.Import.Tracker == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when import tracker is 'redis'")
	}
	if c.Import.AllocationAttempts < 1 {
		return fmt.Errorf("import allocation attempts must be at least 1, got %d", c.Import.AllocationAttempts)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max upload bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	return nil
}
