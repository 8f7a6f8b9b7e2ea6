// Package config provides configuration loading, defaults, and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Courses  CoursesConfig  `mapstructure:"courses"`
	Timezone string         `mapstructure:"timezone"` // e.g. "UTC", "America/New_York"
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode is the gin mode: debug, release, or test.
	Mode string `mapstructure:"mode"`
	// ReadHeaderTimeoutSeconds bounds slow-header clients.
	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout"`
	// IdleTimeoutSeconds bounds keep-alive connections.
	IdleTimeoutSeconds int `mapstructure:"idle_timeout"`
	// ShutdownTimeoutSeconds bounds the graceful drain on SIGTERM.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level           string            `mapstructure:"level"`
	Format          string            `mapstructure:"format"`
	ServiceName     string            `mapstructure:"service_name"`
	Environment     string            `mapstructure:"env"`
	Caller          bool              `mapstructure:"caller"`
	StacktraceLevel string            `mapstructure:"stacktrace_level"`
	Output          LogOutputConfig   `mapstructure:"output"`
	Rotation        LogRotationConfig `mapstructure:"rotation"`
	Sampling        LogSamplingConfig `mapstructure:"sampling"`
}

type LogOutputConfig struct {
	ToStdout bool   `mapstructure:"to_stdout"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

type LogRotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
	LocalTime  bool `mapstructure:"local_time"`
}

type LogSamplingConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Initial    int  `mapstructure:"initial"`
	Thereafter int  `mapstructure:"thereafter"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the Postgres connection settings. URL wins when set
// (the DATABASE_URL environment variable maps onto it); otherwise the DSN is
// assembled from the discrete fields.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// MaxOpenConns caps concurrent DB connections; the allocation path holds
	// row locks, so an unbounded pool only queues behind Postgres anyway.
	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// ConnMaxLifetimeMinutes recycles long-lived connections.
	ConnMaxLifetimeMinutes int `mapstructure:"conn_max_lifetime_minutes"`
	ConnMaxIdleTimeMinutes int `mapstructure:"conn_max_idle_time_minutes"`
}

func (d *DatabaseConfig) DSN() string {
	if url := strings.TrimSpace(d.URL); url != "" {
		return url
	}
	// Omit the password parameter when empty to avoid libpq parse errors.
	if d.Password == "" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.DBName, d.SSLMode,
		)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds the intake-queue connection settings. REDIS_HOST and
// REDIS_PORT environment variables map onto Host and Port.
type RedisConfig struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	Password            string `mapstructure:"password"`
	DB                  int    `mapstructure:"db"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
}

func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// WorkerConfig tunes the per-course allocator workers.
type WorkerConfig struct {
	// EmptyPollIntervalMS is the sleep after an empty pop.
	EmptyPollIntervalMS int `mapstructure:"empty_poll_interval_ms"`
	// ErrorBackoffMS is the sleep after a transient allocation error.
	ErrorBackoffMS int `mapstructure:"error_backoff_ms"`
	// AllocationTimeoutSeconds bounds a single allocation transaction.
	AllocationTimeoutSeconds int `mapstructure:"allocation_timeout_seconds"`
	// RescanCron is the robfig/cron spec for discovering new course rows
	// (and refreshing the per-course gauges).
	RescanCron string `mapstructure:"rescan_cron"`
}

func (w *WorkerConfig) EmptyPollInterval() time.Duration {
	return time.Duration(w.EmptyPollIntervalMS) * time.Millisecond
}

func (w *WorkerConfig) ErrorBackoff() time.Duration {
	return time.Duration(w.ErrorBackoffMS) * time.Millisecond
}

func (w *WorkerConfig) AllocationTimeout() time.Duration {
	return time.Duration(w.AllocationTimeoutSeconds) * time.Second
}

// CoursesConfig lists extra course ids that get a worker even without a
// course row, so queued requests for unknown courses are drained (and logged
// as not_found) instead of sitting forever.
type CoursesConfig struct {
	ExtraWorkerIDs []int64 `mapstructure:"extra_worker_ids"`
}

// Load reads config.yaml (if present), applies environment overrides and
// defaults, and validates the result.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Config paths in priority order.
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		viper.AddConfigPath(dataDir)
	}
	viper.AddConfigPath("/app/data")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/courseflow")

	// Environment overrides: SERVER_PORT -> server.port, DATABASE_URL ->
	// database.url, REDIS_HOST -> redis.host, and so on.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config error: %w", err)
		}
		// Missing config file means defaults plus environment.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}

	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	cfg.Database.URL = strings.TrimSpace(cfg.Database.URL)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Log.ServiceName = strings.TrimSpace(cfg.Log.ServiceName)
	cfg.Log.Environment = strings.TrimSpace(cfg.Log.Environment)
	cfg.Log.StacktraceLevel = strings.ToLower(strings.TrimSpace(cfg.Log.StacktraceLevel))
	cfg.Log.Output.FilePath = strings.TrimSpace(cfg.Log.Output.FilePath)
	cfg.CORS.AllowedOrigins = normalizeStringSlice(cfg.CORS.AllowedOrigins)
	cfg.Worker.RescanCron = strings.TrimSpace(cfg.Worker.RescanCron)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.DSN() == "" {
		return fmt.Errorf("database connection not configured")
	}
	if strings.TrimSpace(c.Redis.Host) == "" {
		return fmt.Errorf("redis.host is required")
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("redis.port out of range: %d", c.Redis.Port)
	}
	if c.Worker.EmptyPollIntervalMS <= 0 {
		return fmt.Errorf("worker.empty_poll_interval_ms must be positive")
	}
	if c.Worker.ErrorBackoffMS <= 0 {
		return fmt.Errorf("worker.error_backoff_ms must be positive")
	}
	if c.Worker.AllocationTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.allocation_timeout_seconds must be positive")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_header_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.shutdown_timeout", 10)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.service_name", "courseflow")
	viper.SetDefault("log.env", "production")
	viper.SetDefault("log.caller", true)
	viper.SetDefault("log.stacktrace_level", "error")
	viper.SetDefault("log.output.to_stdout", true)
	viper.SetDefault("log.output.to_file", false)
	viper.SetDefault("log.output.file_path", "")
	viper.SetDefault("log.rotation.max_size_mb", 100)
	viper.SetDefault("log.rotation.max_backups", 10)
	viper.SetDefault("log.rotation.max_age_days", 7)
	viper.SetDefault("log.sampling.enabled", false)

	// CORS
	viper.SetDefault("cors.allowed_origins", []string{})

	// Database
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "courseflow")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 30)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime_minutes", 60)
	viper.SetDefault("database.conn_max_idle_time_minutes", 10)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dial_timeout_seconds", 5)
	viper.SetDefault("redis.read_timeout_seconds", 3)
	viper.SetDefault("redis.write_timeout_seconds", 3)
	viper.SetDefault("redis.pool_size", 20)
	viper.SetDefault("redis.min_idle_conns", 2)

	// Worker
	viper.SetDefault("worker.empty_poll_interval_ms", 500)
	viper.SetDefault("worker.error_backoff_ms", 1000)
	viper.SetDefault("worker.allocation_timeout_seconds", 5)
	viper.SetDefault("worker.rescan_cron", "@every 30s")

	// Courses
	viper.SetDefault("courses.extra_worker_ids", []int64{})

	viper.SetDefault("timezone", "UTC")
}

func normalizeStringSlice(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
