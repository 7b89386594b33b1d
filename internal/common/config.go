// -----------------------------------------------------------------------
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration for the crawl scheduler.
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Database    DatabaseConfig `toml:"database"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Worker      WorkerConfig   `toml:"worker"`
	RateLimit   RateLimitConfig `toml:"ratelimit"`
	Retry       RetryConfig    `toml:"retry"`
	HTTP        HTTPConfig     `toml:"http"`
	Logging     LoggingConfig  `toml:"logging"`
	Heartbeat   HeartbeatConfig `toml:"heartbeat"`
	JobFilter   JobFilterConfig `toml:"job_filter"`
}

// DatabaseConfig holds the SQLite database endpoint.
// DB_HOST/DB_PORT/DB_USER/DB_PASSWORD are accepted for interface parity with a
// future networked engine; they are stored but not used. When Path is empty
// it is derived from Name alone.
type DatabaseConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Name           string `toml:"name"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	Path           string `toml:"path"` // SQLite file path, derived from Name when empty
	ResetOnStartup bool   `toml:"reset_on_startup"`
	WALMode        bool   `toml:"wal_mode"`
	CacheSizeMB    int    `toml:"cache_size_mb"`
	BusyTimeoutMS  int    `toml:"busy_timeout_ms"`
}

// SchedulerConfig controls the scheduler loop's tick cadence and batching.
type SchedulerConfig struct {
	CrawlIntervalHours int `toml:"crawl_interval_hours"` // scheduler tick period and cache TTL
	BatchSize          int `toml:"batch_size"`           // companies per batch
	BatchDelaySeconds  int `toml:"batch_delay_seconds"`  // inter-batch pause
}

// WorkerConfig controls the bounded worker pool.
type WorkerConfig struct {
	MaxConcurrentTasks int `toml:"max_concurrent_tasks"` // worker semaphore cap
}

// RateLimitConfig controls the per-origin rate gate.
type RateLimitConfig struct {
	RequestsPerMinute int     `toml:"requests_per_minute"`
	MinDelaySeconds   float64 `toml:"min_delay_seconds"`
	MaxDelaySeconds   float64 `toml:"max_delay_seconds"`
}

// RetryConfig controls the HTTP fetcher's retry envelope.
type RetryConfig struct {
	Attempts      int           `toml:"attempts"`
	DelaySeconds  float64       `toml:"delay_seconds"`
	Backoff       float64       `toml:"backoff"`
	MaxBackoff    time.Duration `toml:"max_backoff"`
}

// HTTPConfig controls the shared HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LoggingConfig mirrors the teacher's arbor-backed logging configuration.
type LoggingConfig struct {
	Level      string   `toml:"level"`       // debug|info|warn|error
	Format     string   `toml:"format"`      // text|json
	Output     []string `toml:"output"`      // stdout|file
	TimeFormat string   `toml:"time_format"`
}

// HeartbeatConfig controls the liveness heartbeat file.
type HeartbeatConfig struct {
	Path            string `toml:"path"`
	IdleIntervalSeconds int `toml:"idle_interval_seconds"`
}

// JobFilterConfig narrows which HTML-scraped postings are kept. Structured
// API providers are trusted as-is and never filtered; this only applies to
// the goquery fallback path, where listing pages can surface noise (ads,
// unrelated postings mirrored from a parent job board) the APIs don't have.
type JobFilterConfig struct {
	IncludeKeywords  []string `toml:"include_keywords"`
	ExcludeKeywords  []string `toml:"exclude_keywords"`
	RequiredKeywords []string `toml:"required_keywords"`
	TitleOnly        bool     `toml:"title_only"`
	MinMatches       int      `toml:"min_matches"`
}

// NewDefaultConfig returns a configuration populated with the spec's defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Path:          "./data/jobcrawler.db",
			WALMode:       true,
			CacheSizeMB:   32,
			BusyTimeoutMS: 5000,
		},
		Scheduler: SchedulerConfig{
			CrawlIntervalHours: 24,
			BatchSize:          10,
			BatchDelaySeconds:  60,
		},
		Worker: WorkerConfig{
			MaxConcurrentTasks: 10,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			MinDelaySeconds:   2.0,
			MaxDelaySeconds:   5.0,
		},
		Retry: RetryConfig{
			Attempts:     3,
			DelaySeconds: 2.0,
			Backoff:      2.0,
			MaxBackoff:   30 * time.Second,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Heartbeat: HeartbeatConfig{
			Path:                "./data/heartbeat.json",
			IdleIntervalSeconds: 60,
		},
	}
}

// LoadConfig loads configuration with priority: default -> TOML file -> env.
// The .env file is loaded into the process environment first without
// replacing variables that are already set, so its values act as env
// overrides (winning over the TOML file) and real process env wins over it.
// path may be empty, in which case only defaults and environment overrides apply.
func LoadConfig(path string) (*Config, error) {
	// Best-effort .env load; a missing file is not an error (mirrors godotenv's
	// common usage in the retrieval pack's CLI bootstraps).
	_ = godotenv.Load()

	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Database.Path == "" {
		config.Database.Path = deriveSQLitePath(config.Database)
	}

	return config, nil
}

// deriveSQLitePath folds DB_NAME into a filesystem path when no explicit Path
// was configured, so the DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD contract
// from the spec's configuration table still has a concrete effect.
func deriveSQLitePath(db DatabaseConfig) string {
	name := db.Name
	if name == "" {
		name = "jobcrawler"
	}
	return fmt.Sprintf("./data/%s.db", name)
}

// applyEnvOverrides applies the environment variables named in the spec's
// configuration table, taking priority over file and default values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("QUAERO_ENV"); v != "" {
		config.Environment = v
	} else if v := os.Getenv("GO_ENV"); v != "" {
		config.Environment = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		config.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			config.Database.Port = p
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		config.Database.Name = v
		config.Database.Path = deriveSQLitePath(config.Database)
	}
	if v := os.Getenv("DB_USER"); v != "" {
		config.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}

	if v := os.Getenv("CRAWL_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scheduler.CrawlIntervalHours = n
		}
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scheduler.BatchSize = n
		}
	}
	if v := os.Getenv("BATCH_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scheduler.BatchDelaySeconds = n
		}
	}
	if v := os.Getenv("MAX_CONCURRENT_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Worker.MaxConcurrentTasks = n
		}
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("MIN_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.RateLimit.MinDelaySeconds = f
		}
	}
	if v := os.Getenv("MAX_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.RateLimit.MaxDelaySeconds = f
		}
	}
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Retry.Attempts = n
		}
	}
	if v := os.Getenv("RETRY_DELAY_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Retry.DelaySeconds = f
		}
	}
	if v := os.Getenv("RETRY_BACKOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Retry.Backoff = f
		}
	}
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.HTTP.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("HEARTBEAT_PATH"); v != "" {
		config.Heartbeat.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// CrawlInterval returns the scheduler tick period as a duration.
func (c *SchedulerConfig) CrawlInterval() time.Duration {
	return time.Duration(c.CrawlIntervalHours) * time.Hour
}

// BatchDelay returns the inter-batch pause as a duration.
func (c *SchedulerConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelaySeconds) * time.Second
}

// MinDelay returns the jitter lower bound as a duration.
func (c *RateLimitConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelaySeconds * float64(time.Second))
}

// MaxDelay returns the jitter upper bound as a duration.
func (c *RateLimitConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds * float64(time.Second))
}

// Delay returns the initial retry delay as a duration.
func (c *RetryConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// Timeout returns the HTTP request timeout as a duration.
func (c *HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
