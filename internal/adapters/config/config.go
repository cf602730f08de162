package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"trinity/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	AI            AIConfig
	Workspace     WorkspaceConfig
	Tasks         TaskConfig
	Memory        MemoryConfig
	History       HistoryConfig
	Archive       ArchiveConfig
	Search        SearchConfig
	Web           WebConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"trinity"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Port         int           `envconfig:"SERVER_PORT" default:"8000"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

type AIConfig struct {
	OpenAIKey       string        `envconfig:"OPENAI_API_KEY"`
	ClaudeKey       string        `envconfig:"ANTHROPIC_API_KEY"`
	DefaultProvider string        `envconfig:"DEFAULT_AI_PROVIDER" default:"openai"`
	DefaultModel    string        `envconfig:"DEFAULT_AI_MODEL" default:"gpt-4o"`
	RequestTimeout  time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"60s"`

	// Rate limits are requests per minute with a burst allowance
	OpenAIReqPerMinute int `envconfig:"OPENAI_REQ_PER_MINUTE" default:"500"`
	OpenAIBurst        int `envconfig:"OPENAI_BURST" default:"50"`
	ClaudeReqPerMinute int `envconfig:"ANTHROPIC_REQ_PER_MINUTE" default:"300"`
	ClaudeBurst        int `envconfig:"ANTHROPIC_BURST" default:"30"`
}

// RateLimit holds the rate limiting parameters for a single provider.
type RateLimit struct {
	ReqPerMinute int
	Burst        int
}

// GetRateLimit returns the rate limit parameters for the given provider name.
func (c AIConfig) GetRateLimit(provider string) RateLimit {
	switch provider {
	case "anthropic", "claude":
		return RateLimit{ReqPerMinute: c.ClaudeReqPerMinute, Burst: c.ClaudeBurst}
	default:
		return RateLimit{ReqPerMinute: c.OpenAIReqPerMinute, Burst: c.OpenAIBurst}
	}
}

type WorkspaceConfig struct {
	Root string `envconfig:"WORKSPACE_PATH" default:"./workspace"`
}

type TaskConfig struct {
	MaxConcurrent int           `envconfig:"TASK_MAX_CONCURRENT" default:"5"`
	Timeout       time.Duration `envconfig:"TASK_TIMEOUT" default:"300s"`
	MaxIterations int           `envconfig:"TASK_MAX_ITERATIONS" default:"10"`
}

type MemoryConfig struct {
	ShortTermLimit      int           `envconfig:"MEMORY_SHORT_TERM_LIMIT" default:"100"`
	ConsolidateInterval time.Duration `envconfig:"MEMORY_CONSOLIDATE_INTERVAL" default:"5m"`
	RedisEnabled        bool          `envconfig:"MEMORY_REDIS_ENABLED" default:"false"`
	Redis               RedisConfig
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type HistoryConfig struct {
	MaxThoughts   int           `envconfig:"HISTORY_MAX_THOUGHTS" default:"200"`
	PruneInterval time.Duration `envconfig:"HISTORY_PRUNE_INTERVAL" default:"10m"`
}

type ArchiveConfig struct {
	Enabled  bool   `envconfig:"ARCHIVE_ENABLED" default:"false"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"trinity"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"trinity"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`

	// Archived records older than Retention are purged every PurgeInterval
	Retention     time.Duration `envconfig:"ARCHIVE_RETENTION" default:"720h"`
	PurgeInterval time.Duration `envconfig:"ARCHIVE_PURGE_INTERVAL" default:"24h"`
}

func (c ArchiveConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type SearchConfig struct {
	BaseURL string        `envconfig:"SEARCH_BASE_URL" default:"https://api.duckduckgo.com"`
	Timeout time.Duration `envconfig:"SEARCH_TIMEOUT" default:"30s"`
}

type WebConfig struct {
	Timeout     time.Duration `envconfig:"WEB_FETCH_TIMEOUT" default:"30s"`
	MaxBodySize int64         `envconfig:"WEB_MAX_BODY_SIZE" default:"1048576"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
