package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Cache      CacheConfig
	Assignment AssignmentConfig
	LLM        LLMConfig
	Mail       MailConfig
	Slack      SlackConfig
	Worker     WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. URL wins over Addr when set.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// CacheConfig carries the TTL classes and store limits of the cache layer.
type CacheConfig struct {
	ModeratorSkillsTTLSeconds int
	TicketStatsTTLSeconds     int
	UserSessionTTLSeconds     int
	RecentTicketsTTLSeconds   int
	TicketCountsTTLSeconds    int
	ModeratorListTTLSeconds   int
	OpTimeoutMillis           int
	ScanBatchSize             int
	MaxScanBatches            int
	ProbeSchedule             string
	RosterWarmSchedule        string
}

// AssignmentConfig is the moderator scoring policy.
type AssignmentConfig struct {
	SkillWeight           float64 `yaml:"skill_weight"`
	AvailabilityWeight    float64 `yaml:"availability_weight"`
	PerformanceWeight     float64 `yaml:"performance_weight"`
	MaxCapacity           int     `yaml:"max_capacity"`
	TargetResolutionHours float64 `yaml:"target_resolution_hours"`
	TieBand               float64 `yaml:"tie_band"`
	NeutralSkillScore     float64 `yaml:"neutral_skill_score"`
	NewModeratorScore     float64 `yaml:"new_moderator_score"`
	MaxSlowPenalty        float64 `yaml:"max_slow_penalty"`
	WorkloadConcurrency   int     `yaml:"workload_concurrency"`
}

// LLMConfig configures the ticket classifier.
type LLMConfig struct {
	AnthropicAPIKey string
	Model           string
	MaxTokens       int
	TimeoutSeconds  int
}

// MailConfig configures the SendGrid mailer.
type MailConfig struct {
	SendGridAPIKey string
	From           string
	ReplyTo        string
}

// SlackConfig configures the optional Slack notifier.
type SlackConfig struct {
	BotToken  string
	ChannelID string
}

// WorkerConfig controls the ticket analysis worker pool.
type WorkerConfig struct {
	AnalysisWorkers    int
	QueueSize          int
	MaxAttempts        int
	RetryBackoffMillis int
}

// DefaultAssignment returns the stock scoring policy.
func DefaultAssignment() AssignmentConfig {
	return AssignmentConfig{
		SkillWeight:           0.5,
		AvailabilityWeight:    0.3,
		PerformanceWeight:     0.2,
		MaxCapacity:           10,
		TargetResolutionHours: 24,
		TieBand:               0.05,
		NeutralSkillScore:     0.5,
		NewModeratorScore:     0.7,
		MaxSlowPenalty:        0.5,
		WorkloadConcurrency:   8,
	}
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	assignment, err := loadAssignment(os.Getenv("ASSIGNMENT_POLICY_PATH"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-assistant"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "3000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Cache: CacheConfig{
			ModeratorSkillsTTLSeconds: getEnvAsInt("CACHE_TTL_MODERATOR_SKILLS", 3600),
			TicketStatsTTLSeconds:     getEnvAsInt("CACHE_TTL_TICKET_STATS", 300),
			UserSessionTTLSeconds:     getEnvAsInt("CACHE_TTL_USER_SESSION", 86400),
			RecentTicketsTTLSeconds:   getEnvAsInt("CACHE_TTL_RECENT_TICKETS", 180),
			TicketCountsTTLSeconds:    getEnvAsInt("CACHE_TTL_TICKET_COUNTS", 60),
			ModeratorListTTLSeconds:   getEnvAsInt("CACHE_TTL_MODERATOR_LIST", 1800),
			OpTimeoutMillis:           getEnvAsInt("CACHE_OP_TIMEOUT_MS", 2000),
			ScanBatchSize:             getEnvAsInt("CACHE_SCAN_BATCH_SIZE", 100),
			MaxScanBatches:            getEnvAsInt("CACHE_MAX_SCAN_BATCHES", 1000),
			ProbeSchedule:             getEnv("CACHE_PROBE_SCHEDULE", "@every 30s"),
			RosterWarmSchedule:        getEnv("ROSTER_WARM_SCHEDULE", "@every 15m"),
		},
		Assignment: applyAssignmentEnv(assignment),
		LLM: LLMConfig{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:           getEnv("LLM_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 1024),
			TimeoutSeconds:  getEnvAsInt("LLM_TIMEOUT_SECONDS", 60),
		},
		Mail: MailConfig{
			SendGridAPIKey: getEnv("MAIL_API_KEY", os.Getenv("SENDGRID_API_KEY")),
			From:           getEnv("MAIL_FROM", `"Ticket.io" <no-reply@example.com>`),
			ReplyTo:        os.Getenv("MAIL_REPLY_TO"),
		},
		Slack: SlackConfig{
			BotToken:  os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID: os.Getenv("SLACK_CHANNEL_ID"),
		},
		Worker: WorkerConfig{
			AnalysisWorkers:    getEnvAsInt("WORKER_ANALYSIS_WORKERS", 4),
			QueueSize:          getEnvAsInt("WORKER_QUEUE_SIZE", 100),
			MaxAttempts:        getEnvAsInt("WORKER_MAX_ATTEMPTS", 3),
			RetryBackoffMillis: getEnvAsInt("WORKER_RETRY_BACKOFF_MS", 500),
		},
	}

	if err := cfg.Assignment.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAssignment reads the optional YAML policy file on top of the defaults.
func loadAssignment(path string) (AssignmentConfig, error) {
	policy := DefaultAssignment()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read assignment policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parse assignment policy %s: %w", path, err)
	}
	return policy, nil
}

func applyAssignmentEnv(policy AssignmentConfig) AssignmentConfig {
	policy.SkillWeight = getEnvAsFloat("ASSIGNMENT_SKILL_WEIGHT", policy.SkillWeight)
	policy.AvailabilityWeight = getEnvAsFloat("ASSIGNMENT_AVAILABILITY_WEIGHT", policy.AvailabilityWeight)
	policy.PerformanceWeight = getEnvAsFloat("ASSIGNMENT_PERFORMANCE_WEIGHT", policy.PerformanceWeight)
	policy.MaxCapacity = getEnvAsInt("ASSIGNMENT_MAX_CAPACITY", policy.MaxCapacity)
	policy.TargetResolutionHours = getEnvAsFloat("ASSIGNMENT_TARGET_HOURS", policy.TargetResolutionHours)
	policy.TieBand = getEnvAsFloat("ASSIGNMENT_TIE_BAND", policy.TieBand)
	policy.NeutralSkillScore = getEnvAsFloat("ASSIGNMENT_NEUTRAL_SKILL_SCORE", policy.NeutralSkillScore)
	policy.NewModeratorScore = getEnvAsFloat("ASSIGNMENT_NEW_MODERATOR_SCORE", policy.NewModeratorScore)
	policy.MaxSlowPenalty = getEnvAsFloat("ASSIGNMENT_MAX_SLOW_PENALTY", policy.MaxSlowPenalty)
	policy.WorkloadConcurrency = getEnvAsInt("ASSIGNMENT_WORKLOAD_CONCURRENCY", policy.WorkloadConcurrency)
	return policy
}

// Validate rejects policies that cannot produce scores in [0,1].
func (a AssignmentConfig) Validate() error {
	if a.SkillWeight < 0 || a.AvailabilityWeight < 0 || a.PerformanceWeight < 0 {
		return fmt.Errorf("assignment weights must be non-negative")
	}
	if sum := a.SkillWeight + a.AvailabilityWeight + a.PerformanceWeight; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("assignment weights must sum to 1, got %.4f", sum)
	}
	if a.MaxCapacity <= 0 {
		return fmt.Errorf("assignment max_capacity must be positive")
	}
	if a.TargetResolutionHours <= 0 {
		return fmt.Errorf("assignment target_resolution_hours must be positive")
	}
	if a.TieBand < 0 || a.TieBand >= 1 {
		return fmt.Errorf("assignment tie_band must be in [0,1)")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// OpTimeout bounds every single cache store call.
func (c CacheConfig) OpTimeout() time.Duration {
	if c.OpTimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.OpTimeoutMillis) * time.Millisecond
}

// Configured reports whether an Anthropic key is present.
func (l LLMConfig) Configured() bool {
	return strings.TrimSpace(l.AnthropicAPIKey) != ""
}

// Configured reports whether SendGrid can be used.
func (m MailConfig) Configured() bool {
	return strings.TrimSpace(m.SendGridAPIKey) != ""
}

// Configured reports whether the Slack notifier can post.
func (s SlackConfig) Configured() bool {
	return strings.TrimSpace(s.BotToken) != "" && strings.TrimSpace(s.ChannelID) != ""
}

// RetryBackoff returns the base delay between analysis attempts.
func (w WorkerConfig) RetryBackoff() time.Duration {
	if w.RetryBackoffMillis <= 0 {
		return 0
	}
	return time.Duration(w.RetryBackoffMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
