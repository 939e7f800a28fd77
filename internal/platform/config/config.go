// Package config holds the terminal's typed configuration, read from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	platformstrings "checkin/pkg/platform/strings"
)

// Store backends for the shared registry.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"CHECKIN_ADDR" envDefault:":8080"`
	RequestTimeout  time.Duration `env:"CHECKIN_REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"CHECKIN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Terminal identifies this terminal and the event it serves.
type Terminal struct {
	ID       string `env:"CHECKIN_TERMINAL_ID" envDefault:"terminal-1"`
	EventID  string `env:"CHECKIN_EVENT_ID" envDefault:"demo-event"`
	SeedDemo bool   `env:"CHECKIN_SEED_DEMO" envDefault:"false"`
}

// Store selects and configures the shared registry backend.
type Store struct {
	Backend     string        `env:"CHECKIN_STORE" envDefault:"memory"`
	DatabaseURL string        `env:"DATABASE_URL"`
	BindTimeout time.Duration `env:"CHECKIN_BIND_TIMEOUT" envDefault:"3s"`
}

// RedisConfig configures the go-redis client used by the redis backend.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"1s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"1s"`
}

// Queue configures the local offline queue. An empty path keeps the queue in
// memory, which loses pending binds on restart.
type Queue struct {
	Path string `env:"CHECKIN_QUEUE_PATH"`
}

// Scanner configures the wristband code feed.
type Scanner struct {
	Buffer int  `env:"CHECKIN_SCANNER_BUFFER" envDefault:"8"`
	Stdin  bool `env:"CHECKIN_SCANNER_STDIN" envDefault:"false"`
}

// Audit configures where audit events go. Postgres is used when the shared
// store is Postgres; Kafka brokers enable the outbox relay.
type Audit struct {
	KafkaBrokers     []string      `env:"CHECKIN_KAFKA_BROKERS" envSeparator:","`
	Topic            string        `env:"CHECKIN_AUDIT_TOPIC" envDefault:"checkin.audit"`
	TopicPartitions  int32         `env:"CHECKIN_AUDIT_TOPIC_PARTITIONS" envDefault:"3"`
	TopicReplication int16         `env:"CHECKIN_AUDIT_TOPIC_REPLICATION" envDefault:"1"`
	RelayInterval    time.Duration `env:"CHECKIN_AUDIT_RELAY_INTERVAL" envDefault:"1s"`
	AsyncBuffer      int           `env:"CHECKIN_AUDIT_ASYNC_BUFFER" envDefault:"256"`
}

// Identify tunes code parsing and fragment search.
type Identify struct {
	CodePattern    string `env:"CHECKIN_CODE_PATTERN" envDefault:"^[A-Z]{1,4}-[0-9]{4,}$"`
	MinFragmentLen int    `env:"CHECKIN_MIN_FRAGMENT_LEN" envDefault:"3"`
	MaxCandidates  int    `env:"CHECKIN_MAX_CANDIDATES" envDefault:"5"`
}

// Eligibility holds the medical-check age threshold.
type Eligibility struct {
	MedicalCheckAge int `env:"CHECKIN_MEDICAL_CHECK_AGE" envDefault:"40"`
}

// Connectivity configures the shared-store probe.
type Connectivity struct {
	ProbeInterval    time.Duration `env:"CHECKIN_PROBE_INTERVAL" envDefault:"5s"`
	ProbeTimeout     time.Duration `env:"CHECKIN_PROBE_TIMEOUT" envDefault:"2s"`
	FailureThreshold int           `env:"CHECKIN_PROBE_FAILURE_THRESHOLD" envDefault:"3"`
	SuccessThreshold int           `env:"CHECKIN_PROBE_SUCCESS_THRESHOLD" envDefault:"2"`
}

// Auth configures admin bearer tokens.
type Auth struct {
	JWTSigningKey string        `env:"CHECKIN_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `env:"CHECKIN_JWT_ISSUER" envDefault:"checkin"`
	AdminTokenTTL time.Duration `env:"CHECKIN_ADMIN_TOKEN_TTL" envDefault:"8h"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `env:"CHECKIN_LOG_LEVEL" envDefault:"info"`
	Format string `env:"CHECKIN_LOG_FORMAT" envDefault:"json"`
}

// Config is the whole terminal configuration.
type Config struct {
	Server       Server
	Terminal     Terminal
	Store        Store
	Redis        RedisConfig
	Queue        Queue
	Scanner      Scanner
	Audit        Audit
	Identify     Identify
	Eligibility  Eligibility
	Connectivity Connectivity
	Auth         Auth
	Logging      Logging
}

// FromEnv parses the environment into a Config and validates it.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Audit.KafkaBrokers = platformstrings.DedupeAndTrim(cfg.Audit.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements env tags cannot express.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", BackendPostgres)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s store", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Terminal.ID == "" {
		return fmt.Errorf("CHECKIN_TERMINAL_ID must not be empty")
	}
	if c.Eligibility.MedicalCheckAge <= 0 {
		return fmt.Errorf("CHECKIN_MEDICAL_CHECK_AGE must be positive")
	}
	if c.Connectivity.FailureThreshold <= 0 || c.Connectivity.SuccessThreshold <= 0 {
		return fmt.Errorf("probe thresholds must be positive")
	}
	return nil
}
