package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	platformstrings "cashdesk/pkg/platform/strings"
)

// Config is the full process configuration, grouped by concern.
type Config struct {
	Server     Server
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	RateLimit  RateLimitConfig
	Limits     LimitsConfig
	Compliance ComplianceConfig
	Ledger     LedgerConfig
	Auth       AuthConfig
	Audit      AuditConfig
	LogLevel   string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// PostgresConfig is shared by the ledger (pgxpool) and the rate window store (database/sql).
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event stream. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers     []string
	AuditTopic  string
	ClientID    string
	Partitions  int32
	Replication int16
}

// Rate window backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// RateLimitConfig configures the per-principal fixed window.
type RateLimitConfig struct {
	Backend       string
	MaxRequests   int
	Window        time.Duration
	PruneInterval time.Duration
}

// LimitsConfig holds the deposit ceilings.
type LimitsConfig struct {
	ATMCeiling    decimal.Decimal
	BranchCeiling decimal.Decimal
	AggregateCap  decimal.Decimal
	AggregateSpan time.Duration
}

// Compliance provider modes.
const (
	ComplianceSimulated = "simulated"
	ComplianceHTTP      = "http"
)

// ComplianceConfig selects the KYC/AML providers and bounds their calls.
type ComplianceConfig struct {
	Mode               string
	KYCURL             string
	AMLURL             string
	APIKey             string
	KYCTimeout         time.Duration
	AMLTimeout         time.Duration
	WatchlistExtra     []string
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// LedgerConfig selects the ledger store.
type LedgerConfig struct {
	Backend       string
	CommitTimeout time.Duration
}

// AuthConfig verifies bearer tokens.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// AuditConfig configures audit emission.
type AuditConfig struct {
	FingerprintKey string
	BufferSize     int
}

// FromEnv builds the configuration from environment variables so main stays lean.
// Defaults match a local single-process deployment.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: Server{
			Addr:            envString("CASHDESK_ADDR", ":8080"),
			ReadTimeout:     envDuration("HTTP_READ_TIMEOUT", 10*time.Second, &errs),
			WriteTimeout:    envDuration("HTTP_WRITE_TIMEOUT", 15*time.Second, &errs),
			ShutdownTimeout: envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        int32(envInt("DATABASE_MAX_CONNS", 10, &errs)),
			MaxConnLifetime: envDuration("DATABASE_MAX_CONN_LIFETIME", time.Hour, &errs),
			MaxConnIdleTime: envDuration("DATABASE_MAX_CONN_IDLE_TIME", 30*time.Minute, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("KAFKA_BROKERS"),
			AuditTopic:  envString("KAFKA_AUDIT_TOPIC", "cashdesk.audit"),
			ClientID:    envString("KAFKA_CLIENT_ID", "cashdesk"),
			Partitions:  int32(envInt("KAFKA_AUDIT_PARTITIONS", 3, &errs)),
			Replication: int16(envInt("KAFKA_AUDIT_REPLICATION", 1, &errs)),
		},
		RateLimit: RateLimitConfig{
			Backend:       envString("RATE_LIMIT_BACKEND", BackendMemory),
			MaxRequests:   envInt("RATE_LIMIT_MAX_REQUESTS", 5, &errs),
			Window:        envDuration("RATE_LIMIT_WINDOW", time.Minute, &errs),
			PruneInterval: envDuration("RATE_LIMIT_PRUNE_INTERVAL", time.Minute, &errs),
		},
		Limits: LimitsConfig{
			ATMCeiling:    envDecimal("LIMIT_ATM", "10000.00", &errs),
			BranchCeiling: envDecimal("LIMIT_BRANCH", "50000.00", &errs),
			AggregateCap:  envDecimal("LIMIT_AGGREGATE_24H", "10000.00", &errs),
			AggregateSpan: envDuration("LIMIT_AGGREGATE_SPAN", 24*time.Hour, &errs),
		},
		Compliance: ComplianceConfig{
			Mode:               envString("COMPLIANCE_MODE", ComplianceSimulated),
			KYCURL:             os.Getenv("KYC_URL"),
			AMLURL:             os.Getenv("AML_URL"),
			APIKey:             os.Getenv("COMPLIANCE_API_KEY"),
			KYCTimeout:         envDuration("KYC_TIMEOUT", 3*time.Second, &errs),
			AMLTimeout:         envDuration("AML_TIMEOUT", 3*time.Second, &errs),
			WatchlistExtra:     envList("AML_WATCHLIST_EXTRA"),
			BreakerMaxFailures: uint32(envInt("COMPLIANCE_BREAKER_MAX_FAILURES", 5, &errs)),
			BreakerOpenTimeout: envDuration("COMPLIANCE_BREAKER_OPEN_TIMEOUT", 30*time.Second, &errs),
		},
		Ledger: LedgerConfig{
			Backend:       envString("LEDGER_BACKEND", BackendMemory),
			CommitTimeout: envDuration("LEDGER_COMMIT_TIMEOUT", 5*time.Second, &errs),
		},
		Auth: AuthConfig{
			// Development default; must be overridden in production
			JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envString("JWT_ISSUER", "cashdesk-idp"),
			Audience:      envString("JWT_AUDIENCE", "cashdesk"),
		},
		Audit: AuditConfig{
			FingerprintKey: envString("AUDIT_FINGERPRINT_KEY", "dev-fingerprint-key-0000"),
			BufferSize:     envInt("AUDIT_BUFFER_SIZE", 1024, &errs),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	var errs []error

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis rate limit backend"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_REQUESTS must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimit.PruneInterval <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PRUNE_INTERVAL must be positive"))
	}

	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres ledger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.Ledger.Backend))
	}

	for name, v := range map[string]decimal.Decimal{
		"LIMIT_ATM":           c.Limits.ATMCeiling,
		"LIMIT_BRANCH":        c.Limits.BranchCeiling,
		"LIMIT_AGGREGATE_24H": c.Limits.AggregateCap,
	} {
		if !v.IsPositive() {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	switch c.Compliance.Mode {
	case ComplianceSimulated:
	case ComplianceHTTP:
		if c.Compliance.KYCURL == "" || c.Compliance.AMLURL == "" {
			errs = append(errs, errors.New("KYC_URL and AML_URL are required in http compliance mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown COMPLIANCE_MODE %q", c.Compliance.Mode))
	}
	if c.Compliance.KYCTimeout <= 0 || c.Compliance.AMLTimeout <= 0 {
		errs = append(errs, errors.New("KYC_TIMEOUT and AML_TIMEOUT must be positive"))
	}
	if c.Ledger.CommitTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_COMMIT_TIMEOUT must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	if n := len(c.Audit.FingerprintKey); n < 16 || n > 64 {
		errs = append(errs, errors.New("AUDIT_FINGERPRINT_KEY must be 16 to 64 bytes"))
	}

	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key string) []string {
	return platformstrings.SplitList(os.Getenv(key), ",")
}

func envInt(key string, def int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func envDecimal(key, def string, errs *[]error) decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(def)
	}
	return v
}
