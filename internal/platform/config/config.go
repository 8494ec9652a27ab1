// Package config loads runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via TAXGATE_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "taxgate/pkg/platform/strings"
)

type Config struct {
	Server   Server
	Auth     Auth
	Postgres Postgres
	Redis    RedisConfig
	Kafka    Kafka
	Audit    Audit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
}

// Auth holds token issuance and verification settings. The seed admin is the
// bootstrap account: registration and verification are admin-gated, so a
// fresh deployment needs one admin provisioned before anyone can log in. An
// empty SeedAdminEmail disables seeding.
type Auth struct {
	JWTSigningKey     string
	Issuer            string
	Audience          string
	TokenTTL          time.Duration
	SeedAdminEmail    string
	SeedAdminPassword string
}

// Postgres holds the primary database connection settings. An empty DSN runs
// the service on in-memory stores, which is only useful for local development.
type Postgres struct {
	DSN string
}

// RedisConfig holds connection settings for the token revocation list. An
// empty URL falls back to the in-process revocation list.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit export sink. No brokers means no export; the
// primary audit store still receives every record.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// Audit configures the recorder pipeline. RegulatedMode additionally records
// rejected authentication attempts, which regulated tenants require.
type Audit struct {
	BufferSize    int
	StoreTimeout  time.Duration
	RegulatedMode bool
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:     envString("TAXGATE_ADDR", ":8080"),
			LogLevel: envString("TAXGATE_LOG_LEVEL", "info"),
		},
		Auth: Auth{
			// Development default only; override in production.
			JWTSigningKey: envString("TAXGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envString("TAXGATE_JWT_ISSUER", "taxgate"),
			Audience:      envString("TAXGATE_JWT_AUDIENCE", "taxgate-api"),
			TokenTTL:      envDuration("TAXGATE_TOKEN_TTL", time.Hour),
			// Development defaults only; override in production.
			SeedAdminEmail:    envString("TAXGATE_SEED_ADMIN_EMAIL", "admin@taxgate.local"),
			SeedAdminPassword: envString("TAXGATE_SEED_ADMIN_PASSWORD", "admin-change-me"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("TAXGATE_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("TAXGATE_REDIS_URL"),
			PoolSize:     envInt("TAXGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TAXGATE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("TAXGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TAXGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TAXGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    envList("TAXGATE_KAFKA_BROKERS"),
			AuditTopic: envString("TAXGATE_KAFKA_AUDIT_TOPIC", "taxgate.audit-records"),
		},
		Audit: Audit{
			BufferSize:    envInt("TAXGATE_AUDIT_BUFFER_SIZE", 1024),
			StoreTimeout:  envDuration("TAXGATE_AUDIT_STORE_TIMEOUT", 5*time.Second),
			RegulatedMode: os.Getenv("TAXGATE_AUDIT_REGULATED_MODE") == "true",
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := pkgstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
