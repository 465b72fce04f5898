package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/cryptox"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	RealmName    string // Name of the account store realm (default: sql)
	DatabaseFile string // Path to the SQLite account store, or ":memory:" (default: ./authc.db)
	PepperFile   string // Path to the password pepper, generated when missing (default: ./pepper)
	Issuer       string // Issuer shown in authenticator apps on TOTP enrollment (default: realmauth)

	LockThreshold int  // Failed attempts per token type before an account locks; 0 disables (default: 0)
	TOTPSkew      uint // Accepted TOTP periods either side of now (default: 1)

	MFAChallenger   string        // none, log (default: none)
	ChallengeRate   int           // Challenges per account per ChallengeWindow; 0 disables throttling (default: 5)
	ChallengeWindow time.Duration // (default: 1m)
	ChallengeBurst  int           // (default: ChallengeRate)

	CacheBackend        string        // memory, redis, none (default: memory)
	CacheSize           int           // Entries per in-memory cache (default: 10000)
	RedisAddr           string        // Required for the redis backend
	RedisPassword       string        // Optional
	CredentialsCacheTTL time.Duration // (default: 1m)
	AuthzCacheTTL       time.Duration // (default: 1h)

	FailedAttemptRetention time.Duration // Failed attempts of unlocked accounts older than this are pruned (default: 0, never)

	BootstrapUsername string // Optional: admin account seeded into an empty store
	BootstrapPassword string

	// PasswordParams tunes argon2id. The zero value uses cryptox.DefaultParams.
	PasswordParams cryptox.Params

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json, text (default: json)
	LogOutput            io.Writer     // defaults to stdout
	Port                 int           // Health server port (default: 8080)
	ShutdownGracePeriod  time.Duration // (default: 10s)
	HousekeepingInterval time.Duration // (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		RealmName:    getEnvOrDefault("AUTHC_REALM_NAME", "sql"),
		DatabaseFile: getEnvOrDefault("AUTHC_DATABASE_FILE", "authc.db"),
		PepperFile:   getEnvOrDefault("AUTHC_PEPPER_FILE", "pepper"),
		Issuer:       getEnvOrDefault("AUTHC_ISSUER", "realmauth"),

		LockThreshold: getEnvIntOrDefault("AUTHC_ACCOUNT_LOCK_THRESHOLD", 0),
		TOTPSkew:      uint(max(getEnvIntOrDefault("AUTHC_TOTP_SKEW", 1), 0)),

		MFAChallenger:   getEnvOrDefault("AUTHC_MFA_CHALLENGER", "none"),
		ChallengeRate:   getEnvIntOrDefault("AUTHC_MFA_CHALLENGE_RATE", 5),
		ChallengeWindow: getEnvDurationOrDefault("AUTHC_MFA_CHALLENGE_WINDOW", time.Minute),

		CacheBackend:        getEnvOrDefault("AUTHC_CACHE_BACKEND", CacheBackendMemory),
		CacheSize:           getEnvIntOrDefault("AUTHC_CACHE_SIZE", 10_000),
		RedisAddr:           os.Getenv("AUTHC_REDIS_ADDR"),
		RedisPassword:       os.Getenv("AUTHC_REDIS_PASSWORD"),
		CredentialsCacheTTL: getEnvDurationOrDefault("AUTHC_CREDENTIALS_CACHE_TTL", time.Minute),
		AuthzCacheTTL:       getEnvDurationOrDefault("AUTHC_AUTHZ_CACHE_TTL", time.Hour),

		FailedAttemptRetention: getEnvDurationOrDefault("AUTHC_FAILED_ATTEMPT_RETENTION", 0),

		BootstrapUsername: os.Getenv("AUTHC_BOOTSTRAP_USERNAME"),
		BootstrapPassword: os.Getenv("AUTHC_BOOTSTRAP_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
	cfg.ChallengeBurst = getEnvIntOrDefault("AUTHC_MFA_CHALLENGE_BURST", cfg.ChallengeRate)

	return cfg
}

// Validate rejects settings New cannot build a working daemon from.
func (c Config) Validate() error {
	var errs []error
	if c.RealmName == "" {
		errs = append(errs, errors.New("realm name is required"))
	}
	if c.LockThreshold < 0 {
		errs = append(errs, fmt.Errorf("lock threshold must not be negative, got %d", c.LockThreshold))
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendNone, "":
	case CacheBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis cache backend requires AUTHC_REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	if c.FailedAttemptRetention < 0 {
		errs = append(errs, fmt.Errorf("failed attempt retention must not be negative, got %s", c.FailedAttemptRetention))
	}
	if (c.BootstrapUsername == "") != (c.BootstrapPassword == "") {
		errs = append(errs, errors.New("bootstrap username and password must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
