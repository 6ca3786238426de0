package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env                   string
	HTTPAddr              string
	GRPCAddr              string
	StoreDriver           string
	DatabaseURL           string
	MigrateOnStart        bool
	RedisAddr             string
	RedisPassword         string
	JWTSecret             string
	JWTIssuer             string
	TokenTTL              time.Duration
	AllowedOrigins        []string
	AuthRateLimitPerMin   int
	IdempotencyTTL        time.Duration
	IdempotencyPendingTTL time.Duration
	RequestTimeout        time.Duration
	PasswordMinLen        int
	SweepInterval         time.Duration
}

// fileConfig mirrors Config for the optional TOML file. Durations are strings
// so they can be written as "168h".
type fileConfig struct {
	Env                 string   `toml:"env"`
	HTTPAddr            string   `toml:"http_addr"`
	GRPCAddr            string   `toml:"grpc_addr"`
	StoreDriver         string   `toml:"store_driver"`
	DatabaseURL         string   `toml:"database_url"`
	MigrateOnStart      *bool    `toml:"migrate_on_start"`
	RedisAddr           string   `toml:"redis_addr"`
	JWTIssuer           string   `toml:"jwt_issuer"`
	TokenTTL            string   `toml:"token_ttl"`
	AllowedOrigins      []string `toml:"cors_allowed_origins"`
	AuthRateLimitPerMin int      `toml:"auth_rate_limit_per_min"`
	IdempotencyTTL      string   `toml:"idempotency_ttl"`
	IdempotencyPending  string   `toml:"idempotency_pending_ttl"`
	RequestTimeout      string   `toml:"request_timeout"`
	PasswordMinLen      int      `toml:"password_min_len"`
	SweepInterval       string   `toml:"sweep_interval"`
}

// Load reads .env, then the TOML file named by CONFIG_FILE (if any), then the
// environment. Secrets are only read from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

func LoadFile(path string) (Config, error) {
	var file fileConfig
	if path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	migrate := true
	if file.MigrateOnStart != nil {
		migrate = *file.MigrateOnStart
	}

	cfg := Config{
		Env:                   getenv("ENV", or(file.Env, "dev")),
		HTTPAddr:              getenv("HTTP_ADDR", or(file.HTTPAddr, ":8080")),
		GRPCAddr:              getenv("GRPC_ADDR", or(file.GRPCAddr, ":9090")),
		StoreDriver:           strings.ToLower(getenv("STORE_DRIVER", or(file.StoreDriver, DriverPostgres))),
		DatabaseURL:           getenv("DATABASE_URL", file.DatabaseURL),
		MigrateOnStart:        getenvBool("MIGRATE_ON_START", migrate),
		RedisAddr:             getenv("REDIS_ADDR", file.RedisAddr),
		RedisPassword:         getenv("REDIS_PASSWORD", ""),
		JWTSecret:             getenv("JWT_SECRET", ""),
		JWTIssuer:             getenv("JWT_ISSUER", or(file.JWTIssuer, "studyhub")),
		TokenTTL:              getenvDuration("TOKEN_TTL", fileDuration(file.TokenTTL, 7*24*time.Hour)),
		AllowedOrigins:        splitCSV(getenv("CORS_ALLOWED_ORIGINS", strings.Join(file.AllowedOrigins, ","))),
		AuthRateLimitPerMin:   getenvInt("AUTH_RATE_LIMIT_PER_MIN", orInt(file.AuthRateLimitPerMin, 20)),
		IdempotencyTTL:        getenvDuration("IDEMPOTENCY_TTL", fileDuration(file.IdempotencyTTL, 24*time.Hour)),
		IdempotencyPendingTTL: getenvDuration("IDEMPOTENCY_PENDING_TTL", fileDuration(file.IdempotencyPending, time.Minute)),
		RequestTimeout:        getenvDuration("REQUEST_TIMEOUT", fileDuration(file.RequestTimeout, 30*time.Second)),
		PasswordMinLen:        getenvInt("PASSWORD_MIN_LEN", orInt(file.PasswordMinLen, 8)),
		SweepInterval:         getenvDuration("SWEEP_INTERVAL", fileDuration(file.SweepInterval, time.Minute)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails closed on missing secrets and connection strings.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.PasswordMinLen < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LEN must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func getenv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func fileDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func splitCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
