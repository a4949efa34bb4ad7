// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML XP policy file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/synapse/internal/ledger"
	"github.com/abhisek/synapse/internal/llm"
	"github.com/abhisek/synapse/internal/store"
)

// Config is the full service configuration.
type Config struct {
	Store  store.Config
	Redis  RedisConfig
	Server ServerConfig
	Log    LogConfig

	// LLM is nil when no provider is configured; AI functions then fail
	// with a configuration error.
	LLM *llm.Config

	Policy ledger.Policy

	// MaxCASAttempts bounds optimistic retries on user stat updates.
	MaxCASAttempts int
}

// RedisConfig configures the optional leaderboard cache.
type RedisConfig struct {
	URL string // empty disables the cache
	TTL time.Duration
}

// ServerConfig configures the HTTP invocation surface.
type ServerConfig struct {
	Addr            string
	APIKey          string // empty disables key checks
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store: store.Config{Backend: store.BackendSQLite},
		Redis: RedisConfig{TTL: 60 * time.Second},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:            LogConfig{Level: "info", Format: "console"},
		Policy:         ledger.DefaultPolicy(),
		MaxCASAttempts: 5,
	}
}

// Load reads .env (if present), then SYNAPSE_* environment variables, then
// the XP policy file named by SYNAPSE_POLICY_FILE.
func Load() (*Config, error) {
	envFile := getEnv("SYNAPSE_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()

	cfg.Store.Backend = getEnv("SYNAPSE_STORE", cfg.Store.Backend)
	switch cfg.Store.Backend {
	case store.BackendPostgres:
		cfg.Store.DSN = getEnv("SYNAPSE_DATABASE_URL", os.Getenv("DATABASE_URL"))
		if cfg.Store.DSN == "" {
			return nil, fmt.Errorf("SYNAPSE_DATABASE_URL is required for the postgres store")
		}
	case store.BackendSQLite:
		// Empty DSN lets the store resolve SYNAPSE_DB or the XDG data dir.
		cfg.Store.DSN = os.Getenv("SYNAPSE_DB")
	default:
		return nil, fmt.Errorf("unknown SYNAPSE_STORE %q (want sqlite or postgres)", cfg.Store.Backend)
	}

	cfg.Redis.URL = os.Getenv("SYNAPSE_REDIS_URL")
	ttl, err := getDuration("SYNAPSE_LEADERBOARD_TTL", cfg.Redis.TTL)
	if err != nil {
		return nil, err
	}
	cfg.Redis.TTL = ttl

	cfg.Server.Addr = getEnv("SYNAPSE_ADDR", cfg.Server.Addr)
	cfg.Server.APIKey = os.Getenv("SYNAPSE_API_KEY")

	cfg.Log.Level = getEnv("SYNAPSE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("SYNAPSE_LOG_FORMAT", cfg.Log.Format)

	if v := os.Getenv("SYNAPSE_CAS_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("SYNAPSE_CAS_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.MaxCASAttempts = n
	}

	if path := os.Getenv("SYNAPSE_POLICY_FILE"); path != "" {
		p, err := LoadPolicy(path)
		if err != nil {
			return nil, err
		}
		cfg.Policy = p
	}

	cfg.LLM = loadLLM()
	return &cfg, nil
}

// LoadPolicy reads an XP policy from a YAML file. Keys that are absent keep
// their default values.
func LoadPolicy(path string) (ledger.Policy, error) {
	p := ledger.DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return p, nil
}

// loadLLM uses explicit SYNAPSE_LLM_PROVIDER settings when present and
// otherwise probes the standard provider API key variables.
func loadLLM() *llm.Config {
	if os.Getenv("SYNAPSE_LLM_PROVIDER") != "" {
		c := llm.ConfigFromEnv()
		return &c
	}
	if c, ok := llm.DiscoverConfig(); ok {
		return &c
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
