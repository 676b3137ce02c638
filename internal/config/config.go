// Package config resolves service settings from the environment, an
// optional .env file and an optional YAML pricing file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/logging"
	"github.com/fpang/virtual-tryon/internal/usage"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// Ledger backends accepted in TRYON_LEDGER_BACKEND.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Defaults.
const (
	DefaultPort              = 8080
	DefaultLedgerPath        = "usage-data.json"
	DefaultLedgerSQLitePath  = "usage-data.db"
	DefaultLedgerKey         = "usage/usage-data.json"
	DefaultLedgerName        = "default"
	DefaultRedisKey          = "tryon:usage"
	DefaultGenerationTimeout = 180 * time.Second
	DefaultSSMAPIKeyParam    = "/virtual-tryon/prod/gemini-api-key"
)

// Config is the resolved service configuration.
type Config struct {
	APIKey string
	Model  string
	Port   int

	LedgerBackend    string
	LedgerPath       string
	LedgerSQLitePath string
	LedgerTable      string
	LedgerBucket     string
	LedgerKey        string
	LedgerName       string
	RedisAddr        string
	RedisPassword    string
	RedisKey         string

	PricingFile string
	Pricing     usage.Pricing

	GenerationTimeout time.Duration
	SessionTTL        time.Duration

	SSMAPIKeyParam     string
	AllowedOrigins     []string
	OriginVerifySecret string
}

// Load reads .env (if present) and then the environment. Variables already
// set in the environment win over .env values.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Ignoring unreadable .env file")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		APIKey:             os.Getenv("GEMINI_API_KEY"),
		Model:              logging.EnvOrDefault("GEMINI_MODEL", chat.DefaultModelName),
		LedgerBackend:      strings.ToLower(logging.EnvOrDefault("TRYON_LEDGER_BACKEND", BackendFile)),
		LedgerPath:         logging.EnvOrDefault("TRYON_LEDGER_PATH", DefaultLedgerPath),
		LedgerSQLitePath:   logging.EnvOrDefault("TRYON_LEDGER_SQLITE_PATH", DefaultLedgerSQLitePath),
		LedgerTable:        os.Getenv("TRYON_LEDGER_TABLE"),
		LedgerBucket:       os.Getenv("TRYON_LEDGER_BUCKET"),
		LedgerKey:          logging.EnvOrDefault("TRYON_LEDGER_KEY", DefaultLedgerKey),
		LedgerName:         logging.EnvOrDefault("TRYON_LEDGER_NAME", DefaultLedgerName),
		RedisAddr:          os.Getenv("TRYON_REDIS_ADDR"),
		RedisPassword:      os.Getenv("TRYON_REDIS_PASSWORD"),
		RedisKey:           logging.EnvOrDefault("TRYON_REDIS_KEY", DefaultRedisKey),
		PricingFile:        os.Getenv("TRYON_PRICING_FILE"),
		SSMAPIKeyParam:     logging.EnvOrDefault("SSM_API_KEY_PARAM", DefaultSSMAPIKeyParam),
		OriginVerifySecret: os.Getenv("ORIGIN_VERIFY_SECRET"),
	}

	port, err := strconv.Atoi(logging.EnvOrDefault("TRYON_PORT", strconv.Itoa(DefaultPort)))
	if err != nil {
		return cfg, fmt.Errorf("TRYON_PORT: %w", err)
	}
	cfg.Port = port

	if cfg.GenerationTimeout, err = durationEnv("TRYON_GENERATION_TIMEOUT", DefaultGenerationTimeout); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = durationEnv("TRYON_SESSION_TTL", workflow.DefaultSessionTTL); err != nil {
		return cfg, err
	}

	for _, o := range strings.Split(os.Getenv("TRYON_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	cfg.Pricing = usage.DefaultPricing()
	if cfg.PricingFile != "" {
		p, err := usage.LoadPricingFile(cfg.PricingFile)
		if err != nil {
			return cfg, err
		}
		cfg.Pricing = p
	}

	return cfg, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive (got %s)", name, v)
	}
	return d, nil
}

// Validate checks the ledger backend settings and pricing. It does not
// require an API key; the binaries that call the model check that.
func (c Config) Validate() error {
	switch c.LedgerBackend {
	case BackendFile:
		if c.LedgerPath == "" {
			return errors.New("TRYON_LEDGER_PATH is required for the file ledger")
		}
	case BackendSQLite:
		if c.LedgerSQLitePath == "" {
			return errors.New("TRYON_LEDGER_SQLITE_PATH is required for the sqlite ledger")
		}
	case BackendDynamoDB:
		if c.LedgerTable == "" {
			return errors.New("TRYON_LEDGER_TABLE is required for the dynamodb ledger")
		}
	case BackendS3:
		if c.LedgerBucket == "" {
			return errors.New("TRYON_LEDGER_BUCKET is required for the s3 ledger")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("TRYON_REDIS_ADDR is required for the redis ledger")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown ledger backend %q: must be one of file, sqlite, dynamodb, s3, redis, memory", c.LedgerBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return c.Pricing.Validate()
}

// NeedsAWS reports whether the ledger backend requires AWS credentials.
func (c Config) NeedsAWS() bool {
	return c.LedgerBackend == BackendDynamoDB || c.LedgerBackend == BackendS3
}
