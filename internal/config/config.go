package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"

	env "github.com/Skotchmaster/storefront/pkg/config"
)

const (
	DefaultRemoteBase = "http://127.0.0.1:1880"

	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	RemoteBase      string
	RemoteTimeout   time.Duration
	OrderWebhookURL string

	StoreDriver string
	StoreDSN    string
	RedisURL    string

	JWTSecret  []byte
	SessionTTL time.Duration
	IdleTTL    time.Duration

	AuthLatency  time.Duration
	PaymentDelay float64

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	CSRFEnabled bool
	CORSOrigins []string
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		slog.Debug("env_file_not_loaded", "error", err)
	}

	base := strings.TrimRight(env.EnvDefault("REMOTE_API_BASE", DefaultRemoteBase), "/")

	cfg := Config{
		ServiceName: env.EnvDefault("SERVICE_NAME", "storefront"),
		ServerPort:  env.EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    env.EnvDefault("LOG_LEVEL", "info"),

		RemoteBase:      base,
		RemoteTimeout:   env.EnvDurationDefault("REMOTE_TIMEOUT", 3*time.Second),
		OrderWebhookURL: env.EnvDefault("ORDER_WEBHOOK_URL", base+"/ordine-completato"),

		StoreDriver: strings.ToLower(env.EnvDefault("STORE_DRIVER", DriverSQLite)),
		StoreDSN:    env.EnvDefault("STORE_DSN", "storefront.db"),
		RedisURL:    env.EnvDefault("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:  []byte(env.EnvDefault("JWT_SECRET", "")),
		SessionTTL: env.EnvDurationDefault("SESSION_TTL", 24*time.Hour),
		IdleTTL:    env.EnvDurationDefault("IDLE_TTL", 30*time.Minute),

		AuthLatency:  env.EnvDurationDefault("AUTH_LATENCY", 800*time.Millisecond),
		PaymentDelay: env.EnvFloatDefault("PAYMENT_LATENCY", 1),

		KafkaBrokers: env.CSV(env.EnvDefault("KAFKA_BROKERS", "")),

		ESURL:      env.EnvDefault("ES_URL", ""),
		ESUser:     env.EnvDefault("ES_USER", ""),
		ESPassword: env.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    env.EnvDefault("ES_INDEX", "product"),

		CSRFEnabled: env.EnvBoolDefault("CSRF_ENABLED", false),
		CORSOrigins: env.CSV(env.EnvDefault("CORS_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := env.NonEmptyBytes(c.JWTSecret, "JWT_SECRET"); err != nil {
		return err
	}
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverPostgres {
		if err := env.NonEmpty(c.StoreDSN, "STORE_DSN"); err != nil {
			return err
		}
	}
	if c.IdleTTL < 0 {
		return fmt.Errorf("IDLE_TTL must be >= 0")
	}
	if c.PaymentDelay < 0 {
		return fmt.Errorf("PAYMENT_LATENCY must be >= 0")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
