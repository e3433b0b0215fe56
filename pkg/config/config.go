package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Saga         SagaConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"NANOCART_APP_ENV" required:"true"`
	Port         string   `envconfig:"NANOCART_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"NANOCART_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"NANOCART_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"NANOCART_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"NANOCART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NANOCART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NANOCART_DB_DSN"`
	Driver string `envconfig:"NANOCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NANOCART_DB_HOST"`
	LegacyPort     int    `envconfig:"NANOCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NANOCART_DB_USER"`
	LegacyPassword string `envconfig:"NANOCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"NANOCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"NANOCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NANOCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NANOCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NANOCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NANOCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NANOCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NANOCART_REDIS_ADDR"`
	Password     string        `envconfig:"NANOCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"NANOCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NANOCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NANOCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NANOCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NANOCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NANOCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"NANOCART_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"NANOCART_JWT_ISSUER" required:"true"`
}

// GatewayConfig configures the hosted payment gateway client.
type GatewayConfig struct {
	BaseURL       string        `envconfig:"NANOCART_GATEWAY_BASE_URL" required:"true"`
	KeyID         string        `envconfig:"NANOCART_GATEWAY_KEY_ID" required:"true"`
	Secret        string        `envconfig:"NANOCART_GATEWAY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"NANOCART_GATEWAY_WEBHOOK_SECRET"`
	Currency      string        `envconfig:"NANOCART_GATEWAY_CURRENCY" default:"INR"`
	Timeout       time.Duration `envconfig:"NANOCART_GATEWAY_TIMEOUT" default:"60s"`
	RetryMax      int           `envconfig:"NANOCART_GATEWAY_RETRY_MAX" default:"2"`
	PollInterval  time.Duration `envconfig:"NANOCART_GATEWAY_POLL_INTERVAL" default:"5s"`
	PollAttempts  int           `envconfig:"NANOCART_GATEWAY_POLL_ATTEMPTS" default:"12"`
}

func (g GatewayConfig) validate() error {
	if g.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvGatewayTimeout)
	}
	if g.PollAttempts < 0 {
		return fmt.Errorf("gateway poll attempts must not be negative")
	}
	if _, err := url.ParseRequestURI(g.BaseURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvGatewayBaseURL, err)
	}
	return nil
}

type SagaConfig struct {
	PaymentExpiry       time.Duration `envconfig:"NANOCART_SAGA_PAYMENT_EXPIRY" default:"24h"`
	CompensationRetries int           `envconfig:"NANOCART_SAGA_COMPENSATION_RETRIES" default:"1"`
	PollLookback        time.Duration `envconfig:"NANOCART_SAGA_POLL_LOOKBACK" default:"30m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NANOCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NANOCART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"NANOCART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"NANOCART_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"NANOCART_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"NANOCART_PUBSUB_ORDERS_TOPIC" default:"nc-order-events"`
	WalletTopic string `envconfig:"NANOCART_PUBSUB_WALLET_TOPIC" default:"nc-wallet-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"NANOCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"NANOCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"NANOCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"NANOCART_OUTBOX_RETENTION" default:"168h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"NANOCART_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"NANOCART_CRON_LOCK_TTL" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
