package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = "NANOCART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv              = "NANOCART_APP_ENV"
	EnvPort                = "NANOCART_APP_PORT"
	EnvLogLevel            = "NANOCART_LOG_LEVEL"
	EnvLogFormat           = "NANOCART_LOG_FORMAT"
	EnvDBDSN               = "NANOCART_DB_DSN"
	EnvDBHost              = "NANOCART_DB_HOST"
	EnvDBUser              = "NANOCART_DB_USER"
	EnvDBName              = "NANOCART_DB_NAME"
	EnvRedisURL            = "NANOCART_REDIS_URL"
	EnvJWTSecret           = "NANOCART_JWT_SECRET"
	EnvJWTIssuer           = "NANOCART_JWT_ISSUER"
	EnvGatewayBaseURL      = "NANOCART_GATEWAY_BASE_URL"
	EnvGatewayKeyID        = "NANOCART_GATEWAY_KEY_ID"
	EnvGatewaySecret       = "NANOCART_GATEWAY_SECRET"
	EnvGatewayTimeout      = "NANOCART_GATEWAY_TIMEOUT"
	EnvSagaPaymentExpiry   = "NANOCART_SAGA_PAYMENT_EXPIRY"
	EnvGCPProjectID        = "NANOCART_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic   = "NANOCART_PUBSUB_ORDERS_TOPIC"
	EnvOutboxBatchSize     = "NANOCART_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvCronLockTTL         = "NANOCART_CRON_LOCK_TTL"
	EnvFeatureAutoMigrate  = "NANOCART_AUTO_MIGRATE"
	EnvFeatureUseSQLite    = "NANOCART_USE_SQLITE"
	EnvGatewayWebhookToken = "NANOCART_GATEWAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
