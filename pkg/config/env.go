package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBPass   = "STOREFRONT_DB_PASSWORD"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvSquareAccessToken = "STOREFRONT_SQUARE_ACCESS_TOKEN"
	EnvSquareEnv         = "STOREFRONT_SQUARE_ENV"
	EnvSquareCurrency    = "STOREFRONT_SQUARE_CURRENCY"

	EnvUseSQLite = "STOREFRONT_USE_SQLITE"

	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvOutboxMaxAttempts = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxPoll        = "STOREFRONT_OUTBOX_PUBLISH_POLL"
	EnvLogFormat         = "STOREFRONT_LOG_FORMAT"
)
