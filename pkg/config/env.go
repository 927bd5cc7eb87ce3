package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"
	EnvLogLvl = "STOREFRONT_LOG_LEVEL"
	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvGatewayBaseURL   = "STOREFRONT_GATEWAY_BASE_URL"
	EnvGatewaySecretKey = "STOREFRONT_GATEWAY_SECRET_KEY"
	EnvGatewayCallback  = "STOREFRONT_GATEWAY_CALLBACK_URL"
	EnvBypassGateway    = "STOREFRONT_PAYMENTS_BYPASS_GATEWAY"

	EnvOutboxBroker = "STOREFRONT_OUTBOX_BROKER"
	EnvKafkaBrokers = "STOREFRONT_KAFKA_BROKERS"
	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubTopic  = "STOREFRONT_PUBSUB_DOMAIN_TOPIC"

	EnvTicketAutoClose = "STOREFRONT_TICKET_AUTO_CLOSE_AFTER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
