package config

// EnvPrefix is passed to envconfig; every field carries its full key.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	ProviderShippo      = "shippo"
	ProviderShipEngine  = "shipengine"
	ProviderShipStation = "shipstation"
)

const (
	EnvAppEnv  = "STOREFRONT_APP_ENV"
	EnvAppPort = "STOREFRONT_APP_PORT"

	EnvDBDSN      = "STOREFRONT_DB_DSN"
	EnvDBHost     = "STOREFRONT_DB_HOST"
	EnvDBUser     = "STOREFRONT_DB_USER"
	EnvDBName     = "STOREFRONT_DB_NAME"
	EnvUseSQLite  = "STOREFRONT_USE_SQLITE"
	EnvSQLitePath = "STOREFRONT_SQLITE_PATH"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvAuthJWTSecret = "STOREFRONT_AUTH_JWT_SECRET"

	EnvShippingProvider           = "STOREFRONT_SHIPPING_PROVIDER"
	EnvShippingDefaultItemWeight  = "STOREFRONT_SHIPPING_DEFAULT_ITEM_WEIGHT_G"
	EnvShippingLabelPollAttempts  = "STOREFRONT_SHIPPING_LABEL_POLL_ATTEMPTS"
	EnvShippingLabelPollInterval  = "STOREFRONT_SHIPPING_LABEL_POLL_INTERVAL"
	EnvEnforcePurchaseIdempotency = "STOREFRONT_FEATURE_ENFORCE_PURCHASE_IDEMPOTENCY"

	EnvShippoLiveToken = "STOREFRONT_SHIPPO_LIVE_TOKEN"
	EnvShippoTestToken = "STOREFRONT_SHIPPO_TEST_TOKEN"

	EnvLabelProxyAllowedHosts = "STOREFRONT_LABEL_PROXY_ALLOWED_HOSTS"
	EnvWebhookShippingSecret  = "STOREFRONT_WEBHOOK_SHIPPING_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
