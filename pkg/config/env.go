package config

const (
	EnvPrefix = "PLANTOMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PLANTOMART_APP_ENV"
	EnvPort     = "PLANTOMART_APP_PORT"
	EnvLogLevel = "PLANTOMART_LOG_LEVEL"

	EnvDBDSN      = "PLANTOMART_DB_DSN"
	EnvDBDriver   = "PLANTOMART_DB_DRIVER"
	EnvDBHost     = "PLANTOMART_DB_HOST"
	EnvDBPort     = "PLANTOMART_DB_PORT"
	EnvDBUser     = "PLANTOMART_DB_USER"
	EnvDBPassword = "PLANTOMART_DB_PASSWORD"
	EnvDBName     = "PLANTOMART_DB_NAME"
	EnvDBSSLMode  = "PLANTOMART_DB_SSLMODE"

	EnvRedisURL = "PLANTOMART_REDIS_URL"

	EnvJWTSecret = "PLANTOMART_JWT_SECRET"
	EnvJWTIssuer = "PLANTOMART_JWT_ISSUER"

	EnvUseSQLite    = "PLANTOMART_USE_SQLITE"
	EnvStrictTotals = "PLANTOMART_ORDERS_STRICT_TOTALS"

	EnvRazorpayKeyID     = "PLANTOMART_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "PLANTOMART_RAZORPAY_KEY_SECRET"

	EnvCheckoutStepTimeout = "PLANTOMART_CHECKOUT_STEP_TIMEOUT"

	EnvGCPProjectID      = "PLANTOMART_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "PLANTOMART_PUBSUB_ORDERS_TOPIC"
)

// legacyDBEnvVars must all be present when no DSN is supplied.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
