package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// envconfig tags so the prefix only matters for unnamed fields.
const EnvPrefix = "lojinha"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "LOJINHA_APP_ENV"
	EnvPort       = "LOJINHA_APP_PORT"
	EnvDBDSN      = "LOJINHA_DB_DSN"
	EnvDBHost     = "LOJINHA_DB_HOST"
	EnvDBUser     = "LOJINHA_DB_USER"
	EnvDBName     = "LOJINHA_DB_NAME"
	EnvRedisURL   = "LOJINHA_REDIS_URL"
	EnvJWTSecret  = "LOJINHA_JWT_SECRET"
	EnvJWTIssuer  = "LOJINHA_JWT_ISSUER"
	EnvJWTExpMins = "LOJINHA_JWT_EXPIRATION_MINUTES"

	EnvMPAccessToken     = "LOJINHA_MERCADOPAGO_ACCESS_TOKEN"
	EnvCheckoutPublicURL = "LOJINHA_CHECKOUT_PUBLIC_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
