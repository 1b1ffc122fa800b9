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
	MercadoPago  MercadoPagoConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOJINHA_APP_ENV" required:"true"`
	Port         string `envconfig:"LOJINHA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOJINHA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOJINHA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOJINHA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOJINHA_DB_DSN"`
	Driver string `envconfig:"LOJINHA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOJINHA_DB_HOST"`
	LegacyPort     int    `envconfig:"LOJINHA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOJINHA_DB_USER"`
	LegacyPassword string `envconfig:"LOJINHA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOJINHA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOJINHA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOJINHA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOJINHA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOJINHA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOJINHA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOJINHA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOJINHA_REDIS_ADDR"`
	Password     string        `envconfig:"LOJINHA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOJINHA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOJINHA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOJINHA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOJINHA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOJINHA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOJINHA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LOJINHA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LOJINHA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LOJINHA_JWT_EXPIRATION_MINUTES" required:"true"`
}

type MercadoPagoConfig struct {
	AccessToken    string        `envconfig:"LOJINHA_MERCADOPAGO_ACCESS_TOKEN" required:"true"`
	PublicKey      string        `envconfig:"LOJINHA_MERCADOPAGO_PUBLIC_KEY"`
	BaseURL        string        `envconfig:"LOJINHA_MERCADOPAGO_BASE_URL" default:"https://api.mercadopago.com"`
	RequestTimeout time.Duration `envconfig:"LOJINHA_MERCADOPAGO_REQUEST_TIMEOUT" default:"10s"`
	Sandbox        bool          `envconfig:"LOJINHA_MERCADOPAGO_SANDBOX" default:"true"`
}

type CheckoutConfig struct {
	// Public origin of this service, used to build the gateway's return and
	// notification URLs.
	PublicBaseURL string `envconfig:"LOJINHA_CHECKOUT_PUBLIC_BASE_URL" required:"true"`
	Currency      string `envconfig:"LOJINHA_CHECKOUT_CURRENCY" default:"BRL"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LOJINHA_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOJINHA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOJINHA_AUTO_MIGRATE" default:"false"`
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
