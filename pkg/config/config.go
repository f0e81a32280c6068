package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Orders         OrdersConfig
	Checkout       CheckoutConfig
	Razorpay       RazorpayConfig
	Reconciliation ReconciliationConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
	Maintenance    MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLANTOMART_APP_ENV" required:"true"`
	Port         string `envconfig:"PLANTOMART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PLANTOMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLANTOMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PLANTOMART_SERVICE_KIND" default:"api"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN    string `envconfig:"PLANTOMART_DB_DSN"`
	Driver string `envconfig:"PLANTOMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLANTOMART_DB_HOST"`
	LegacyPort     int    `envconfig:"PLANTOMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLANTOMART_DB_USER"`
	LegacyPassword string `envconfig:"PLANTOMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLANTOMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLANTOMART_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PLANTOMART_DB_SQLITE_PATH" default:"plantomart.db"`

	MaxOpenConns    int           `envconfig:"PLANTOMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLANTOMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLANTOMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLANTOMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery logs statements that take longer at warn level. Zero disables it.
	SlowQuery time.Duration `envconfig:"PLANTOMART_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLANTOMART_REDIS_URL"`
	Address      string        `envconfig:"PLANTOMART_REDIS_ADDR"`
	Password     string        `envconfig:"PLANTOMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLANTOMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLANTOMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLANTOMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLANTOMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLANTOMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLANTOMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"PLANTOMART_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PLANTOMART_JWT_ISSUER" default:"plantomart"`
	// ExpirationMinutes only matters for tokens minted by local tooling.
	ExpirationMinutes int `envconfig:"PLANTOMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PLANTOMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PLANTOMART_AUTO_MIGRATE" default:"false"`
}

type OrdersConfig struct {
	DefaultCurrency string `envconfig:"PLANTOMART_ORDERS_DEFAULT_CURRENCY" default:"INR"`
	StrictTotals    bool   `envconfig:"PLANTOMART_ORDERS_STRICT_TOTALS" default:"false"`
	PageLimit       int    `envconfig:"PLANTOMART_ORDERS_PAGE_LIMIT" default:"20"`
	MaxPageLimit    int    `envconfig:"PLANTOMART_ORDERS_MAX_PAGE_LIMIT" default:"100"`
}

type CheckoutConfig struct {
	StepTimeout    time.Duration `envconfig:"PLANTOMART_CHECKOUT_STEP_TIMEOUT" default:"30s"`
	SessionTTL     time.Duration `envconfig:"PLANTOMART_CHECKOUT_SESSION_TTL" default:"24h"`
	APIBaseURL     string        `envconfig:"PLANTOMART_CHECKOUT_API_BASE_URL" default:"http://localhost:8080"`
	PaymentMethod  string        `envconfig:"PLANTOMART_CHECKOUT_PAYMENT_METHOD" default:"razorpay"`
	SupportContact string        `envconfig:"PLANTOMART_CHECKOUT_SUPPORT_CONTACT" default:"support@plantomart.com"`
}

type RazorpayConfig struct {
	BaseURL   string        `envconfig:"PLANTOMART_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	KeyID     string        `envconfig:"PLANTOMART_RAZORPAY_KEY_ID"`
	KeySecret string        `envconfig:"PLANTOMART_RAZORPAY_KEY_SECRET"`
	Timeout   time.Duration `envconfig:"PLANTOMART_RAZORPAY_TIMEOUT" default:"15s"`
}

// Enabled reports whether both API credentials are configured.
func (r RazorpayConfig) Enabled() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type ReconciliationConfig struct {
	BlockTimeout time.Duration `envconfig:"PLANTOMART_RECONCILIATION_BLOCK_TIMEOUT" default:"5s"`
	MaxAttempts  int           `envconfig:"PLANTOMART_RECONCILIATION_MAX_ATTEMPTS" default:"5"`
	RetryDelay   time.Duration `envconfig:"PLANTOMART_RECONCILIATION_RETRY_DELAY" default:"30s"`
}

type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"PLANTOMART_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int           `envconfig:"PLANTOMART_RATE_LIMIT_PAYMENT_LIMIT" default:"30"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PLANTOMART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PLANTOMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"PLANTOMART_PUBSUB_ORDERS_TOPIC" default:"pm-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLANTOMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLANTOMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLANTOMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"PLANTOMART_MAINTENANCE_INTERVAL" default:"1h"`
	OutboxRetention     time.Duration `envconfig:"PLANTOMART_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
	ReconciliationAlert int64         `envconfig:"PLANTOMART_MAINTENANCE_RECONCILIATION_ALERT" default:"25"`
}

func (db *DBConfig) ensureDSN() error {
	if strings.EqualFold(db.Driver, DriverSQLite) {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
