package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "AQUAFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvDBDSN  = "AQUAFLOW_DB_DSN"
	EnvDBHost = "AQUAFLOW_DB_HOST"
	EnvDBUser = "AQUAFLOW_DB_USER"
	EnvDBName = "AQUAFLOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Razorpay     RazorpayConfig
	Cron         CronConfig
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
	Env          string `envconfig:"AQUAFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"AQUAFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AQUAFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AQUAFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"AQUAFLOW_DB_DSN"`

	LegacyHost     string `envconfig:"AQUAFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"AQUAFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AQUAFLOW_DB_USER"`
	LegacyPassword string `envconfig:"AQUAFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"AQUAFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"AQUAFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AQUAFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AQUAFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AQUAFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AQUAFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AQUAFLOW_REDIS_URL"`
	Address      string        `envconfig:"AQUAFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"AQUAFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"AQUAFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AQUAFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AQUAFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AQUAFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AQUAFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AQUAFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AQUAFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AQUAFLOW_JWT_ISSUER" default:"aquaflow"`
	ExpirationMinutes int    `envconfig:"AQUAFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RazorpayConfig struct {
	Key      string        `envconfig:"AQUAFLOW_RAZORPAY_KEY" required:"true"`
	Secret   string        `envconfig:"AQUAFLOW_RAZORPAY_SECRET" required:"true"`
	Currency string        `envconfig:"AQUAFLOW_RAZORPAY_CURRENCY" default:"INR"`
	Timeout  time.Duration `envconfig:"AQUAFLOW_RAZORPAY_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"AQUAFLOW_CRON_INTERVAL" default:"1h"`
	LockTTL        time.Duration `envconfig:"AQUAFLOW_CRON_LOCK_TTL" default:"55m"`
	RefreshBatch   int           `envconfig:"AQUAFLOW_CRON_REFRESH_BATCH" default:"100"`
	BillingDueSlop time.Duration `envconfig:"AQUAFLOW_CRON_BILLING_DUE_SLOP" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AQUAFLOW_AUTO_MIGRATE" default:"false"`
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
