// Package config loads process settings from STOREFRONT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Square       SquareConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

// Load reads the environment, derives the database DSN when only discrete
// connection settings are given, and checks value ranges.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := check(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func check(cfg *Config) error {
	err := validator.New().Struct(cfg)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

type AppConfig struct {
	Env            string        `envconfig:"STOREFRONT_APP_ENV" required:"true" validate:"required"`
	Port           string        `envconfig:"STOREFRONT_APP_PORT" required:"true" validate:"numeric"`
	LogLevel       string        `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack   bool          `envconfig:"STOREFRONT_LOG_WARN_STACK"`
	LogFormat      string        `envconfig:"STOREFRONT_LOG_FORMAT" default:"json" validate:"oneof=json console"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig takes either a full DSN or discrete Postgres settings.
type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres" validate:"oneof=postgres sqlite"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20" validate:"gte=0"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10" validate:"gte=0"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) resolveDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Driver == "sqlite" {
		return fmt.Errorf("%s is required for sqlite", EnvDBDSN)
	}
	var missing []string
	for env, v := range map[string]string{EnvDBHost: d.Host, EnvDBUser: d.User, EnvDBName: d.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(d.User),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	d.DSN = u.String()
	return nil
}

// RedisConfig is only read when idempotent replay is enabled.
type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" validate:"gte=0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the bearer tokens issued by the storefront auth service.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	Audience          string `envconfig:"STOREFRONT_JWT_AUDIENCE" default:"authenticated"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60" validate:"gt=0"`
}

// SquareConfig carries the payment gateway credentials. Refunds are
// disabled when no access token is set.
type SquareConfig struct {
	AccessToken string        `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	Env         string        `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	Currency    string        `envconfig:"STOREFRONT_SQUARE_CURRENCY" default:"INR" validate:"len=3"`
	Timeout     time.Duration `envconfig:"STOREFRONT_SQUARE_TIMEOUT" default:"15s"`
}

// Environment is "sandbox" or "production"; anything else is passed through
// lower-cased for the client to reject.
func (s SquareConfig) Environment() string {
	if env := strings.ToLower(strings.TrimSpace(s.Env)); env != "" {
		return env
	}
	return "sandbox"
}

func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"STOREFRONT_USE_SQLITE"`
	AutoMigrate    bool `envconfig:"STOREFRONT_AUTO_MIGRATE"`
	IdempotentAPIs bool `envconfig:"STOREFRONT_FEATURE_IDEMPOTENT_APIS" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50" validate:"gte=0"`
	PollInterval time.Duration `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL" default:"500ms"`
	MaxAttempts  int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10" validate:"gte=0"`
	MetricsAddr  string        `envconfig:"STOREFRONT_OUTBOX_METRICS_ADDR"`
}
