package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Dispatch      DispatchConfig
	Subscriptions SubscriptionsConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"TASKDECK_APP_ENV" required:"true"`
	Port         string `envconfig:"TASKDECK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TASKDECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TASKDECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TASKDECK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TASKDECK_DB_DSN"`
	Driver string `envconfig:"TASKDECK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TASKDECK_DB_HOST"`
	LegacyPort     int    `envconfig:"TASKDECK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TASKDECK_DB_USER"`
	LegacyPassword string `envconfig:"TASKDECK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TASKDECK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TASKDECK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TASKDECK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TASKDECK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TASKDECK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TASKDECK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TASKDECK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TASKDECK_REDIS_ADDR"`
	Password     string        `envconfig:"TASKDECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TASKDECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TASKDECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TASKDECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TASKDECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TASKDECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TASKDECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TASKDECK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TASKDECK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TASKDECK_JWT_EXPIRATION_MINUTES" required:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TASKDECK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TASKDECK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TASKDECK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"TASKDECK_PUBSUB_EVENTS_TOPIC" default:"td-domain-events"`
	EventsSubscription string `envconfig:"TASKDECK_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
}

type DispatchConfig struct {
	MaxAttempts    int           `envconfig:"TASKDECK_DISPATCH_MAX_ATTEMPTS" default:"3"`
	AttemptTimeout time.Duration `envconfig:"TASKDECK_DISPATCH_ATTEMPT_TIMEOUT" default:"15s"`
	QueueWarnDepth int           `envconfig:"TASKDECK_DISPATCH_QUEUE_WARN_DEPTH" default:"1000"`
}

type SubscriptionsConfig struct {
	CacheTTL time.Duration `envconfig:"TASKDECK_SUBSCRIPTIONS_CACHE_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TASKDECK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TASKDECK_AUTO_MIGRATE" default:"false"`
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
