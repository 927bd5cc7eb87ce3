package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
	Kafka        KafkaConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Tickets      TicketsConfig
	Cron         CronConfig
}

// Load reads STOREFRONT_* variables and reports every invalid section at
// once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var dbErr error
	if c.FeatureFlags.UseSQLite {
		c.DB.Driver = "sqlite"
	} else {
		dbErr = c.DB.ensureDSN()
	}
	var brokerErr error
	switch c.Outbox.BrokerKind() {
	case OutboxBrokerPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			brokerErr = fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvOutboxBroker, OutboxBrokerPubSub)
		}
	case OutboxBrokerKafka:
		if len(c.Kafka.Brokers) == 0 {
			brokerErr = fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvOutboxBroker, OutboxBrokerKafka)
		}
	}
	return multierr.Combine(dbErr, c.Payments.validate(), c.Outbox.validate(), brokerErr)
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	PublicURL    string   `envconfig:"STOREFRONT_PUBLIC_URL" default:"http://localhost:3000"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`

	VerifyRateLimit  int           `envconfig:"STOREFRONT_VERIFY_RATE_LIMIT" default:"30"`
	VerifyRateWindow time.Duration `envconfig:"STOREFRONT_VERIFY_RATE_WINDOW" default:"1m"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements that take longer than this; zero disables it.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// PaymentsConfig drives the payment reconciler. BypassGateway must be set
// explicitly; it is never inferred from the shape of the secret key.
type PaymentsConfig struct {
	GatewayBaseURL   string        `envconfig:"STOREFRONT_GATEWAY_BASE_URL" default:"https://api.paystack.co"`
	GatewaySecretKey string        `envconfig:"STOREFRONT_GATEWAY_SECRET_KEY"`
	CallbackURL      string        `envconfig:"STOREFRONT_GATEWAY_CALLBACK_URL" default:"http://localhost:3000/checkout/verify"`
	BypassGateway    bool          `envconfig:"STOREFRONT_PAYMENTS_BYPASS_GATEWAY" default:"false"`
	InitTimeout      time.Duration `envconfig:"STOREFRONT_GATEWAY_INIT_TIMEOUT" default:"15s"`
	VerifyTimeout    time.Duration `envconfig:"STOREFRONT_GATEWAY_VERIFY_TIMEOUT" default:"15s"`
	VerifyRetries    uint64        `envconfig:"STOREFRONT_GATEWAY_VERIFY_RETRIES" default:"1"`
	PendingTTL       time.Duration `envconfig:"STOREFRONT_PAYMENTS_PENDING_TTL" default:"24h"`
}

func (p PaymentsConfig) validate() error {
	if p.BypassGateway {
		return nil
	}
	if strings.TrimSpace(p.GatewaySecretKey) == "" {
		return fmt.Errorf("%s is required unless %s=true", EnvGatewaySecretKey, EnvBypassGateway)
	}
	if _, err := url.Parse(p.GatewayBaseURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvGatewayBaseURL, err)
	}
	return nil
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

const (
	OutboxBrokerNone   = "none"
	OutboxBrokerKafka  = "kafka"
	OutboxBrokerPubSub = "pubsub"
)

type OutboxConfig struct {
	BatchSize      int    `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Broker         string `envconfig:"STOREFRONT_OUTBOX_BROKER" default:"none"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Broker)) {
	case "", OutboxBrokerNone, OutboxBrokerKafka, OutboxBrokerPubSub:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvOutboxBroker, o.Broker)
	}
}

// BrokerKind returns the normalized broker selection.
func (o OutboxConfig) BrokerKind() string {
	kind := strings.ToLower(strings.TrimSpace(o.Broker))
	if kind == "" {
		return OutboxBrokerNone
	}
	return kind
}

type KafkaConfig struct {
	Brokers  []string `envconfig:"STOREFRONT_KAFKA_BROKERS" default:"localhost:9092"`
	Topic    string   `envconfig:"STOREFRONT_KAFKA_TOPIC" default:"storefront.order-events"`
	Username string   `envconfig:"STOREFRONT_KAFKA_USERNAME"`
	Password string   `envconfig:"STOREFRONT_KAFKA_PASSWORD"`
	GroupID  string   `envconfig:"STOREFRONT_KAFKA_GROUP_ID" default:"storefront-notifier"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_TOPIC" default:"storefront-order-events"`
	DomainSubscription string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_SUBSCRIPTION" default:"storefront-order-events-notifier"`
}

type TicketsConfig struct {
	AutoCloseAfter time.Duration `envconfig:"STOREFRONT_TICKET_AUTO_CLOSE_AFTER" default:"5m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1m"`
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
