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
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	FeatureFlags FeatureFlagsConfig
	Shipping     ShippingConfig
	Shippo       ShippoConfig
	ShipEngine   ShipEngineConfig
	ShipStation  ShipStationConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	LabelProxy   LabelProxyConfig
	Webhooks     WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Shipping.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	PublicURL    string `envconfig:"STOREFRONT_APP_PUBLIC_URL"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogNoColor   bool   `envconfig:"STOREFRONT_LOG_NO_COLOR" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"require"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// AuthConfig holds the verification settings for access tokens minted by the
// hosted auth backend.
type AuthConfig struct {
	JWTSecret string `envconfig:"STOREFRONT_AUTH_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"STOREFRONT_AUTH_JWT_ISSUER"`
	Audience  string `envconfig:"STOREFRONT_AUTH_JWT_AUDIENCE" default:"authenticated"`
	AdminRole string `envconfig:"STOREFRONT_AUTH_ADMIN_ROLE" default:"admin"`
}

type FeatureFlagsConfig struct {
	UseSQLite                  bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate                bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	EnforcePurchaseIdempotency bool `envconfig:"STOREFRONT_FEATURE_ENFORCE_PURCHASE_IDEMPOTENCY" default:"false"`
	SendShipmentConfirmation   bool `envconfig:"STOREFRONT_FEATURE_SHIPMENT_EMAIL" default:"true"`
}

type ShippingConfig struct {
	Provider            string        `envconfig:"STOREFRONT_SHIPPING_PROVIDER" default:"shippo"`
	DefaultItemWeightG  int           `envconfig:"STOREFRONT_SHIPPING_DEFAULT_ITEM_WEIGHT_G" default:"200"`
	LabelPollAttempts   int           `envconfig:"STOREFRONT_SHIPPING_LABEL_POLL_ATTEMPTS" default:"6"`
	LabelPollInterval   time.Duration `envconfig:"STOREFRONT_SHIPPING_LABEL_POLL_INTERVAL" default:"750ms"`
	LabelFileType       string        `envconfig:"STOREFRONT_SHIPPING_LABEL_FILE_TYPE" default:"PDF"`
	IdempotencyTTL      time.Duration `envconfig:"STOREFRONT_SHIPPING_IDEMPOTENCY_TTL" default:"24h"`
	CarrierTimeout      time.Duration `envconfig:"STOREFRONT_SHIPPING_CARRIER_TIMEOUT" default:"20s"`
	BreakerMaxFailures  uint32        `envconfig:"STOREFRONT_SHIPPING_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenDuration time.Duration `envconfig:"STOREFRONT_SHIPPING_BREAKER_OPEN_DURATION" default:"30s"`
}

func (s ShippingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderShippo, ProviderShipEngine, ProviderShipStation:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvShippingProvider, ProviderShippo, ProviderShipEngine, ProviderShipStation)
	}
	if s.DefaultItemWeightG <= 0 {
		return fmt.Errorf("%s must be positive", EnvShippingDefaultItemWeight)
	}
	if s.LabelPollAttempts < 0 {
		return fmt.Errorf("%s must be non-negative", EnvShippingLabelPollAttempts)
	}
	return nil
}

// ProviderName returns the normalized carrier backend name.
func (s ShippingConfig) ProviderName() string {
	return strings.ToLower(strings.TrimSpace(s.Provider))
}

type ShippoConfig struct {
	LiveToken string `envconfig:"STOREFRONT_SHIPPO_LIVE_TOKEN"`
	TestToken string `envconfig:"STOREFRONT_SHIPPO_TEST_TOKEN"`
	BaseURL   string `envconfig:"STOREFRONT_SHIPPO_BASE_URL" default:"https://api.goshippo.com"`
}

type ShipEngineConfig struct {
	LiveAPIKey string `envconfig:"STOREFRONT_SHIPENGINE_LIVE_API_KEY"`
	TestAPIKey string `envconfig:"STOREFRONT_SHIPENGINE_TEST_API_KEY"`
	BaseURL    string `envconfig:"STOREFRONT_SHIPENGINE_BASE_URL" default:"https://api.shipengine.com"`
	CarrierIDs string `envconfig:"STOREFRONT_SHIPENGINE_CARRIER_IDS"`
}

// CarrierIDList splits the comma separated carrier id configuration.
func (s ShipEngineConfig) CarrierIDList() []string {
	return splitList(s.CarrierIDs)
}

type ShipStationConfig struct {
	APIKey       string `envconfig:"STOREFRONT_SHIPSTATION_API_KEY"`
	APISecret    string `envconfig:"STOREFRONT_SHIPSTATION_API_SECRET"`
	BaseURL      string `envconfig:"STOREFRONT_SHIPSTATION_BASE_URL" default:"https://ssapi.shipstation.com"`
	CarrierCodes string `envconfig:"STOREFRONT_SHIPSTATION_CARRIER_CODES" default:"stamps_com"`
}

// CarrierCodeList splits the comma separated carrier code configuration.
func (s ShipStationConfig) CarrierCodeList() []string {
	return splitList(s.CarrierCodes)
}

type StripeConfig struct {
	Secret    string        `envconfig:"STOREFRONT_STRIPE_WEBHOOK_SECRET"`
	Env       string        `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	Tolerance time.Duration `envconfig:"STOREFRONT_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"STOREFRONT_SENDGRID_FROM_NAME" default:"Orders"`
}

type LabelProxyConfig struct {
	AllowedHosts string        `envconfig:"STOREFRONT_LABEL_PROXY_ALLOWED_HOSTS" default:"*.goshippo.com,shippo-delivery-east.s3.amazonaws.com,*.shipengine.com,*.shipstation.com,*.amazonaws.com"`
	MaxBytes     int64         `envconfig:"STOREFRONT_LABEL_PROXY_MAX_BYTES" default:"10485760"`
	Timeout      time.Duration `envconfig:"STOREFRONT_LABEL_PROXY_TIMEOUT" default:"15s"`
}

// AllowedHostList splits the comma separated allow-list.
func (l LabelProxyConfig) AllowedHostList() []string {
	return splitList(l.AllowedHosts)
}

type WebhooksConfig struct {
	ShippingSecret string `envconfig:"STOREFRONT_WEBHOOK_SHIPPING_SECRET"`
	ShippingSource string `envconfig:"STOREFRONT_WEBHOOK_SHIPPING_SOURCE"`
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		if strings.TrimSpace(db.SQLitePath) == "" {
			return fmt.Errorf("%s is required when %s is set", EnvSQLitePath, EnvUseSQLite)
		}
		db.Driver = DriverSQLite
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
