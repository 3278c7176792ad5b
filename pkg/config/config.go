package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "vouchers"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VOUCHERS_DB_DSN"
	EnvDBHost = "VOUCHERS_DB_HOST"
	EnvDBUser = "VOUCHERS_DB_USER"
	EnvDBName = "VOUCHERS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	IdP           IdPConfig
	AuthCookies   AuthCookiesConfig
	AuthRateLimit AuthRateLimitConfig
	Storage       StorageConfig
	Artifact      ArtifactConfig
	Email         EmailConfig
	Vouchers      VouchersConfig
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
	if err := cfg.Vouchers.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VOUCHERS_APP_ENV" required:"true"`
	Port         string `envconfig:"VOUCHERS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VOUCHERS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VOUCHERS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VOUCHERS_DB_DSN"`
	Driver string `envconfig:"VOUCHERS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VOUCHERS_DB_HOST"`
	LegacyPort     int    `envconfig:"VOUCHERS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VOUCHERS_DB_USER"`
	LegacyPassword string `envconfig:"VOUCHERS_DB_PASSWORD"`
	LegacyName     string `envconfig:"VOUCHERS_DB_NAME"`
	LegacySSLMode  string `envconfig:"VOUCHERS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VOUCHERS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VOUCHERS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VOUCHERS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VOUCHERS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VOUCHERS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VOUCHERS_REDIS_ADDR"`
	Password     string        `envconfig:"VOUCHERS_REDIS_PASSWORD"`
	DB           int           `envconfig:"VOUCHERS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VOUCHERS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VOUCHERS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VOUCHERS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VOUCHERS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VOUCHERS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IdPConfig points at the managed identity provider that owns user accounts,
// token issuance, and the published verification key set.
type IdPConfig struct {
	Region        string        `envconfig:"VOUCHERS_IDP_REGION" required:"true"`
	ClientID      string        `envconfig:"VOUCHERS_IDP_CLIENT_ID" required:"true"`
	ClientSecret  string        `envconfig:"VOUCHERS_IDP_CLIENT_SECRET" required:"true"`
	UserPoolID    string        `envconfig:"VOUCHERS_IDP_USER_POOL_ID" required:"true"`
	KeySetURL     string        `envconfig:"VOUCHERS_IDP_KEYS_URL" required:"true"`
	KeySetTTL     time.Duration `envconfig:"VOUCHERS_IDP_KEYS_TTL" default:"15m"`
	AdminGroup    string        `envconfig:"VOUCHERS_IDP_ADMIN_GROUP" default:"admin"`
	EndpointURL   string        `envconfig:"VOUCHERS_IDP_ENDPOINT"`
	ClientTimeout time.Duration `envconfig:"VOUCHERS_IDP_TIMEOUT" default:"10s"`
}

// Issuer returns the expected token issuer for the configured user pool.
func (i IdPConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", i.Region, i.UserPoolID)
}

// Endpoint returns the provider API endpoint, defaulting to the regional one.
func (i IdPConfig) Endpoint() string {
	if i.EndpointURL != "" {
		return i.EndpointURL
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com", i.Region)
}

// AuthCookiesConfig controls whether issued tokens are mirrored into
// short-lived cookies alongside the response body.
type AuthCookiesConfig struct {
	Enabled bool   `envconfig:"VOUCHERS_AUTH_COOKIE_MODE" default:"false"`
	Domain  string `envconfig:"VOUCHERS_AUTH_COOKIE_DOMAIN"`
	Secure  bool   `envconfig:"VOUCHERS_AUTH_COOKIE_SECURE" default:"true"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"VOUCHERS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"VOUCHERS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"VOUCHERS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type StorageConfig struct {
	BucketName     string        `envconfig:"VOUCHERS_STORAGE_BUCKET" required:"true"`
	TemplateObject string        `envconfig:"VOUCHERS_STORAGE_TEMPLATE_OBJECT" default:"templates/voucher-template.jpg"`
	ReadTimeout    time.Duration `envconfig:"VOUCHERS_STORAGE_READ_TIMEOUT" default:"10s"`

	CredentialsJSON        string `envconfig:"VOUCHERS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VOUCHERS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type ArtifactConfig struct {
	Format   string `envconfig:"VOUCHERS_ARTIFACT_FORMAT" default:"jpeg"`
	Filename string `envconfig:"VOUCHERS_ARTIFACT_FILENAME" default:"voucher"`
}

type EmailConfig struct {
	SMTPHost  string `envconfig:"VOUCHERS_EMAIL_SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort  int    `envconfig:"VOUCHERS_EMAIL_SMTP_PORT" default:"587"`
	Address   string `envconfig:"VOUCHERS_EMAIL_ADDRESS"`
	Password  string `envconfig:"VOUCHERS_EMAIL_PASSWORD"`
	Recipient string `envconfig:"VOUCHERS_EMAIL_RECIPIENT"`
}

// Enabled reports whether artifact dispatch should happen after creation.
func (e EmailConfig) Enabled() bool {
	return e.Address != "" && e.Recipient != ""
}

type VouchersConfig struct {
	ConflictStatus int `envconfig:"VOUCHERS_CLAIM_CONFLICT_STATUS" default:"409"`
}

func (v VouchersConfig) validate() error {
	if v.ConflictStatus != http.StatusConflict && v.ConflictStatus != http.StatusBadRequest {
		return fmt.Errorf("claim conflict status must be 400 or 409, got %d", v.ConflictStatus)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VOUCHERS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VOUCHERS_AUTO_MIGRATE" default:"false"`
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
