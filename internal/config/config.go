package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// BaseURL is the externally reachable address of this dashboard,
	// used when building links embedded in notification mail.
	BaseURL string

	OTLPEndpoint string

	Marketplace MarketplaceConfig
	Credential  CredentialConfig
	Mail        MailConfig
	RateLimit   RateLimitConfig

	// AdminIdentity is either a full email address or a bare domain.
	// Callers whose email matches exactly, or whose email domain matches,
	// may use the admin dashboard.
	AdminIdentity string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// MarketplaceConfig addresses the upstream fulfillment API.
type MarketplaceConfig struct {
	BaseURL    string
	APIVersion string
}

// CredentialConfig selects how bearer tokens for the upstream API are
// acquired: a client secret or a certificate on disk.
type CredentialConfig struct {
	Kind         string // "client_secret" or "certificate"
	TenantID     string
	ClientID     string
	ClientSecret string
	CertFile     string
	CertKeyFile  string
	TokenURL     string
	Scope        string
}

// MailConfig configures the SMTP notifier.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AdminEmail   string
}

// RateLimitConfig throttles the unauthenticated webhook endpoint when
// a Redis backend is available.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WebhookRate  float64
	WebhookBurst int
}

const (
	CredentialKindClientSecret = "client_secret"
	CredentialKindCertificate  = "certificate"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "marketfill"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		BaseURL:  strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		Marketplace: MarketplaceConfig{
			BaseURL:    strings.TrimRight(getenv("MARKETPLACE_API_BASE_URL", "https://marketplaceapi.example.com"), "/"),
			APIVersion: getenv("MARKETPLACE_API_VERSION", "2018-09-15"),
		},
		Credential: CredentialConfig{
			Kind:         normalizeCredentialKind(getenv("MARKETPLACE_CREDENTIAL_KIND", CredentialKindClientSecret)),
			TenantID:     strings.TrimSpace(getenv("MARKETPLACE_TENANT_ID", "")),
			ClientID:     strings.TrimSpace(getenv("MARKETPLACE_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("MARKETPLACE_CLIENT_SECRET", "")),
			CertFile:     strings.TrimSpace(getenv("MARKETPLACE_CERT_FILE", "")),
			CertKeyFile:  strings.TrimSpace(getenv("MARKETPLACE_CERT_KEY_FILE", "")),
			TokenURL:     strings.TrimSpace(getenv("MARKETPLACE_TOKEN_URL", "")),
			Scope:        strings.TrimSpace(getenv("MARKETPLACE_TOKEN_SCOPE", "")),
		},
		Mail: MailConfig{
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "dashboard@marketfill.local"),
			AdminEmail:   getenv("MAIL_ADMIN_EMAIL", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       int(getenvInt64("RATE_LIMIT_REDIS_DB", 0)),
			WebhookRate:   getenvFloat64("RATE_LIMIT_WEBHOOK_RATE", 10),
			WebhookBurst:  int(getenvInt64("RATE_LIMIT_WEBHOOK_BURST", 30)),
		},

		AdminIdentity: strings.ToLower(strings.TrimSpace(getenv("DASHBOARD_ADMIN", ""))),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "marketfill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),
	}
}

func normalizeCredentialKind(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CredentialKindCertificate:
		return CredentialKindCertificate
	default:
		return CredentialKindClientSecret
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat64(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load, NewDashboardHolder),
)
