package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds service configuration.
type Config struct {
	Env                 string
	DatabaseURL         string
	RedisURL            string
	MigrationsDir       string
	ServerAddr          string
	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieSecure bool
	CORSAllowedOrigins  []string

	// SupportUserID owns the admin checker profile that receives manual-payment
	// support conversations. uuid.Nil disables the fork.
	SupportUserID   uuid.UUID
	OperatorUserIDs []uuid.UUID

	ReceiptBucket        string
	GCSCredentialsJSON   string
	ReceiptPublicBaseURL string
	ReceiptDir           string
	ReceiptMaxBytes      int64

	CheckoutBaseURL      string
	CheckoutClientID     string
	CheckoutClientSecret string
	CheckoutCurrency     string
}

// Load reads configuration from environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" && os.Getenv("POSTGRES_HOST") != "" {
		user := getenv("POSTGRES_USER", "checkerhub")
		pass := getenv("POSTGRES_PASSWORD", "checkerhub_pass")
		db := getenv("POSTGRES_DB", "checkerhub")
		host := os.Getenv("POSTGRES_HOST")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	ttl, err := parseDuration(getenv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	supportID, err := parseUUID(os.Getenv("SUPPORT_USER_ID"))
	if err != nil {
		return nil, fmt.Errorf("SUPPORT_USER_ID: %w", err)
	}
	operators, err := parseUUIDList(os.Getenv("OPERATOR_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("OPERATOR_USER_IDS: %w", err)
	}
	maxBytes, err := strconv.ParseInt(getenv("RECEIPT_MAX_BYTES", "10485760"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return nil, fmt.Errorf("RECEIPT_MAX_BYTES: invalid value %q", os.Getenv("RECEIPT_MAX_BYTES"))
	}

	cfg := &Config{
		Env:                  getenv("ENV", "development"),
		DatabaseURL:          dsn,
		RedisURL:             os.Getenv("REDIS_URL"),
		MigrationsDir:        getenv("MIGRATIONS_DIR", "internal/migrations"),
		ServerAddr:           getenv("SERVER_ADDR", "0.0.0.0:8080"),
		SessionTTL:           ttl,
		SessionCookieName:    getenv("SESSION_COOKIE_NAME", "checkerhub_session"),
		SessionCookieSecure:  parseBool(getenv("SESSION_COOKIE_SECURE", "false"), false),
		CORSAllowedOrigins:   splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		SupportUserID:        supportID,
		OperatorUserIDs:      operators,
		ReceiptBucket:        os.Getenv("RECEIPT_BUCKET"),
		GCSCredentialsJSON:   os.Getenv("GCS_CREDENTIALS_JSON"),
		ReceiptPublicBaseURL: os.Getenv("RECEIPT_PUBLIC_BASE_URL"),
		ReceiptDir:           getenv("RECEIPT_DIR", "data/receipts"),
		ReceiptMaxBytes:      maxBytes,
		CheckoutBaseURL:      strings.TrimRight(os.Getenv("CHECKOUT_BASE_URL"), "/"),
		CheckoutClientID:     os.Getenv("CHECKOUT_CLIENT_ID"),
		CheckoutClientSecret: os.Getenv("CHECKOUT_CLIENT_SECRET"),
		CheckoutCurrency:     strings.ToUpper(getenv("CHECKOUT_CURRENCY", "USD")),
	}

	if cfg.IsProduction() {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.CheckoutBaseURL == "" {
			return nil, fmt.Errorf("CHECKOUT_BASE_URL is required in production")
		}
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// CheckoutConfigured reports whether hosted-checkout verification is available.
func (c *Config) CheckoutConfigured() bool {
	return c.CheckoutBaseURL != "" && c.CheckoutClientID != "" && c.CheckoutClientSecret != ""
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", val)
	}
	return d, nil
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseUUID(val string) (uuid.UUID, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(val)
}

func parseUUIDList(val string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, part := range splitList(val) {
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
