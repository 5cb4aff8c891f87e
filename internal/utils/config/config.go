package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ModeLive      = "live"
	ModeSimulator = "simulator"
)

type Config struct {
	AppPort         string
	GracefulTimeout time.Duration
	LogLevel        string
	TrustProxy      bool
	ServiceName     string
	OTLPEndpoint    string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	MerchantID      string
	HashKey         string
	HashIV          string
	IsProduction    bool
	Version         string
	ReturnURL       string
	NotifyURL       string
	ClientBackURL   string
	PeriodReturnURL string
	PeriodNotifyURL string
	GatewayTimeout  time.Duration
	GatewayMode     string

	IdempotencyKeyTTL      time.Duration
	IdempotencyLockTimeout time.Duration
	CleanupInterval        time.Duration

	RateLimitPayment      int
	RateLimitWebhook      int
	RateLimitQuery        int
	RateLimitSubscription int
	RateLimitWindow       time.Duration
	RateLimitSweep        time.Duration
	RateLimitPersist      bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	AllowTestSources bool
	ExtraWebhookIPs  []string

	SubscriptionMaxRetries int
}

func Load() *Config {
	_ = godotenv.Load()

	isProduction := getEnvBool("NEWEBPAY_IS_PRODUCTION", false)

	return &Config{
		AppPort:         getEnv("APP_PORT", "8080"),
		GracefulTimeout: parseDuration(getEnv("GRACEFUL_TIMEOUT", "5s"), 5*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TrustProxy:      getEnvBool("TRUST_PROXY", false),
		ServiceName:     getEnv("SERVICE_NAME", "newebpay-bridge"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		DBDriver:   getEnv("DB_DRIVER", DriverPostgres),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "bridge"),
		DBPassword: getEnv("DB_PASSWORD", "bridge"),
		DBName:     getEnv("DB_NAME", "newebpay_bridge"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "bridge.db"),

		MerchantID:      getEnv("NEWEBPAY_MERCHANT_ID", ""),
		HashKey:         getEnv("NEWEBPAY_HASH_KEY", ""),
		HashIV:          getEnv("NEWEBPAY_HASH_IV", ""),
		IsProduction:    isProduction,
		Version:         getEnv("NEWEBPAY_VERSION", "2.0"),
		ReturnURL:       getEnv("NEWEBPAY_RETURN_URL", ""),
		NotifyURL:       getEnv("NEWEBPAY_NOTIFY_URL", ""),
		ClientBackURL:   getEnv("NEWEBPAY_CLIENT_BACK_URL", ""),
		PeriodReturnURL: getEnv("NEWEBPAY_PERIOD_RETURN_URL", ""),
		PeriodNotifyURL: getEnv("NEWEBPAY_PERIOD_NOTIFY_URL", ""),
		GatewayTimeout:  parseDuration(getEnv("NEWEBPAY_TIMEOUT", "10s"), 10*time.Second),
		GatewayMode:     getEnv("NEWEBPAY_MODE", ModeLive),

		IdempotencyKeyTTL:      parseDuration(getEnv("IDEMPOTENCY_KEY_TTL", "24h"), 24*time.Hour),
		IdempotencyLockTimeout: parseDuration(getEnv("IDEMPOTENCY_LOCK_TIMEOUT", "5m"), 5*time.Minute),
		CleanupInterval:        parseDuration(getEnv("CLEANUP_INTERVAL", "1h"), time.Hour),

		RateLimitPayment:      getEnvInt("RATE_LIMIT_PAYMENT", 5),
		RateLimitWebhook:      getEnvInt("RATE_LIMIT_WEBHOOK", 100),
		RateLimitQuery:        getEnvInt("RATE_LIMIT_QUERY", 30),
		RateLimitSubscription: getEnvInt("RATE_LIMIT_SUBSCRIPTION", 3),
		RateLimitWindow:       parseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"), time.Minute),
		RateLimitSweep:        parseDuration(getEnv("RATE_LIMIT_SWEEP_INTERVAL", "1m"), time.Minute),
		RateLimitPersist:      getEnvBool("RATE_LIMIT_PERSIST", false),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),

		AllowTestSources: getEnvBool("WEBHOOK_ALLOW_TEST_IPS", !isProduction),
		ExtraWebhookIPs:  splitList(getEnv("WEBHOOK_EXTRA_IPS", "")),

		SubscriptionMaxRetries: getEnvInt("SUBSCRIPTION_MAX_RETRIES", 3),
	}
}

// Validate collects every problem instead of stopping at the first one.
func (c *Config) Validate() error {
	cfgErr := &apperrors.ConfigError{}

	if c.AppPort == "" {
		cfgErr.Add("APP_PORT is required")
	}
	if c.MerchantID == "" {
		cfgErr.Add("NEWEBPAY_MERCHANT_ID is required")
	}
	if len(c.HashKey) != 32 {
		cfgErr.Add("NEWEBPAY_HASH_KEY must be exactly 32 bytes")
	}
	if len(c.HashIV) != 16 {
		cfgErr.Add("NEWEBPAY_HASH_IV must be exactly 16 bytes")
	}
	if c.Version == "" {
		cfgErr.Add("NEWEBPAY_VERSION is required")
	}

	requiredURLs := []struct {
		key   string
		value string
	}{
		{"NEWEBPAY_RETURN_URL", c.ReturnURL},
		{"NEWEBPAY_NOTIFY_URL", c.NotifyURL},
		{"NEWEBPAY_PERIOD_RETURN_URL", c.PeriodReturnURL},
		{"NEWEBPAY_PERIOD_NOTIFY_URL", c.PeriodNotifyURL},
	}
	for _, u := range requiredURLs {
		if !validURL(u.value) {
			cfgErr.Add(u.key + " must be an absolute http(s) URL")
		}
	}
	if c.ClientBackURL != "" && !validURL(c.ClientBackURL) {
		cfgErr.Add("NEWEBPAY_CLIENT_BACK_URL must be an absolute http(s) URL")
	}

	if c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite {
		cfgErr.Add("DB_DRIVER must be postgres or sqlite")
	}
	if c.GatewayMode != ModeLive && c.GatewayMode != ModeSimulator {
		cfgErr.Add("NEWEBPAY_MODE must be live or simulator")
	}
	if c.IsProduction && c.GatewayMode == ModeSimulator {
		cfgErr.Add("NEWEBPAY_MODE=simulator cannot be combined with NEWEBPAY_IS_PRODUCTION")
	}

	limits := map[string]int{
		"RATE_LIMIT_PAYMENT":       c.RateLimitPayment,
		"RATE_LIMIT_WEBHOOK":       c.RateLimitWebhook,
		"RATE_LIMIT_QUERY":         c.RateLimitQuery,
		"RATE_LIMIT_SUBSCRIPTION":  c.RateLimitSubscription,
		"SUBSCRIPTION_MAX_RETRIES": c.SubscriptionMaxRetries,
	}
	for key, value := range limits {
		if value <= 0 {
			cfgErr.Add(key + " must be positive")
		}
	}

	return cfgErr.OrNil()
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode
}

// Redacted is the loggable view of the configuration.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"app_port":       c.AppPort,
		"db_driver":      c.DBDriver,
		"db_host":        c.DBHost,
		"merchant_id":    c.MerchantID,
		"hash_key":       mask(c.HashKey),
		"hash_iv":        mask(c.HashIV),
		"production":     c.IsProduction,
		"gateway_mode":   c.GatewayMode,
		"version":        c.Version,
		"redis":          c.RedisAddr != "",
		"allow_test_ips": c.AllowTestSources,
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", len(secret))
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
