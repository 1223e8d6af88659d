package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment. It is built
// once at process start and passed down; nothing reads it as ambient state.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Livepeer LivepeerConfig
	AWS      AWSConfig
	Webhook  WebhookConfig
}

// StripeConfig for the billing provider.
type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	BaseURL            string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string
	MemberPriceID      string
	PremiumPriceID     string
}

// LivepeerConfig for the live-video provider.
type LivepeerConfig struct {
	APIKey        string
	BaseURL       string
	WebhookSecret string
}

// WebhookConfig tunes webhook ingestion.
type WebhookConfig struct {
	SkewSeconds         int // allowed signature timestamp skew
	LockTTLSeconds      int // per-entity lock expiry
	PendingSweepSeconds int // pending ledger rows older than this are swept
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the VOD mirror bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	RecordingsBucket     string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/vistream?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "vistream"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Stripe: StripeConfig{
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			BaseURL:            getEnv("STRIPE_BASE_URL", "https://api.stripe.com/v1"),
			CheckoutSuccessURL: getEnv("STRIPE_CHECKOUT_SUCCESS_URL", "vistream://billing/success"),
			CheckoutCancelURL:  getEnv("STRIPE_CHECKOUT_CANCEL_URL", "vistream://billing/cancel"),
			PortalReturnURL:    getEnv("STRIPE_PORTAL_RETURN_URL", "vistream://billing"),
			MemberPriceID:      getEnv("STRIPE_MEMBER_PRICE_ID", ""),
			PremiumPriceID:     getEnv("STRIPE_PREMIUM_PRICE_ID", ""),
		},
		Livepeer: LivepeerConfig{
			APIKey:        getEnv("LIVEPEER_API_KEY", ""),
			BaseURL:       getEnv("LIVEPEER_BASE_URL", "https://livepeer.studio/api"),
			WebhookSecret: getEnv("LIVEPEER_WEBHOOK_SECRET", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RecordingsBucket:     getEnv("AWS_S3_RECORDINGS_BUCKET", "vistream-recordings"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Webhook: WebhookConfig{
			SkewSeconds:         getEnvInt("WEBHOOK_SKEW_SEC", 300),
			LockTTLSeconds:      getEnvInt("WEBHOOK_LOCK_TTL_SEC", 10),
			PendingSweepSeconds: getEnvInt("WEBHOOK_PENDING_SWEEP_SEC", 60),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
