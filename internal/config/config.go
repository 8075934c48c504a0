package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string

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

	RedisAddr     string
	RedisPassword string

	Stripe    StripeConfig
	Identity  IdentityConfig
	Signup    SignupConfig
	RateLimit RateLimitConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	SuccessURL    string
	CancelURL     string
}

type IdentityConfig struct {
	BaseURL        string
	ServiceRoleKey string
}

type SignupConfig struct {
	ReservationTTLHours int
	TrialDays           int
	InitialPeriodYears  int
	SweepIntervalMin    int
}

type RateLimitConfig struct {
	Backend           string
	CheckoutLimit     int
	CheckoutWindowSec int
	VerifyLimit       int
	VerifyWindowSec   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "everafter"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "everafter"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PriceID:       strings.TrimSpace(getenv("STRIPE_PRICE_ID", "")),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", "http://localhost:8080/signup/confirm?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     getenv("STRIPE_CANCEL_URL", "http://localhost:8080/signup"),
		},
		Identity: IdentityConfig{
			BaseURL:        strings.TrimRight(getenv("IDENTITY_BASE_URL", ""), "/"),
			ServiceRoleKey: strings.TrimSpace(getenv("IDENTITY_SERVICE_ROLE_KEY", "")),
		},
		Signup: SignupConfig{
			ReservationTTLHours: getenvInt("SIGNUP_RESERVATION_TTL_HOURS", 24),
			TrialDays:           getenvInt("SIGNUP_TRIAL_DAYS", 31),
			InitialPeriodYears:  getenvInt("SIGNUP_INITIAL_PERIOD_YEARS", 1),
			SweepIntervalMin:    getenvInt("SIGNUP_SWEEP_INTERVAL_MIN", 60),
		},
		RateLimit: RateLimitConfig{
			Backend:           strings.ToLower(getenv("RATE_LIMIT_BACKEND", "memory")),
			CheckoutLimit:     getenvInt("RATE_LIMIT_CHECKOUT_LIMIT", 5),
			CheckoutWindowSec: getenvInt("RATE_LIMIT_CHECKOUT_WINDOW_SEC", 3600),
			VerifyLimit:       getenvInt("RATE_LIMIT_VERIFY_LIMIT", 20),
			VerifyWindowSec:   getenvInt("RATE_LIMIT_VERIFY_WINDOW_SEC", 3600),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
