package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTP store backends.
const (
	OTPStoreMemory = "memory"
	OTPStoreDynamo = "dynamo"
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	OTPStore        string
	OTPTTL          time.Duration
	OTPMaxAttempts  int
	VerifiedFlagTTL time.Duration // zero keeps the flag until it is consumed

	JWTSecret         string // HS256 when set, otherwise RS256 with the key files below
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	BcryptCost int

	MailDriver   string
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins

	// Per-IP limit on the public auth endpoints.
	RateLimitRPS   float64
	RateLimitBurst int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Verifications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Verifications: getEnv("DYNAMO_TABLE_VERIFICATIONS", "email_verifications"),
		},
		OTPStore:          getEnv("OTP_STORE", OTPStoreMemory),
		OTPTTL:            time.Duration(getEnvInt("OTP_TTL_MINUTES", 5)) * time.Minute,
		OTPMaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
		VerifiedFlagTTL:   time.Duration(getEnvInt("VERIFIED_FLAG_TTL_MINUTES", 0)) * time.Minute,
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", ""),
		JWTExpiry:         time.Duration(clamp(getEnvInt("JWT_EXPIRY_DAYS", 1), 1, 7)) * 24 * time.Hour,
		BcryptCost:        getEnvInt("BCRYPT_COST", 10),
		MailDriver:        getEnv("MAIL_DRIVER", MailDriverSMTP),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// Validate reports configuration that must stop the process at boot.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && (c.JWTPrivateKeyPath == "" || c.JWTPublicKeyPath == "") {
		errs = append(errs, errors.New("JWT_SECRET or JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set"))
	}
	switch c.OTPStore {
	case OTPStoreMemory, OTPStoreDynamo:
	default:
		errs = append(errs, fmt.Errorf("OTP_STORE must be %q or %q, got %q", OTPStoreMemory, OTPStoreDynamo, c.OTPStore))
	}
	switch c.MailDriver {
	case MailDriverSMTP, MailDriverLog:
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVER must be %q or %q, got %q", MailDriverSMTP, MailDriverLog, c.MailDriver))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL_MINUTES must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
