package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type Config struct {
	Addr                  string
	DatabaseURL           string
	JWTSecret             string
	JWTTTL                time.Duration
	DataEncryptionKey     string
	Environment           string
	LogLevel              string
	LogFormat             string
	CORSAllowedOrigins    []string
	SeedAdminEmail        string
	SeedAdminPassword     string
	SeedAdminName         string
	EmailFrom             string
	EmailEnabled          bool
	SMTPHost              string
	SMTPPort              int
	SMTPUser              string
	SMTPPassword          string
	SMTPUseTLS            bool
	RunMigrations         bool
	RunSeed               bool
	MaxBodyBytes          int64
	RateLimitPerMinute    int
	OTPCleanupInterval    time.Duration
	NotificationQueueSize int
	ServiceName           string
	OTLPEndpoint          string
	OTLPInsecure          bool
	ShutdownTimeout       time.Duration
	AttendanceAllowedIPs  []string
}

func Load() Config {
	return Config{
		Addr:                  getEnv("APP_ADDR", ":4000"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTTTL:                getEnvDuration("JWT_TTL", 7*24*time.Hour),
		DataEncryptionKey:     getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:           getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		SeedAdminEmail:        getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:     getEnv("SEED_ADMIN_PASSWORD", ""),
		SeedAdminName:         getEnv("SEED_ADMIN_NAME", "Super Admin"),
		EmailFrom:             getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:          getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              getEnvInt("SMTP_PORT", 587),
		SMTPUser:              getEnv("SMTP_USER", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:            getEnvBool("SMTP_USE_TLS", true),
		RunMigrations:         getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:               getEnvBool("RUN_SEED", true),
		MaxBodyBytes:          int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		OTPCleanupInterval:    getEnvDuration("OTP_CLEANUP_INTERVAL", time.Hour),
		NotificationQueueSize: getEnvInt("NOTIFICATION_QUEUE_SIZE", 128),
		ServiceName:           getEnv("OTEL_SERVICE_NAME", "hrportal"),
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:          getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ShutdownTimeout:       getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AttendanceAllowedIPs:  getEnvList("ATTENDANCE_ALLOWED_IPS", nil),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a value on commas, semicolons or whitespace, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	out := strings.FieldsFunc(os.Getenv(key), func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(out) == 0 {
		return fallback
	}
	return out
}

func validNetwork(entry string) bool {
	if _, err := netip.ParsePrefix(entry); err == nil {
		return true
	}
	_, err := netip.ParseAddr(strings.TrimPrefix(entry, "::ffff:"))
	return err == nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production to protect OTP secrets")
		}
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.NotificationQueueSize <= 0 {
		return fmt.Errorf("NOTIFICATION_QUEUE_SIZE must be positive")
	}
	for _, entry := range c.AttendanceAllowedIPs {
		if !validNetwork(entry) {
			return fmt.Errorf("ATTENDANCE_ALLOWED_IPS entry %q is not an IP address or CIDR range", entry)
		}
	}
	return nil
}
