package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string

	PrimaryDatabaseDSN   string
	SecondaryDatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	PasswordPepper string

	AccessTokenTTL  time.Duration
	SessionCacheTTL time.Duration

	OTPLength      int
	OTPCheckBudget int
	OTPValidFor    time.Duration
	OTPRetryWindow time.Duration

	EmailCodeLength    int
	EmailAttemptBudget int
	EmailValidFor      time.Duration
	EmailRetryWindow   time.Duration

	// Delivery gateway endpoints. Empty means log-only delivery.
	OTPGatewayURL   string
	EmailGatewayURL string

	AuthRateLimitRPM int
	APIRateLimitRPM  int

	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsEnabled        bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		PrimaryDatabaseDSN:   getenv("PRIMARY_DATABASE_DSN", ""),
		SecondaryDatabaseDSN: getenv("SECONDARY_DATABASE_DSN", ""),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),

		JWTSecret:      getenv("AUTH_SECRET", ""),
		PasswordPepper: getenv("AUTH_PASSWORD_PEPPER", ""),

		AccessTokenTTL:  seconds("AUTH_ACCESS_TOKEN_EXPIRES_IN_SECONDS", 3600),
		SessionCacheTTL: seconds("AUTH_CACHE_SESSION_ALIVE_SECONDS", 60),

		OTPLength:      atoi("AUTH_OTP_PASSWORD_LENGTH", 6),
		OTPCheckBudget: atoi("AUTH_OTP_PASSWORD_CHECKS", 3),
		OTPValidFor:    seconds("AUTH_OTP_PASSWORD_VALID_PERIOD_SECONDS", 180),
		OTPRetryWindow: seconds("AUTH_OTP_RETRY_PERIOD_SECONDS", 300),

		EmailCodeLength:    atoi("AUTH_EMAIL_CODE_LENGTH", 6),
		EmailAttemptBudget: atoi("AUTH_EMAIL_CODE_CHECKS", 3),
		EmailValidFor:      seconds("AUTH_EMAIL_CODE_VALID_PERIOD_SECONDS", 180),
		EmailRetryWindow:   seconds("AUTH_EMAIL_RETRY_PERIOD_SECONDS", 300),

		OTPGatewayURL:   getenv("AUTH_OTP_GATEWAY_URL", ""),
		EmailGatewayURL: getenv("AUTH_EMAIL_GATEWAY_URL", ""),

		AuthRateLimitRPM: atoi("AUTH_RATE_LIMIT_RPM", 30),
		APIRateLimitRPM:  atoi("API_RATE_LIMIT_RPM", 300),

		OTELServiceName:           getenv("OTEL_SERVICE_NAME", "auth-core-service"),
		OTELEnvironment:           getenv("OTEL_ENVIRONMENT", "dev"),
		OTELMetricsEnabled:        getenv("OTEL_METRICS_ENABLED", "false") == "true",
		OTELExporterOTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getenv("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
		OTELMetricsExportInterval: seconds("OTEL_METRICS_EXPORT_INTERVAL_SECONDS", 30),
	}
	if err := cfg.validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.OTELEnvironment, "rejected", configFailureReason(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), cfg.OTELEnvironment, "accepted", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("validate config: AUTH_SECRET is required")
	}
	if c.PrimaryDatabaseDSN == "" {
		return fmt.Errorf("validate config: PRIMARY_DATABASE_DSN is required")
	}
	if c.SecondaryDatabaseDSN == "" {
		return fmt.Errorf("validate config: SECONDARY_DATABASE_DSN is required")
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		return fmt.Errorf("validate config: AUTH_OTP_PASSWORD_LENGTH out of range: %d", c.OTPLength)
	}
	if c.OTPCheckBudget <= 0 {
		return fmt.Errorf("validate config: AUTH_OTP_PASSWORD_CHECKS must be positive")
	}
	if c.EmailAttemptBudget <= 0 {
		return fmt.Errorf("validate config: AUTH_EMAIL_CODE_CHECKS must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func seconds(key string, def int) time.Duration {
	return time.Duration(atoi(key, def)) * time.Second
}
