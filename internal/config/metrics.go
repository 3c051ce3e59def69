package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce sync.Once
	configCounter     metric.Int64Counter
)

// recordConfigValidationEvent counts one boot-time config check per process
// start. The reason attribute names the config area that failed, so a fleet
// view can tell a missing secret from a bad OTP setting without log diving.
func recordConfigValidationEvent(ctx context.Context, environment, outcome, reason string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("auth-core-service").Int64Counter("config.validation.events")
		if err == nil {
			configCounter = counter
		}
	})
	if configCounter == nil {
		return
	}
	configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("environment", normalizeEnvironment(environment)),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

func normalizeEnvironment(environment string) string {
	v := strings.TrimSpace(strings.ToLower(environment))
	if v == "" {
		return "unknown"
	}
	return v
}

// configFailureReason maps a validation error onto the config area it
// belongs to. The env-var names in validate() are the contract here.
func configFailureReason(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "AUTH_SECRET"), strings.Contains(msg, "PEPPER"):
		return "secrets"
	case strings.Contains(msg, "DATABASE_DSN"):
		return "stores"
	case strings.Contains(msg, "AUTH_OTP_"):
		return "otp"
	case strings.Contains(msg, "AUTH_EMAIL_"):
		return "email"
	default:
		return "other"
	}
}
