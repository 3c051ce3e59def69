package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpMetricsOnce   sync.Once
	tokenValidCounter metric.Int64Counter
	rateLimitCounter  metric.Int64Counter
)

func initHTTPMetrics() {
	meter := otel.Meter("auth-core-service")
	if counter, err := meter.Int64Counter("http.access_token.validations"); err == nil {
		tokenValidCounter = counter
	}
	if counter, err := meter.Int64Counter("http.rate_limit.decisions"); err == nil {
		rateLimitCounter = counter
	}
}

func RecordAccessTokenValidation(ctx context.Context, outcome string) {
	httpMetricsOnce.Do(initHTTPMetrics)
	if tokenValidCounter == nil {
		return
	}
	tokenValidCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	httpMetricsOnce.Do(initHTTPMetrics)
	if rateLimitCounter == nil {
		return
	}
	rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}
