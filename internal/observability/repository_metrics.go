package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	repoMetricsOnce sync.Once
	repoOpCounter   metric.Int64Counter
	cacheCounter    metric.Int64Counter
)

func initRepoMetrics() {
	meter := otel.Meter("auth-core-service")
	if counter, err := meter.Int64Counter("repository.operations"); err == nil {
		repoOpCounter = counter
	}
	if counter, err := meter.Int64Counter("cache.lookups"); err == nil {
		cacheCounter = counter
	}
}

func RecordRepositoryOperation(ctx context.Context, repository, operation, outcome string) {
	repoMetricsOnce.Do(initRepoMetrics)
	if repoOpCounter == nil {
		return
	}
	repoOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repository),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordCacheLookup(ctx context.Context, cache, outcome string) {
	repoMetricsOnce.Do(initRepoMetrics)
	if cacheCounter == nil {
		return
	}
	cacheCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("outcome", outcome),
	))
}
