package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the token lifecycle library
type Metrics struct {
	// Lifecycle Metrics
	TokensIssued    metric.Int64Counter
	TokensValidated metric.Int64Counter
	TokensRotated   metric.Int64Counter
	TokensRevoked   metric.Int64Counter
	TokensSwept     metric.Int64Counter

	// Security Metrics
	AuthFailures      metric.Int64Counter
	RateLimitExceeded metric.Int64Counter

	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageTokensCount       metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	lifecycleMeter := inst.Meter("lifecycle")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	var err error
	m.TokensIssued, err = lifecycleMeter.Int64Counter(
		"oauth.tokens.issued",
		metric.WithDescription("Number of tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.issued counter: %w", err)
	}

	m.TokensValidated, err = lifecycleMeter.Int64Counter(
		"oauth.tokens.validated",
		metric.WithDescription("Number of bearer token validations"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.validated counter: %w", err)
	}

	m.TokensRotated, err = lifecycleMeter.Int64Counter(
		"oauth.tokens.rotated",
		metric.WithDescription("Number of refresh token rotations"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.rotated counter: %w", err)
	}

	m.TokensRevoked, err = lifecycleMeter.Int64Counter(
		"oauth.tokens.revoked",
		metric.WithDescription("Number of tokens revoked"),
		metric.WithUnit("{revocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.revoked counter: %w", err)
	}

	m.TokensSwept, err = lifecycleMeter.Int64Counter(
		"oauth.tokens.swept",
		metric.WithDescription("Number of expired tokens removed by the sweep"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.swept counter: %w", err)
	}

	m.AuthFailures, err = securityMeter.Int64Counter(
		"oauth.auth.failures",
		metric.WithDescription("Number of authentication failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.failures counter: %w", err)
	}

	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"oauth.ratelimit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.exceeded counter: %w", err)
	}

	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"oauth.storage.operations.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operations.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"oauth.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageTokensCount, err = storageMeter.Int64ObservableGauge(
		"oauth.storage.tokens.count",
		metric.WithDescription("Current number of live token records"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.tokens.count gauge: %w", err)
	}

	return m, nil
}

// RecordStorageOperation records a storage operation with its duration and outcome
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.StorageOperationTotal.Add(ctx, 1, attrs)
	m.StorageOperationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}
