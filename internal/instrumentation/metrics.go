package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrWorkflow  = "workflow"
	attrMode      = "mode"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder.
type Metrics struct {
	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthTokenRefreshTotal metric.Int64Counter

	// Dispatch metrics
	dispatchItemsTotal  metric.Int64Counter
	dispatchRunsTotal   metric.Int64Counter
	dispatchRunDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.dispatchItemsTotal, err = meter.Int64Counter(
		"dispatch_items_total",
		metric.WithDescription("Total number of items processed by dispatch runs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch_items_total counter: %w", err)
	}

	m.dispatchRunsTotal, err = meter.Int64Counter(
		"dispatch_runs_total",
		metric.WithDescription("Total number of finished dispatch runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch_runs_total counter: %w", err)
	}

	m.dispatchRunDuration, err = meter.Float64Histogram(
		"dispatch_run_duration_seconds",
		metric.WithDescription("Dispatch run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 1, 5, 15, 60, 300, 900, 3600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch_run_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordGoogleAPIOperation records a Google API operation with service, operation,
// status, and duration.
//
// Parameters:
//   - service: Google service name (gmail, people)
//   - operation: Operation type (list, get, delete, send)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt with result.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordDispatchItem records one processed item of a dispatch run.
func (m *Metrics) RecordDispatchItem(ctx context.Context, workflow, mode, status string) {
	if m == nil || m.dispatchItemsTotal == nil {
		return
	}

	m.dispatchItemsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrWorkflow, workflow),
		attribute.String(attrMode, mode),
		attribute.String(attrStatus, status),
	))
}

// RecordDispatchRun records a finished dispatch run. The run counts as an
// error when any item failed.
func (m *Metrics) RecordDispatchRun(ctx context.Context, workflow, mode string, attempted, failed int, duration time.Duration) {
	if m == nil || m.dispatchRunsTotal == nil || m.dispatchRunDuration == nil {
		return
	}

	result := StatusSuccess
	if failed > 0 {
		result = StatusError
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrWorkflow, workflow),
		attribute.String(attrMode, mode),
		attribute.String(attrResult, result),
	}

	m.dispatchRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
