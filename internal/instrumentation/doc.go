// Package instrumentation provides OpenTelemetry instrumentation for mailsweep runs.
//
// A run is a short-lived batch job, so the package focuses on:
//   - OpenTelemetry metrics for Google API calls and dispatched items
//   - Distributed tracing for Google API calls and dispatch runs
//   - Audit logging of every externally visible action (contact deletes, sends)
//   - Optional push of the final metrics to a Prometheus Pushgateway
//
// # Metrics
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// OAuth Metrics:
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Dispatch Metrics:
//   - dispatch_items_total: Counter of processed items by workflow, mode and status
//   - dispatch_runs_total: Counter of finished runs by workflow, mode and result
//   - dispatch_run_duration_seconds: Histogram of run durations
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: mailsweep)
//   - PUSHGATEWAY_URL: Pushgateway to receive the metrics when the run ends
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGoogleAPIOperation(ctx, instrumentation.ServicePeople, "delete", "success", time.Since(start))
package instrumentation
