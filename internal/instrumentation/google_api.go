package instrumentation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ObserveGoogleAPI runs call inside a Google API span and records its
// duration and status. m may be nil.
func ObserveGoogleAPI(ctx context.Context, m *Metrics, service, operation string, call func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := StartGoogleAPISpan(ctx, service, operation, attrs...)
	defer span.End()

	start := time.Now()
	err := call(ctx)

	status := StatusSuccess
	if err != nil {
		status = StatusError
		SetSpanError(span, err)
	} else {
		SetSpanSuccess(span)
	}
	m.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))

	return err
}
