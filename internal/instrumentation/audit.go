package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/mailsweep/internal/logging"
)

// Action captures one externally visible effect (a deleted contact, a sent
// message) for audit logging.
//
// # Privacy Considerations
//
// Target holds an email address. Unless the audit logger is configured with
// IncludePII, only its hash and domain are written.
type Action struct {
	Workflow   string // contacts, send
	Operation  string // delete, send
	Target     string // email address acted upon
	ResourceID string // contact resource name or sent message ID

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewAction creates a new Action with timing started.
func NewAction(workflow, operation, target string) *Action {
	return &Action{
		Workflow:  workflow,
		Operation: operation,
		Target:    target,
		StartTime: time.Now(),
	}
}

// WithResource sets the resource identifier.
func (a *Action) WithResource(id string) *Action {
	a.ResourceID = id
	return a
}

// WithSpanContext extracts the trace ID from the current span.
func (a *Action) WithSpanContext(ctx context.Context) *Action {
	a.TraceID = GetTraceID(ctx)
	return a
}

// Complete marks the action as finished. A nil err means success.
func (a *Action) Complete(err error) *Action {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// Status returns "success" or "error" based on the Success field.
func (a *Action) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the attributes written for the action.
func (a *Action) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("workflow", a.Workflow),
		logging.Operation(a.Operation),
		slog.String("target_domain", ExtractUserDomain(a.Target)),
		slog.Duration(logging.KeyDuration, a.Duration),
		logging.Status(a.Status()),
	}

	if includePII {
		attrs = append(attrs, slog.String("target", a.Target))
	} else {
		attrs = append(attrs, slog.String("target_hash", logging.AnonymizeEmail(a.Target)))
	}
	if a.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", a.ResourceID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, a.Error))
	}

	return attrs
}

// AuditLogger writes one structured record per Action.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger from the given configuration.
// If logger is nil, slog.Default() is used.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogAction logs a completed action. A nil AuditLogger is a no-op.
func (al *AuditLogger) LogAction(ctx context.Context, a *Action) {
	if al == nil || !al.enabled {
		return
	}

	level := slog.LevelInfo
	msg := "action_executed"
	if !a.Success {
		level = slog.LevelWarn
		msg = "action_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, a.LogAttrs(al.includePII)...)
}
