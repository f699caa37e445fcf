package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/teemow/mailsweep/internal/instrumentation"
)

// newTestRuntime returns a runtime that logs audit records to the returned buffer.
func newTestRuntime(t *testing.T) (*appRuntime, *bytes.Buffer) {
	t.Helper()
	var audit bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &appRuntime{
		logger: logger,
		audit:  instrumentation.NewAuditLogger(slog.New(slog.NewJSONHandler(&audit, nil)), instrumentation.AuditLoggingConfig{Enabled: true}),
	}, &audit
}
