// Package logging provides structured logging utilities for mailsweep.
//
// This package centralizes logging patterns so the contacts and send
// workflows emit the same attribute names, using the standard library's
// slog package.
//
// # Usage Patterns
//
// Build the process logger from the command line flags:
//
//	logger, err := logging.NewLogger(os.Stderr, "info", "text")
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "people.delete")
//	logger.Info("contact deleted",
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("message sent",
//	    logging.UserHash(recipient))
//
// # Security Considerations
//
//   - Recipient and contact addresses are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens are never logged directly
package logging
