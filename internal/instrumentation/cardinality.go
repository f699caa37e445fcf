package instrumentation

import "strings"

// ExtractUserDomain extracts the domain part from an email address.
// Use it instead of the full address wherever a label or attribute is
// recorded, to keep cardinality bounded.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}

	return "unknown"
}

// Operation types for Google API metrics.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationDelete = "delete"
	OperationSend   = "send"
)
