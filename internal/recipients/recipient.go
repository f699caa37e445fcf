package recipients

import (
	"strings"
)

// FieldEmail is the field every recipient must carry.
const FieldEmail = "email"

// Recipient is an ordered mapping from field name to value.
// Field order follows the source (CSV header order).
type Recipient struct {
	keys   []string
	values map[string]string
}

// New creates a recipient with the given email address.
func New(email string) *Recipient {
	r := &Recipient{values: make(map[string]string)}
	r.Set(FieldEmail, email)
	return r
}

// Set stores value under key, keeping the position of an existing key.
func (r *Recipient) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *Recipient) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order.
func (r *Recipient) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Recipient) Len() int {
	return len(r.keys)
}

// Email returns the trimmed email address.
func (r *Recipient) Email() string {
	return strings.TrimSpace(r.values[FieldEmail])
}

// LocalPart returns the part of the email before the "@".
func (r *Recipient) LocalPart() string {
	email := r.Email()
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
