package bounce

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ErrInputLoad is returned when a local input file cannot be read or written.
var ErrInputLoad = errors.New("input load error")

// Set is an immutable set of lower-cased bounced addresses.
type Set struct {
	addresses map[string]struct{}
}

// NewSet builds a Set from raw addresses. Entries are trimmed and lower-cased;
// entries without an "@" are ignored.
func NewSet(addresses ...string) *Set {
	normalized := lo.FilterMap(addresses, func(a string, _ int) (string, bool) {
		a = normalize(a)
		return a, a != "" && strings.Contains(a, "@")
	})
	return &Set{addresses: lo.SliceToMap(normalized, func(a string) (string, struct{}) {
		return a, struct{}{}
	})}
}

// LoadSet reads a line-delimited address file.
func LoadSet(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bounced list %s: %v", ErrInputLoad, path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read bounced list %s: %v", ErrInputLoad, path, err)
	}

	return NewSet(lines...), nil
}

// Contains reports whether email is in the set, ignoring case.
func (s *Set) Contains(email string) bool {
	_, ok := s.addresses[normalize(email)]
	return ok
}

// Len returns the number of distinct addresses.
func (s *Set) Len() int {
	return len(s.addresses)
}

// Addresses returns the addresses in sorted order.
func (s *Set) Addresses() []string {
	addresses := lo.Keys(s.addresses)
	sort.Strings(addresses)
	return addresses
}

// Save writes the sorted addresses to path, one per line.
func (s *Set) Save(path string) error {
	var b strings.Builder
	for _, a := range s.Addresses() {
		b.WriteString(a)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write bounced list %s: %v", ErrInputLoad, path, err)
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
