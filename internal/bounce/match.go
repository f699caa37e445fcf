package bounce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultMaxPages bounds the number of pages Match will request.
const DefaultMaxPages = 1000

// UnknownName is used for contacts without a display name.
const UnknownName = "Unknown"

// ErrPaginationExhausted is returned when the listing keeps returning
// continuation tokens past MatchOptions.MaxPages.
var ErrPaginationExhausted = errors.New("pagination exhausted")

// Contact is one entry of a contact listing.
type Contact struct {
	ResourceName string
	Etag         string
	DisplayName  string
	Emails       []string
}

// Page is one page of a contact listing. An empty NextPageToken marks the
// last page.
type Page struct {
	Contacts      []Contact
	NextPageToken string
	TotalPeople   int
}

// PageSource lists contacts one page at a time.
type PageSource interface {
	ListConnections(ctx context.Context, pageToken string) (*Page, error)
}

// ContactRecord identifies a contact that carries a bounced address.
type ContactRecord struct {
	ResourceName string `json:"resourceName"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Etag         string `json:"etag"`
}

// MatchOptions tunes Match.
type MatchOptions struct {
	// MaxPages defaults to DefaultMaxPages.
	MaxPages int

	// OnPage is called after each page with the number of contacts scanned so far.
	OnPage func(scanned int)
}

// MatchResult holds the matched records and listing counters.
type MatchResult struct {
	Records []ContactRecord
	Scanned int
	Pages   int
}

// Match lists every contact from source and returns those with at least one
// address in set. Each contact is reported once, with the first of its
// addresses found in the set.
func Match(ctx context.Context, set *Set, source PageSource, opts MatchOptions) (*MatchResult, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	result := &MatchResult{Records: []ContactRecord{}}
	token := ""
	for {
		if result.Pages == maxPages {
			return result, fmt.Errorf("%w: still more results after %d pages", ErrPaginationExhausted, maxPages)
		}

		page, err := source.ListConnections(ctx, token)
		if err != nil {
			return result, err
		}
		result.Pages++
		result.Scanned += len(page.Contacts)

		for _, c := range page.Contacts {
			if record, ok := matchContact(set, c); ok {
				result.Records = append(result.Records, record)
			}
		}

		if opts.OnPage != nil {
			opts.OnPage(result.Scanned)
		}

		if page.NextPageToken == "" {
			return result, nil
		}
		token = page.NextPageToken
	}
}

func matchContact(set *Set, c Contact) (ContactRecord, bool) {
	for _, email := range c.Emails {
		if !set.Contains(email) {
			continue
		}
		name := c.DisplayName
		if name == "" {
			name = UnknownName
		}
		return ContactRecord{
			ResourceName: c.ResourceName,
			Name:         name,
			Email:        normalize(email),
			Etag:         c.Etag,
		}, true
	}
	return ContactRecord{}, false
}

// ExportJSON writes records to path as an indented JSON array.
func ExportJSON(path string, records []ContactRecord) error {
	if records == nil {
		records = []ContactRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode contacts: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write export %s: %v", ErrInputLoad, path, err)
	}
	return nil
}
