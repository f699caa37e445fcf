// Package bounce finds the contacts that still carry an undeliverable
// address.
//
// A Set is loaded from a plain-text file with one bounced address per line.
// Match walks a paginated contact listing and returns one ContactRecord for
// every contact with at least one address in the set:
//
//	set, err := bounce.LoadSet("bounced_emails.txt")
//	if err != nil {
//		return err
//	}
//	result, err := bounce.Match(ctx, set, client, bounce.MatchOptions{})
//
// Matching is case-insensitive and side-effect free. Deleting the matched
// contacts is left to the caller.
package bounce
