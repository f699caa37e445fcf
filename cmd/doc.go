// Package cmd implements the command-line interface for mailsweep.
//
// This package provides the following commands:
//   - contacts: Delete Google Contacts whose address is on a bounced list
//   - send: Send single or templated bulk mail through Gmail
//   - auth: Authorize mailsweep and check access to the People and Gmail APIs
//   - version: Display version information
//
// Both contacts and send preview by default and only act with --no-dry-run.
package cmd
