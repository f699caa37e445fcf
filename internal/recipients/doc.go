// Package recipients loads mail recipients from local files.
//
// Two input formats are supported:
//   - CSV files (".csv" extension) with a header row; every column becomes a
//     string field of the recipient.
//   - Plain text files with one email address per line. Blank lines and lines
//     starting with "#" are ignored, as is any line without an "@".
//
// Every returned Recipient carries an "email" field. CSV rows without a usable
// email are not returned; they are reported in List.Skipped so the caller can
// warn about them.
package recipients
