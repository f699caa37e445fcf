package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrRecipientLoad is returned when a recipient file cannot be read or parsed.
var ErrRecipientLoad = errors.New("recipient load error")

// SkippedRow describes a CSV row dropped because it had no email address.
type SkippedRow struct {
	Line   int
	Reason string
}

// List is the result of loading a recipient file.
type List struct {
	Recipients []*Recipient
	Skipped    []SkippedRow
}

// Load reads recipients from path. Files with a ".csv" extension are parsed
// as CSV with a header row, anything else as one address per line.
func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrRecipientLoad, path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseCSV(f)
	}
	return ParseLines(f)
}

// ParseLines parses a line-oriented address list.
func ParseLines(r io.Reader) (*List, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecipientLoad, err)
	}

	list := &List{}
	for _, line := range strings.Split(string(data), "\n") {
		email := strings.TrimSpace(line)
		if email == "" || strings.HasPrefix(email, "#") || !strings.Contains(email, "@") {
			continue
		}
		list.Recipients = append(list.Recipients, New(email))
	}
	return list, nil
}

// ParseCSV parses a CSV document whose first row names the columns.
// Column names are trimmed; the address must live in a column named "email".
func ParseCSV(r io.Reader) (*List, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header row", ErrRecipientLoad)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrRecipientLoad, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	list := &List{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecipientLoad, err)
		}
		line, _ := reader.FieldPos(0)

		rec := &Recipient{}
		for i, name := range header {
			if name == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = record[i]
			}
			rec.Set(name, value)
		}

		if rec.Email() == "" {
			list.Skipped = append(list.Skipped, SkippedRow{Line: line, Reason: "missing email column value"})
			continue
		}
		rec.Set(FieldEmail, rec.Email())
		list.Recipients = append(list.Recipients, rec)
	}
	return list, nil
}
