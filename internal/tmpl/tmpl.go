// Package tmpl renders mail templates with {{field}} placeholders.
//
// Rendering is plain string substitution. A placeholder whose field is known
// is replaced by the field value; unknown placeholders are left untouched so a
// typo shows up in the preview instead of failing the run.
package tmpl

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/teemow/mailsweep/internal/recipients"
)

// ErrTemplateLoad is returned when a template file cannot be read.
var ErrTemplateLoad = errors.New("template load error")

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Fields maps placeholder names to their replacement values.
type Fields map[string]string

// Render substitutes every {{name}} in template whose name is a key of fields.
// The field name is matched exactly; whitespace inside the braces is significant.
func Render(template string, fields Fields) string {
	if !strings.Contains(template, openDelim) {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start + len(openDelim)

		name := rest[start+len(openDelim) : end]
		if strings.Contains(name, openDelim) {
			// "{{ {{name}}": emit the stray opener and rescan from the inner one.
			inner := start + len(openDelim) + strings.LastIndex(name, openDelim)
			b.WriteString(rest[:inner])
			rest = rest[inner:]
			continue
		}

		b.WriteString(rest[:start])
		if value, ok := fields[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[start : end+len(closeDelim)])
		}
		rest = rest[end+len(closeDelim):]
	}

	return b.String()
}

// FieldsFor builds the substitution fields for a recipient.
//
// Defaults are filled first: email, name (local part of the address),
// first_name and last_name (empty). Every recipient field then overrides the
// defaults, except that blank values never replace a non-blank default.
func FieldsFor(r *recipients.Recipient) Fields {
	fields := Fields{
		"email":      r.Email(),
		"name":       r.LocalPart(),
		"first_name": "",
		"last_name":  "",
	}
	for _, key := range r.Keys() {
		value, _ := r.Get(key)
		if value == "" && fields[key] != "" {
			continue
		}
		fields[key] = value
	}
	return fields
}

// Load reads a template file.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %v", ErrTemplateLoad, path, err)
	}
	return string(data), nil
}

// Pair is a plain-text template with an optional HTML variant.
type Pair struct {
	Text string
	HTML string
}

// Render renders both variants with the same fields. The HTML result is empty
// when the pair has no HTML template.
func (p Pair) Render(fields Fields) (text, html string) {
	text = Render(p.Text, fields)
	if p.HTML != "" {
		html = Render(p.HTML, fields)
	}
	return text, html
}
