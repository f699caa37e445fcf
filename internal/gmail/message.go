package gmail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// ErrAttachment is returned when an attachment file cannot be read.
var ErrAttachment = errors.New("attachment error")

// Attachment is a file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LoadAttachment reads the file at path. The content type is guessed from the
// extension.
func LoadAttachment(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %v", ErrAttachment, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Attachment{
		Filename:    SanitizeFilename(filepath.Base(path)),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// SanitizeFilename removes path separators and quotes from an attachment name.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	filename = strings.ReplaceAll(filename, "\"", "_")
	return filename
}

// Message is an outgoing mail.
type Message struct {
	From    string
	To      string
	Subject string

	// Text is the plain text body. It is always sent.
	Text string
	// HTML, when set, is sent as an alternative to Text.
	HTML string

	Attachments []Attachment
}

// Build returns the message in RFC 5322 format.
//
// The body is text/plain when there is no HTML part, otherwise a
// multipart/alternative of text and HTML. Attachments wrap the body in a
// multipart/mixed container.
func (m *Message) Build() ([]byte, error) {
	if m.To == "" {
		return nil, errors.New("recipient is required")
	}

	var buf bytes.Buffer
	writeHeader(&buf, "From", m.From)
	writeHeader(&buf, "To", m.To)
	writeHeader(&buf, "Subject", encodeRFC2047(sanitizeHeader(m.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(m.Attachments) == 0 {
		if err := m.writeBody(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	writeContentType(&buf, "multipart/mixed", mixed.Boundary())

	var body bytes.Buffer
	if err := m.writeBody(&body); err != nil {
		return nil, err
	}
	header, content, _ := bytes.Cut(body.Bytes(), []byte("\r\n\r\n"))
	part, err := mixed.CreatePart(parseHeader(header))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}

	for _, a := range m.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBody writes the body headers, a blank line and the body.
func (m *Message) writeBody(buf *bytes.Buffer) error {
	if m.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		return writeQuotedPrintable(buf, m.Text)
	}

	alt := multipart.NewWriter(buf)
	writeContentType(buf, "multipart/alternative", alt.Boundary())
	for _, p := range []struct{ contentType, body string }{
		{"text/plain", m.Text},
		{"text/html", m.HTML},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", p.contentType+"; charset=\"UTF-8\"")
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := alt.CreatePart(h)
		if err != nil {
			return err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return err
		}
		if err := qp.Close(); err != nil {
			return err
		}
	}
	return alt.Close()
}

func writeContentType(buf *bytes.Buffer, mediaType, boundary string) {
	buf.WriteString("Content-Type: " + mime.FormatMediaType(mediaType, map[string]string{"boundary": boundary}) + "\r\n\r\n")
}

func writeAttachment(w *multipart.Writer, a Attachment) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(a.Data)
	for len(encoded) > 76 {
		if _, err := part.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = part.Write([]byte(encoded + "\r\n"))
	return err
}

func writeQuotedPrintable(buf *bytes.Buffer, s string) error {
	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(s)); err != nil {
		return err
	}
	return qp.Close()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	buf.WriteString(key + ": " + sanitizeHeader(value) + "\r\n")
}

func parseHeader(raw []byte) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	for _, line := range strings.Split(string(raw), "\r\n") {
		key, value, ok := strings.Cut(line, ": ")
		if ok {
			h.Set(key, value)
		}
	}
	return h
}

// sanitizeHeader drops line breaks so a value cannot start a new header.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}

// encodeRFC2047 encodes a string for use in email headers according to RFC 2047
// This is necessary for non-ASCII characters (like German umlauts) in subjects
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
