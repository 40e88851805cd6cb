// Package mailer composes and sends notification emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Sender hands a composed RFC 5322 message to a mail transport
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Email is a multipart/alternative message with a plain text and an HTML body
type Email struct {
	From    *mail.Address
	To      []*mail.Address
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// Recipients returns the bare addresses of To for the SMTP envelope
func (e *Email) Recipients() []string {
	out := make([]string, len(e.To))
	for i, a := range e.To {
		out[i] = a.Address
	}
	return out
}

// Bytes renders the email
func (e *Email) Bytes() ([]byte, error) {
	var h mail.Header
	h.SetDate(e.Date)
	h.SetAddressList("From", []*mail.Address{e.From})
	h.SetAddressList("To", e.To)
	h.SetSubject(e.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail writer: %w", err)
	}

	inline, err := w.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}
	if err := writePart(inline, "text/plain", e.Text); err != nil {
		return nil, err
	}
	if e.HTML != "" {
		if err := writePart(inline, "text/html", e.HTML); err != nil {
			return nil, err
		}
	}
	if err := inline.Close(); err != nil {
		return nil, fmt.Errorf("failed to close inline part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(inline *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	part, err := inline.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(part, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return part.Close()
}
