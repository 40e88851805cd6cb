package mailer

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsedEmail struct {
	subject string
	from    []*mail.Address
	to      []*mail.Address
	text    string
	html    string
}

func parse(t *testing.T, raw []byte) parsedEmail {
	t.Helper()

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	var out parsedEmail
	out.subject, err = mr.Header.Subject()
	require.NoError(t, err)
	out.from, err = mr.Header.AddressList("From")
	require.NoError(t, err)
	out.to, err = mr.Header.AddressList("To")
	require.NoError(t, err)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		require.NoError(t, err)
		body, err := io.ReadAll(part.Body)
		require.NoError(t, err)

		switch contentType {
		case "text/plain":
			out.text = string(body)
		case "text/html":
			out.html = string(body)
		}
	}
	return out
}

func TestEmail_Bytes(t *testing.T) {
	email := &Email{
		From:    &mail.Address{Name: "Kostan", Address: "no-reply@kostan.test"},
		To:      []*mail.Address{{Name: "Budi", Address: "budi@example.com"}},
		Subject: "Pengingat pembayaran kost Oktober",
		Text:    "Kamar: A1 • Bulan: Oktober 2025 • Jumlah: Rp 1.500.000",
		HTML:    "<p>Kamar: A1 • Bulan: Oktober 2025</p>",
		Date:    time.Date(2025, time.October, 5, 9, 0, 0, 0, time.UTC),
	}

	raw, err := email.Bytes()
	require.NoError(t, err)

	got := parse(t, raw)
	assert.Equal(t, "Pengingat pembayaran kost Oktober", got.subject)
	require.Len(t, got.from, 1)
	assert.Equal(t, "no-reply@kostan.test", got.from[0].Address)
	require.Len(t, got.to, 1)
	assert.Equal(t, "budi@example.com", got.to[0].Address)
	assert.Equal(t, email.Text, strings.TrimSpace(got.text))
	assert.Equal(t, email.HTML, strings.TrimSpace(got.html))

	assert.Equal(t, []string{"budi@example.com"}, email.Recipients())
}

func TestEmail_TextOnly(t *testing.T) {
	email := &Email{
		From:    &mail.Address{Address: "no-reply@kostan.test"},
		To:      []*mail.Address{{Address: "budi@example.com"}},
		Subject: "Payment Approved",
		Text:    "Your payment for October 2025 has been approved",
		Date:    time.Now(),
	}

	raw, err := email.Bytes()
	require.NoError(t, err)

	got := parse(t, raw)
	assert.Equal(t, email.Text, strings.TrimSpace(got.text))
	assert.Empty(t, got.html)
}
