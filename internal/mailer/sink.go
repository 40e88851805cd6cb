package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/thoriqulumar/kostan-be/internal/notification"
	"github.com/thoriqulumar/kostan-be/internal/user"
)

const sendTimeout = 30 * time.Second

// Recipients resolves the user a notification is addressed to. A nil user
// means there is nobody to mail.
type Recipients interface {
	Recipient(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// EmailSink mails every published notification to its owner
type EmailSink struct {
	sender     Sender
	recipients Recipients
	from       *mail.Address
	logger     *slog.Logger
	now        func() time.Time
}

// NewEmailSink creates a sink sending from the given address, which may
// carry a display name ("Kostan <no-reply@example.com>")
func NewEmailSink(sender Sender, recipients Recipients, from string, logger *slog.Logger) (*EmailSink, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	return &EmailSink{
		sender:     sender,
		recipients: recipients,
		from:       addr,
		logger:     logger.With("component", "mailer"),
		now:        time.Now,
	}, nil
}

// Name implements notification.Sink
func (s *EmailSink) Name() string { return "email" }

// Deliver implements notification.Sink
func (s *EmailSink) Deliver(ctx context.Context, n *notification.Notification) error {
	u, err := s.recipients.Recipient(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if u == nil {
		s.logger.Debug("no active recipient, email skipped", "user_id", n.UserID, "notification_id", n.ID)
		return nil
	}

	email := s.compose(u, n)
	msg, err := email.Bytes()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.sender.Send(ctx, s.from.Address, email.Recipients(), msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", u.Email, err)
	}

	s.logger.Info("email sent", "user_id", u.ID, "notification_id", n.ID, "type", n.Kind)
	return nil
}

func (s *EmailSink) compose(u *user.User, n *notification.Notification) *Email {
	heading := headings[n.Kind]
	if heading == "" {
		heading = n.Title
	}

	var text, body strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n%s\n", u.FullName, n.Message)
	fmt.Fprintf(&body, "<h2>%s</h2>\n<p>Hi %s,</p>\n<p>%s</p>\n",
		html.EscapeString(heading), html.EscapeString(u.FullName), html.EscapeString(n.Message))

	if n.Kind == notification.KindPaymentReminder {
		text.WriteString("\nTolong upload bukti pembayaran via website setelah pembayaran selesai dilakukan.\n")
		body.WriteString("<p>Tolong upload bukti pembayaran via website setelah pembayaran selesai dilakukan.</p>\n")
	}
	text.WriteString("\nTerima kasih!\n")
	body.WriteString("<br>\n<p>Terima kasih!</p>\n")

	return &Email{
		From:    s.from,
		To:      []*mail.Address{{Name: u.FullName, Address: u.Email}},
		Subject: n.Title,
		Text:    text.String(),
		HTML:    body.String(),
		Date:    s.now(),
	}
}

var headings = map[notification.Kind]string{
	notification.KindPaymentReminder: "Payment Reminder",
	notification.KindPaymentApproved: "Payment Approved",
	notification.KindPaymentRejected: "Payment Rejected",
}
