// Package email delivers transactional mail.
package email

//go:generate mockgen -source=mailer.go -destination=mocks/mailer_mock.go -package=mocks Mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	client     *sendgrid.Client
	senderName string
	sender     string
}

// NewSendGridMailer creates a SendGrid-backed Mailer.
func NewSendGridMailer(apiKey, sender, senderName string) *SendGridMailer {
	return &SendGridMailer{
		client:     sendgrid.NewSendClient(apiKey),
		sender:     sender,
		senderName: senderName,
	}
}

// Send implements Mailer.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(m.senderName, m.sender)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", response.StatusCode, response.Body)
	}
	log.Debug().Str("to", msg.To).Int("status", response.StatusCode).Msg("Email sent")
	return nil
}

// LogMailer writes emails to the log instead of sending them. Used in development.
type LogMailer struct{}

// Send implements Mailer.
func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("body", msg.Text).Msg("Email (not sent, no provider configured)")
	return nil
}
