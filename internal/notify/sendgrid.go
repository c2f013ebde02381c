package notify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSink delivers messages through the SendGrid v3 API.
type SendGridSink struct {
	client *sendgrid.Client
}

// NewSendGridSink creates a SendGridSink for the given API key.
func NewSendGridSink(apiKey string) *SendGridSink {
	return &SendGridSink{client: sendgrid.NewSendClient(apiKey)}
}

// Send implements Sink.
func (s *SendGridSink) Send(ctx context.Context, m Message) error {
	if m.To.Email == "" {
		return errors.New("recipient address is empty")
	}

	msg := mail.NewSingleEmail(
		mail.NewEmail(m.From.Name, m.From.Email),
		m.Subject,
		mail.NewEmail(m.To.Name, m.To.Email),
		m.Text,
		m.HTML,
	)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("sendgrid send: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}
