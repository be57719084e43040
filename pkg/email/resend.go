package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

// DefaultSendTimeout bounds one call to the Resend API.
const DefaultSendTimeout = 10 * time.Second

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

type ResendOption func(*resend.Client)

// WithBaseURL points the sender at another API root, such as a local stub.
func WithBaseURL(u *url.URL) ResendOption {
	return func(c *resend.Client) { c.BaseURL = u }
}

// NewResendSender creates a sender that mails from the given address.
func NewResendSender(apiKey, from string, opts ...ResendOption) *ResendSender {
	client := resend.NewCustomClient(&http.Client{Timeout: DefaultSendTimeout}, apiKey)
	for _, opt := range opts {
		opt(client)
	}
	return &ResendSender{client: client, from: from}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.Category != "" {
		req.Tags = []resend.Tag{{Name: "category", Value: string(msg.Category)}}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("send %s email to %s: %w", msg.Category, msg.To, err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("send %s email to %s: no message id returned", msg.Category, msg.To)
	}
	return nil
}
