// Package email sends notification emails: access requests to the admin
// and, for the in-memory identity backend, signup confirmation codes.
package email

import "context"

// Category labels a message for delivery reporting.
type Category string

const (
	CategoryAccessRequest    Category = "access_request"
	CategoryConfirmationCode Category = "confirmation_code"
)

// Message is one outgoing email. Text is the plain text fallback for HTML.
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string
	Category Category
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
