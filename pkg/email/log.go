package email

import (
	"context"
	"log"
	"sync"
)

// LogSender logs emails instead of sending them. Used when no Resend API
// key is configured.
type LogSender struct{}

// NewLogSender creates a new log-based email sender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the email details.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	log.Printf(`
================================================================================
EMAIL [%s] (not sent, RESEND_API_KEY is unset)
================================================================================
To:       %s
Reply-To: %s
Subject:  %s
--------------------------------------------------------------------------------
%s
================================================================================
`, msg.Category, msg.To, msg.ReplyTo, msg.Subject, msg.Text)
	return nil
}

// RecordingSender keeps every message in memory. Tests use it to read back
// confirmation codes and notifications.
type RecordingSender struct {
	mu       sync.Mutex
	messages []Message
}

func (s *RecordingSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (s *RecordingSender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Last returns the most recent message sent to the given address.
func (s *RecordingSender) Last(to string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].To == to {
			return s.messages[i], true
		}
	}
	return Message{}, false
}
