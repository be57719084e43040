package httpserver

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
	"github.com/Rigellute/walk-the-world-frontend/pkg/session"
)

// Props is resolved once per request and handed to every view.
type Props struct {
	Session session.State
	// SessionID and Tokens are empty unless the session resolved to a
	// stored, live session.
	SessionID string
	Tokens    identity.Tokens

	Flash         *Notice
	Lang          language.Tag
	Printer       *message.Printer
	SignupEnabled bool
}

// Page wraps view specific content with the shared props.
type Page[T any] struct {
	Title   string
	Props   Props
	Content T
}

func newPage[T any](title string, props Props, content T) Page[T] {
	return Page[T]{Title: title, Props: props, Content: content}
}
