package forms

import (
	"fmt"
	"net/url"
	"strings"
)

// SignupStep is the phase of the two-step signup flow.
type SignupStep int

const (
	CollectingCredentials SignupStep = iota
	AwaitingConfirmation
)

func (s SignupStep) String() string {
	switch s {
	case CollectingCredentials:
		return "credentials"
	case AwaitingConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("SignupStep(%d)", int(s))
	}
}

// ParseSignupStep maps the posted step name back to a SignupStep. An empty
// string is the first step.
func ParseSignupStep(s string) (SignupStep, error) {
	switch s {
	case "", "credentials":
		return CollectingCredentials, nil
	case "confirmation":
		return AwaitingConfirmation, nil
	default:
		return CollectingCredentials, fmt.Errorf("unknown signup step %q", s)
	}
}

// Form is the render state of one form: what the user typed, which fields
// they have visited, the validation errors, and a form-level error returned
// by a remote call. Disabling the button while a post is in flight is left
// to the browser script.
type Form struct {
	Values  Values
	Errors  Errors
	Touched map[string]bool
	Error   string
}

// New returns an empty form.
func New() *Form {
	return &Form{
		Values:  Values{},
		Errors:  Errors{},
		Touched: map[string]bool{},
	}
}

// FromValues builds a form from posted values, copying only the named
// fields. Fields listed in the posted "touched" value are marked touched.
func FromValues(posted url.Values, fields ...string) *Form {
	f := New()
	for _, field := range fields {
		f.Values[field] = posted.Get(field)
	}
	for _, t := range posted["touched"] {
		for _, field := range strings.Split(t, ",") {
			field = strings.TrimSpace(field)
			if _, ok := f.Values[field]; ok {
				f.Touched[field] = true
			}
		}
	}
	return f
}

// Get returns the value of field.
func (f *Form) Get(field string) string {
	return f.Values[field]
}

// TouchAll marks every known field as touched, as a full submit does.
func (f *Form) TouchAll() {
	for field := range f.Values {
		f.Touched[field] = true
	}
}

// FieldError returns the error for field if the field has been touched.
func (f *Form) FieldError(field string) string {
	if !f.Touched[field] {
		return ""
	}
	return f.Errors[field]
}

// VisibleErrors returns the errors of touched fields only.
func (f *Form) VisibleErrors() Errors {
	visible := Errors{}
	for field, msg := range f.Errors {
		if f.Touched[field] {
			visible[field] = msg
		}
	}
	return visible
}

// Valid reports whether the form has no validation errors.
func (f *Form) Valid() bool {
	return f.Errors.Valid()
}

// Without clears the given fields, used to avoid echoing secrets back.
func (f *Form) Without(fields ...string) *Form {
	for _, field := range fields {
		if _, ok := f.Values[field]; ok {
			f.Values[field] = ""
		}
	}
	return f
}
