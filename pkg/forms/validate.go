// Package forms holds the field validation rules and per-request form state
// for the login, signup, steps and request-access forms.
package forms

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Field names as posted by the browser.
const (
	FieldEmail            = "email"
	FieldPassword         = "password"
	FieldConfirmPassword  = "confirmPassword"
	FieldConfirmationCode = "confirmationCode"
	FieldSteps            = "steps"
	FieldName             = "name"
	FieldMessage          = "message"
)

const (
	MsgRequired             = "Required"
	MsgInvalidEmail         = "Invalid email address"
	MsgPasswordTooShort     = "Password must be 8 characters or more"
	MsgPasswordMismatch     = "Please confirm your password is correct"
	MsgConfirmationRequired = "You must enter the confirmation code"
	MsgStepsNotPositive     = "Steps must be a positive whole number"
)

// MinPasswordLength is the shortest password accepted by the login and
// signup forms.
const MinPasswordLength = 8

// DefaultMaxDailySteps is the usual daily cap.
const DefaultMaxDailySteps int64 = 30000

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// Values maps field names to submitted values.
type Values map[string]string

// Errors maps field names to a human readable message. A field without an
// entry is valid.
type Errors map[string]string

// Valid reports whether there are no errors at all.
func (e Errors) Valid() bool {
	return len(e) == 0
}

// ValidateLogin checks the login form.
func ValidateLogin(values Values) Errors {
	errs := Errors{}
	validateEmail(errs, values[FieldEmail], true)
	validatePassword(errs, values[FieldPassword])
	return errs
}

// ValidateSignup checks the signup form for the given step. While awaiting
// confirmation the email and password have already been accepted, so only
// the email's presence and the code are checked.
func ValidateSignup(values Values, step SignupStep) Errors {
	errs := Errors{}
	if step == AwaitingConfirmation {
		validateEmail(errs, values[FieldEmail], false)
		if strings.TrimSpace(values[FieldConfirmationCode]) == "" {
			errs[FieldConfirmationCode] = MsgConfirmationRequired
		}
		return errs
	}
	validateEmail(errs, values[FieldEmail], true)
	validatePassword(errs, values[FieldPassword])
	if values[FieldPassword] != values[FieldConfirmPassword] {
		errs[FieldConfirmPassword] = MsgPasswordMismatch
	}
	return errs
}

// ValidateSteps checks the steps form. A max of zero or less disables the
// upper bound.
func ValidateSteps(values Values, max int64) Errors {
	errs := Errors{}
	raw := strings.TrimSpace(values[FieldSteps])
	if raw == "" {
		errs[FieldSteps] = MsgRequired
		return errs
	}
	n, err := ParseSteps(raw)
	if err != nil || n <= 0 {
		errs[FieldSteps] = MsgStepsNotPositive
		return errs
	}
	if max > 0 && n > max {
		errs[FieldSteps] = TooManyStepsMessage(max)
	}
	return errs
}

// ValidateAccessRequest checks the request-access form shown when signup is
// turned off.
func ValidateAccessRequest(values Values) Errors {
	errs := Errors{}
	validateEmail(errs, values[FieldEmail], true)
	if strings.TrimSpace(values[FieldName]) == "" {
		errs[FieldName] = MsgRequired
	}
	return errs
}

// ParseSteps parses a whole number of steps in base 10.
func ParseSteps(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// TooManyStepsMessage formats the over-the-cap message with the cap grouped
// in thousands, e.g. "That's too many steps! The maximum is 30,000".
func TooManyStepsMessage(max int64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("That's too many steps! The maximum is %d", max)
}

func validateEmail(errs Errors, email string, checkPattern bool) {
	switch {
	case email == "":
		errs[FieldEmail] = MsgRequired
	case checkPattern && !emailPattern.MatchString(email):
		errs[FieldEmail] = MsgInvalidEmail
	}
}

func validatePassword(errs Errors, password string) {
	switch {
	case password == "":
		errs[FieldPassword] = MsgRequired
	case len(password) < MinPasswordLength:
		errs[FieldPassword] = MsgPasswordTooShort
	}
}
