// Package steps is the client for the remote steps API: read the running
// total and submit today's count.
package steps

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AlreadySubmittedMessage is shown when today's steps were already recorded.
const AlreadySubmittedMessage = "You have already submitted your steps today"

// Record is the aggregate returned by GET /steps.
type Record struct {
	Steps        int64
	CalculatedAt time.Time
}

type recordJSON struct {
	Steps        *int64 `json:"steps"`
	CalculatedAt *int64 `json:"calculated_at"`
}

// UnmarshalJSON decodes {"steps": n, "calculated_at": epoch-millis}.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Steps == nil {
		return errors.New("missing steps")
	}
	r.Steps = *raw.Steps
	r.CalculatedAt = time.Time{}
	if raw.CalculatedAt != nil {
		r.CalculatedAt = time.UnixMilli(*raw.CalculatedAt).UTC()
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := struct {
		Steps        int64 `json:"steps"`
		CalculatedAt int64 `json:"calculated_at"`
	}{Steps: r.Steps}
	if !r.CalculatedAt.IsZero() {
		out.CalculatedAt = r.CalculatedAt.UnixMilli()
	}
	return json.Marshal(out)
}

// Add returns the record with n more steps, stamped at now.
func (r Record) Add(n int64, now time.Time) Record {
	return Record{Steps: r.Steps + n, CalculatedAt: now}
}

// Kind classifies API failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindAlreadySubmitted
	KindUnauthorized
	KindUnavailable
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindAlreadySubmitted:
		return "already_submitted"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Error is a failed API call.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return "request failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors that did not come from this package are
// sniffed for a "400" status in their text, which is how a duplicate
// submission surfaced before the API boundary classified it.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if strings.Contains(err.Error(), "400") {
		return KindAlreadySubmitted
	}
	return KindUnknown
}

// UserMessage is the text to show for a failed submission.
func UserMessage(err error) string {
	if KindOf(err) == KindAlreadySubmitted {
		return AlreadySubmittedMessage
	}
	return err.Error()
}
