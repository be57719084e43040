package session

import (
	"time"
)

// PendingSignupTTL is how long credentials are held between the two
// signup steps.
const PendingSignupTTL = 30 * time.Minute

// PendingSignup holds the credentials entered in the first signup step so
// the second step can sign in after confirming. It travels in a sealed
// cookie scoped to /signup.
type PendingSignup struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

func (p PendingSignup) expired(now time.Time) bool {
	return now.Sub(p.CreatedAt) > PendingSignupTTL
}
