package domain

import (
	"strings"
	"time"
	"unicode"
)

// Status tracks the confirmation state of a subscriber.
type Status string

const (
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusConfirmed           Status = "confirmed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingConfirmation, StatusConfirmed:
		return true
	}
	return false
}

// Subscriber is an email address with a confirmation status.
// The email is the identity; only the confirmation flow mutates the status.
type Subscriber struct {
	Email        string    `json:"email"`
	Status       Status    `json:"status"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

const maxEmailLength = 256

// ValidateEmail checks the subscriber address format.
// Deliverability is the transport's problem; this only rejects addresses
// that cannot possibly be valid: empty, oversized, containing whitespace,
// or without exactly one @ separating non-empty local and domain parts.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return ErrInvalidEmail
	}
	for _, r := range email {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidEmail
		}
	}
	at := strings.Count(email, "@")
	if at != 1 {
		return ErrInvalidEmail
	}
	local, dom, _ := strings.Cut(email, "@")
	if local == "" || dom == "" {
		return ErrInvalidEmail
	}
	return nil
}
