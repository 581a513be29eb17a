package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyTitle          = errors.New("issue title must not be empty")
	ErrEmptyTextContent    = errors.New("issue text content must not be empty")
	ErrEmptyHTMLContent    = errors.New("issue html content must not be empty")
	ErrInvalidEmail        = errors.New("invalid subscriber email address")
	ErrDuplicateSubscriber = errors.New("email address is already subscribed")
	ErrTokenNotFound       = errors.New("unknown confirmation token")
)
