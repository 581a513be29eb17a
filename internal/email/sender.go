package email

import "context"

// Sender abstracts the outbound email transport.
// Mocking this interface in tests gives full control over transport
// behaviour without making real HTTP calls.
type Sender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}
