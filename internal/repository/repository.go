package repository

import (
	"context"

	"github.com/inkwell/courier/internal/domain"
)

// IssueRepository persists newsletter issues and performs the fan-out that
// creates their delivery tasks. The pgx implementation is in pg_issue_repo.go.
type IssueRepository interface {
	// Publish inserts the issue and one delivery task per confirmed
	// subscriber in a single transaction: either the issue and all its
	// tasks exist afterwards, or none do.
	//
	// When idempotencyKey is non-empty and an issue with that key already
	// exists, the existing issue is reused and the fan-out re-runs with
	// duplicate tasks ignored — so retrying a failed publish call
	// converges to exactly one task per confirmed subscriber.
	// Returns the persisted issue and the number of tasks inserted.
	Publish(ctx context.Context, issue *domain.Issue, idempotencyKey string) (*domain.Issue, int64, error)

	GetByID(ctx context.Context, id string) (*domain.Issue, error)
}

// SubscriberRepository persists subscriber records and confirmation tokens.
// Read-only from the delivery engine's perspective; only the confirmation
// flow mutates status.
type SubscriberRepository interface {
	// Subscribe stores a pending_confirmation subscriber together with its
	// confirmation token. Returns domain.ErrDuplicateSubscriber when the
	// address is already present.
	Subscribe(ctx context.Context, email, token string) error

	// Confirm flips the token's subscriber to confirmed and consumes the
	// token. Returns the subscriber email, or domain.ErrTokenNotFound.
	Confirm(ctx context.Context, token string) (string, error)

	ListConfirmed(ctx context.Context) ([]string, error)
}

// Claim is exclusive, leased ownership of one delivery task by one worker.
// Exactly one of Complete, Retry, Abandon, or Release must be called on
// every claim; each ends the lease. A worker crash ends it too: the lease
// is a row lock that dies with the claiming session.
type Claim interface {
	Task() domain.DeliveryTask

	// Complete deletes the task. Call only after the send durably succeeded.
	Complete(ctx context.Context) error

	// Retry records a failed attempt and leaves the task claimable again.
	Retry(ctx context.Context) error

	// Abandon removes the task without a successful delivery.
	Abandon(ctx context.Context) error

	// Release gives the claim back untouched — no attempt is recorded.
	// Used when the worker could not get as far as trying to send.
	Release(ctx context.Context) error
}

// QueueRepository is the durable delivery queue: the sole coordination
// point between dispatcher workers, which may run as separate processes.
type QueueRepository interface {
	// ClaimNext atomically claims one pending task not held by another
	// worker. Returns (nil, nil) when no task is available. Claims on
	// distinct tasks never block each other.
	ClaimNext(ctx context.Context) (Claim, error)

	// Depth reports the number of pending tasks, for observability.
	Depth(ctx context.Context) (int, error)
}
