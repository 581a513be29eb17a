package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/domain"
	"github.com/inkwell/courier/internal/repository"
	"github.com/inkwell/courier/internal/service"
)

var validIssue = domain.PublishIssueRequest{
	Title:       "Issue #1",
	TextContent: "Plain text body",
	HTMLContent: "<p>HTML body</p>",
}

func newPublisher() (*service.PublisherService, *repository.MockStore) {
	store := repository.NewMockStore()
	svc := service.NewPublisherService(store, zap.NewNop(), nil)
	return svc, store
}

// Publishing with three confirmed and one pending subscriber must enqueue
// exactly three tasks — the pending address is excluded by the snapshot.
func TestPublisherService_Publish_FanOut(t *testing.T) {
	svc, store := newPublisher()
	ctx := context.Background()

	for _, email := range []string{"a@x.test", "b@x.test", "c@x.test"} {
		store.AddConfirmed(email)
	}
	if err := store.Subscribe(ctx, "d@x.test", "tok-d"); err != nil {
		t.Fatal(err)
	}

	issue, enqueued, err := svc.Publish(ctx, validIssue, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issue.ID == "" {
		t.Fatal("expected a non-empty issue ID")
	}
	if enqueued != 3 {
		t.Fatalf("expected 3 tasks enqueued, got %d", enqueued)
	}

	depth, _ := store.Depth(ctx)
	if depth != 3 {
		t.Fatalf("expected queue depth 3, got %d", depth)
	}
	if n := store.TaskRetries(issue.ID, "d@x.test"); n != -1 {
		t.Fatal("pending subscriber must not receive a task")
	}
}

func TestPublisherService_Publish_InvalidRequest(t *testing.T) {
	svc, store := newPublisher()
	store.AddConfirmed("a@x.test")

	bad := validIssue
	bad.Title = ""
	_, _, err := svc.Publish(context.Background(), bad, "")
	if err != domain.ErrEmptyTitle {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	depth, _ := store.Depth(context.Background())
	if depth != 0 {
		t.Fatalf("validation failure must enqueue nothing, got depth %d", depth)
	}
}

// Retrying a publish with the same idempotency key must reuse the issue and
// converge to one task per subscriber, never a duplicate.
func TestPublisherService_Publish_IdempotentRetry(t *testing.T) {
	svc, store := newPublisher()
	ctx := context.Background()
	store.AddConfirmed("a@x.test")
	store.AddConfirmed("b@x.test")

	first, n1, err := svc.Publish(ctx, validIssue, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n1 != 2 {
		t.Fatalf("expected 2 tasks on first publish, got %d", n1)
	}

	second, n2, err := svc.Publish(ctx, validIssue, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same issue to be reused, got %s and %s", first.ID, second.ID)
	}
	if n2 != 0 {
		t.Fatalf("expected no new tasks on retry, got %d", n2)
	}

	depth, _ := store.Depth(ctx)
	if depth != 2 {
		t.Fatalf("expected queue depth 2 after retry, got %d", depth)
	}
}

func TestPublisherService_Publish_RepositoryFailure(t *testing.T) {
	svc, store := newPublisher()
	store.AddConfirmed("a@x.test")
	store.PublishErr = errors.New("connection lost")

	_, _, err := svc.Publish(context.Background(), validIssue, "")
	if err == nil {
		t.Fatal("expected error when the publish transaction fails")
	}

	store.PublishErr = nil
	depth, _ := store.Depth(context.Background())
	if depth != 0 {
		t.Fatalf("failed publish must enqueue nothing, got depth %d", depth)
	}
}
