package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/domain"
	"github.com/inkwell/courier/internal/repository"
)

// PublisherService accepts newsletter issues and fans them out to the
// delivery queue. Delivery itself is decoupled in time: a publish call
// returns once the issue and all its tasks are committed, and individual
// subscriber failures never surface here.
type PublisherService struct {
	issues      repository.IssueRepository
	logger      *zap.Logger
	onPublished func()
}

// NewPublisherService constructs the service. onPublished is an optional
// metric callback fired once per accepted issue (nil = no-op).
func NewPublisherService(issues repository.IssueRepository, logger *zap.Logger, onPublished func()) *PublisherService {
	if onPublished == nil {
		onPublished = func() {}
	}
	return &PublisherService{issues: issues, logger: logger, onPublished: onPublished}
}

// Publish validates the request and runs the atomic publish transaction.
// On failure the caller may retry the whole call with the same
// idempotencyKey: the repository reuses the issue row and re-runs the
// idempotent fan-out, so retries converge instead of duplicating.
// Returns the persisted issue and the number of delivery tasks enqueued.
func (s *PublisherService) Publish(
	ctx context.Context,
	req domain.PublishIssueRequest,
	idempotencyKey string,
) (*domain.Issue, int64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	issue := &domain.Issue{
		ID:          uuid.New().String(),
		Title:       req.Title,
		TextContent: req.TextContent,
		HTMLContent: req.HTMLContent,
		PublishedAt: time.Now().UTC(),
	}

	persisted, enqueued, err := s.issues.Publish(ctx, issue, idempotencyKey)
	if err != nil {
		return nil, 0, fmt.Errorf("publish issue: %w", err)
	}

	s.onPublished()
	s.logger.Info("issue published",
		zap.String("issue_id", persisted.ID),
		zap.Int64("tasks_enqueued", enqueued),
	)
	return persisted, enqueued, nil
}

func (s *PublisherService) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	return s.issues.GetByID(ctx, id)
}
