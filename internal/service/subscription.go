package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/domain"
	"github.com/inkwell/courier/internal/email"
	"github.com/inkwell/courier/internal/repository"
)

// SubscriptionService handles the subscriber confirmation flow: new
// addresses enter as pending_confirmation and become delivery-eligible only
// after following the emailed confirmation link.
type SubscriptionService struct {
	subscribers repository.SubscriberRepository
	sender      email.Sender
	baseURL     string
	logger      *zap.Logger
}

func NewSubscriptionService(
	subscribers repository.SubscriberRepository,
	sender email.Sender,
	baseURL string,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscribers: subscribers,
		sender:      sender,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// Subscribe stores the address as pending and emails its confirmation link.
// The confirmation email is best-effort: a transport failure leaves the
// pending row and token in place, and the address can re-request later.
func (s *SubscriptionService) Subscribe(ctx context.Context, address string) error {
	if err := domain.ValidateEmail(address); err != nil {
		return err
	}

	token := uuid.New().String()
	if err := s.subscribers.Subscribe(ctx, address, token); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/subscriptions/confirm?token=%s", s.baseURL, token)
	err := s.sender.Send(ctx, address,
		"Confirm your subscription",
		fmt.Sprintf("Welcome! Visit %s to confirm your subscription.", link),
		fmt.Sprintf(`<p>Welcome!</p><p><a href=%q>Click here</a> to confirm your subscription.</p>`, link),
	)
	if err != nil {
		s.logger.Warn("confirmation email failed",
			zap.String("email", address), zap.Error(err))
	}
	return nil
}

// Confirm consumes a token and marks its subscriber as confirmed, making
// the address eligible for future issues (never retroactively for past ones).
func (s *SubscriptionService) Confirm(ctx context.Context, token string) (string, error) {
	address, err := s.subscribers.Confirm(ctx, token)
	if err != nil {
		return "", err
	}
	s.logger.Info("subscription confirmed", zap.String("email", address))
	return address, nil
}
