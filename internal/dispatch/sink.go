package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/domain"
)

// Sink receives tasks that were permanently abandoned: their retry budget
// ran out or their content could not be rendered. Abandoned tasks are gone
// from the queue; the sink is the only place they remain observable.
type Sink interface {
	Abandoned(ctx context.Context, task domain.DeliveryTask, cause error)
}

// LogSink records abandonments as error-level log entries and fires an
// optional metric callback.
type LogSink struct {
	logger      *zap.Logger
	onAbandoned func()
}

// NewLogSink constructs a LogSink. onAbandoned is optional (nil = no-op).
func NewLogSink(logger *zap.Logger, onAbandoned func()) *LogSink {
	if onAbandoned == nil {
		onAbandoned = func() {}
	}
	return &LogSink{logger: logger, onAbandoned: onAbandoned}
}

func (s *LogSink) Abandoned(_ context.Context, task domain.DeliveryTask, cause error) {
	s.logger.Error("delivery task abandoned",
		zap.String("issue_id", task.IssueID),
		zap.String("subscriber_email", task.SubscriberEmail),
		zap.Int("recorded_retries", task.Retries),
		zap.Error(cause),
	)
	s.onAbandoned()
}

// compile-time check that LogSink implements Sink
var _ Sink = (*LogSink)(nil)
