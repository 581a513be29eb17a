package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/domain"
	"github.com/inkwell/courier/internal/email"
	"github.com/inkwell/courier/internal/ratelimiter"
	"github.com/inkwell/courier/internal/render"
	"github.com/inkwell/courier/internal/repository"
)

// Renderer produces a personalized message from issue content and a
// subscriber address. Render failures are permanent: the same inputs will
// fail identically, so the task is abandoned rather than retried.
type Renderer interface {
	Render(issue *domain.Issue, subscriberEmail string) (*render.Message, error)
}

// Worker is a single goroutine that repeatedly claims one delivery task,
// renders and sends the email, and completes or retries the task. Workers
// share no in-memory state; the durable queue is the only coordination
// point, so workers may equally run in separate processes.
type Worker struct {
	id          int
	queue       repository.QueueRepository
	issues      repository.IssueRepository
	renderer    Renderer
	sender      email.Sender
	limiter     *ratelimiter.Limiter
	sink        Sink
	idleWait    time.Duration
	sendTimeout time.Duration
	maxAttempts int
	logger      *zap.Logger

	// Hooks for metrics — injected by the pool so the worker stays metrics-agnostic.
	onSent    func(latency time.Duration)
	onRetried func()
}

// NewWorker constructs a worker. onSent and onRetried are optional (nil = no-op).
func NewWorker(
	id int,
	queue repository.QueueRepository,
	issues repository.IssueRepository,
	renderer Renderer,
	sender email.Sender,
	limiter *ratelimiter.Limiter,
	sink Sink,
	idleWait time.Duration,
	sendTimeout time.Duration,
	maxAttempts int,
	logger *zap.Logger,
	onSent func(time.Duration),
	onRetried func(),
) *Worker {
	if onSent == nil {
		onSent = func(time.Duration) {}
	}
	if onRetried == nil {
		onRetried = func() {}
	}
	return &Worker{
		id: id, queue: queue, issues: issues, renderer: renderer,
		sender: sender, limiter: limiter, sink: sink,
		idleWait: idleWait, sendTimeout: sendTimeout, maxAttempts: maxAttempts,
		logger: logger, onSent: onSent, onRetried: onRetried,
	}
}

// Run loops claim → render → send → complete until ctx is cancelled.
// Cancellation is only observed between tasks: a claimed task is always
// carried through to completion, retry, or abandonment before the worker
// exits, never dropped mid-flight.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("dispatch worker started", zap.Int("id", w.id))
	for {
		if ctx.Err() != nil {
			w.logger.Info("dispatch worker stopping", zap.Int("id", w.id))
			return
		}

		claim, err := w.queue.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("claim failed", zap.Error(err))
			}
			w.idle(ctx)
			continue
		}
		if claim == nil {
			w.idle(ctx)
			continue
		}

		// The in-flight task must outlive a shutdown signal, so the task
		// body runs on a context detached from cancellation.
		w.process(context.WithoutCancel(ctx), claim)
	}
}

// idle sleeps the configured poll interval, waking early on cancellation.
// This is the only suspension point besides the send call itself.
func (w *Worker) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.idleWait):
	}
}

func (w *Worker) process(ctx context.Context, claim repository.Claim) {
	start := time.Now()
	task := claim.Task()
	log := w.logger.With(
		zap.String("issue_id", task.IssueID),
		zap.String("subscriber_email", task.SubscriberEmail),
	)

	issue, err := w.issues.GetByID(ctx, task.IssueID)
	if errors.Is(err, domain.ErrNotFound) {
		// The FK should make this impossible; nothing a retry could fix.
		w.abandon(ctx, claim, log, err)
		return
	}
	if err != nil {
		log.Error("failed to fetch issue", zap.Error(err))
		w.release(ctx, claim, log)
		return
	}

	msg, err := w.renderer.Render(issue, task.SubscriberEmail)
	if err != nil {
		log.Warn("render failed, abandoning", zap.Error(err))
		w.abandon(ctx, claim, log, err)
		return
	}

	// Block here until the shared rate limiter grants a token.
	if err := w.limiter.Wait(ctx); err != nil {
		w.release(ctx, claim, log)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	err = w.sender.Send(sendCtx, task.SubscriberEmail, msg.Subject, msg.TextBody, msg.HTMLBody)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("send failed",
			zap.Error(err),
			zap.Int("recorded_retries", task.Retries),
		)
		w.handleSendFailure(ctx, claim, log, err)
		return
	}

	// The send durably succeeded; only now may the row disappear.
	if err := claim.Complete(ctx); err != nil {
		// The lease dies with the failed transaction, so another worker
		// will re-claim and re-send: a duplicate, never a loss.
		log.Error("failed to complete task", zap.Error(err))
		return
	}

	w.onSent(elapsed)
	log.Info("issue delivered", zap.Duration("latency", elapsed))
}

// handleSendFailure either leaves the task in place with one more recorded
// attempt, or abandons it once the attempt budget is spent.
func (w *Worker) handleSendFailure(ctx context.Context, claim repository.Claim, log *zap.Logger, sendErr error) {
	attempts := claim.Task().Retries + 1
	if attempts >= w.maxAttempts {
		w.abandon(ctx, claim, log, sendErr)
		return
	}

	if err := claim.Retry(ctx); err != nil {
		log.Error("failed to record retry", zap.Error(err))
		return
	}
	w.onRetried()
}

func (w *Worker) abandon(ctx context.Context, claim repository.Claim, log *zap.Logger, cause error) {
	w.sink.Abandoned(ctx, claim.Task(), cause)
	if err := claim.Abandon(ctx); err != nil {
		log.Error("failed to abandon task", zap.Error(err))
	}
}

func (w *Worker) release(ctx context.Context, claim repository.Claim, log *zap.Logger) {
	if err := claim.Release(ctx); err != nil {
		log.Error("failed to release claim", zap.Error(err))
	}
}
