package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/config"
	"github.com/inkwell/courier/internal/email"
	"github.com/inkwell/courier/internal/ratelimiter"
	"github.com/inkwell/courier/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnSent    func(latency time.Duration)
	OnRetried func()
}

// Pool manages the lifecycle of all dispatch workers. Workers are identical
// and race on the durable queue; adding workers adds throughput, not new
// coordination.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.DispatchWorkers workers sharing one rate limiter,
// one transport, and one abandonment sink.
func NewPool(
	cfg *config.Config,
	queue repository.QueueRepository,
	issues repository.IssueRepository,
	renderer Renderer,
	sender email.Sender,
	limiter *ratelimiter.Limiter,
	sink Sink,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, cfg.DispatchWorkers)

	for i := range workers {
		workers[i] = NewWorker(
			i, queue, issues, renderer, sender, limiter, sink,
			cfg.IdlePollInterval,
			cfg.SendTimeout,
			cfg.MaxDeliveryAttempts,
			logger.With(zap.Int("worker_id", i)),
			hooks.OnSent,
			hooks.OnRetried,
		)
	}

	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight tasks finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
