package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/config"
	"github.com/inkwell/courier/internal/dispatch"
	"github.com/inkwell/courier/internal/email"
	"github.com/inkwell/courier/internal/ratelimiter"
	"github.com/inkwell/courier/internal/render"
	"github.com/inkwell/courier/internal/repository"
)

// blockingSender parks inside Send until released, so a test can cancel the
// pool while a delivery is in flight.
type blockingSender struct {
	entered chan struct{}
	release chan struct{}

	mu   sync.Mutex
	sent []string
}

func newBlockingSender() *blockingSender {
	return &blockingSender{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *blockingSender) Send(ctx context.Context, to, _, _, _ string) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return nil
}

func (s *blockingSender) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Cancelling the pool while a send is in flight must not drop the task:
// the worker finishes the delivery and completes the claim before exiting.
func TestPool_InFlightTaskSurvivesShutdown(t *testing.T) {
	store := repository.NewMockStore()
	publishTestIssue(t, store, "a@x.test")
	sender := newBlockingSender()
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := dispatchPool(testConfig(1, 3), store, sender, sink)
	pool.Start(ctx)

	select {
	case <-sender.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never started sending")
	}

	// Shutdown arrives mid-send.
	cancel()
	close(sender.release)
	pool.Wait()

	if got := sender.delivered(); len(got) != 1 || got[0] != "a@x.test" {
		t.Fatalf("expected the in-flight delivery to finish, got %v", got)
	}
	depth, _ := store.Depth(context.Background())
	if depth != 0 {
		t.Fatalf("expected the completed task to leave the queue, got depth %d", depth)
	}
	if len(sink.abandoned()) != 0 {
		t.Fatalf("expected no abandonments, got %d", len(sink.abandoned()))
	}
}

// Workers polling an empty queue must exit promptly when the pool is
// cancelled instead of sleeping out their poll interval.
func TestPool_IdleWorkersExitOnCancel(t *testing.T) {
	store := repository.NewMockStore()
	sender := newScriptedSender()
	sink := &recordingSink{}

	cfg := testConfig(2, 3)
	cfg.IdlePollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	pool := dispatchPool(cfg, store, sender, sink)
	pool.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("idle workers did not exit after cancellation")
	}
}

func dispatchPool(cfg *config.Config, store *repository.MockStore, sender email.Sender, sink dispatch.Sink) *dispatch.Pool {
	return dispatch.NewPool(
		cfg, store, store, render.New(), sender,
		ratelimiter.New(1000), sink, zap.NewNop(), dispatch.MetricHooks{},
	)
}
