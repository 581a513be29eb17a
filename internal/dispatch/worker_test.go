package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/config"
	"github.com/inkwell/courier/internal/dispatch"
	"github.com/inkwell/courier/internal/domain"
	"github.com/inkwell/courier/internal/ratelimiter"
	"github.com/inkwell/courier/internal/render"
	"github.com/inkwell/courier/internal/repository"
)

// scriptedSender fails the first failFirst[to] attempts for an address,
// then succeeds. It records every attempt.
type scriptedSender struct {
	mu        sync.Mutex
	attempts  map[string]int
	failFirst map[string]int
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		attempts:  make(map[string]int),
		failFirst: make(map[string]int),
	}
}

func (s *scriptedSender) Send(_ context.Context, to, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[to]++
	if s.attempts[to] <= s.failFirst[to] {
		return fmt.Errorf("transport refused %s (attempt %d)", to, s.attempts[to])
	}
	return nil
}

func (s *scriptedSender) attemptCount(to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[to]
}

// recordingSink captures abandoned tasks.
type recordingSink struct {
	mu    sync.Mutex
	tasks []domain.DeliveryTask
}

func (s *recordingSink) Abandoned(_ context.Context, task domain.DeliveryTask, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *recordingSink) abandoned() []domain.DeliveryTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DeliveryTask(nil), s.tasks...)
}

func testConfig(workers, maxAttempts int) *config.Config {
	return &config.Config{
		DispatchWorkers:     workers,
		IdlePollInterval:    5 * time.Millisecond,
		SendTimeout:         time.Second,
		MaxDeliveryAttempts: maxAttempts,
	}
}

func publishTestIssue(t *testing.T, store *repository.MockStore, confirmed ...string) *domain.Issue {
	t.Helper()
	for _, email := range confirmed {
		store.AddConfirmed(email)
	}
	issue := &domain.Issue{
		ID:          "22222222-0000-0000-0000-000000000000",
		Title:       "Issue",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
		PublishedAt: time.Now().UTC(),
	}
	persisted, _, err := store.Publish(context.Background(), issue, "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return persisted
}

// drain runs a pool until the queue is empty (or the timeout passes), then
// shuts it down and waits for the workers to exit.
func drain(t *testing.T, cfg *config.Config, store *repository.MockStore, sender *scriptedSender, sink dispatch.Sink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := dispatch.NewPool(
		cfg, store, store, render.New(), sender,
		ratelimiter.New(1000), sink, zap.NewNop(), dispatch.MetricHooks{},
	)
	pool.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		depth, err := store.Depth(ctx)
		if err != nil {
			t.Fatalf("depth: %v", err)
		}
		if depth == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	pool.Wait()

	depth, _ := store.Depth(context.Background())
	if depth != 0 {
		t.Fatalf("queue not drained: %d tasks remain", depth)
	}
}

func TestWorker_DrainsQueue(t *testing.T) {
	store := repository.NewMockStore()
	publishTestIssue(t, store, "a@x.test", "b@x.test", "c@x.test")
	sender := newScriptedSender()
	sink := &recordingSink{}

	drain(t, testConfig(3, 3), store, sender, sink)

	for _, email := range []string{"a@x.test", "b@x.test", "c@x.test"} {
		if n := sender.attemptCount(email); n != 1 {
			t.Fatalf("%s: expected exactly 1 send, got %d", email, n)
		}
	}
	if len(sink.abandoned()) != 0 {
		t.Fatalf("expected no abandonments, got %d", len(sink.abandoned()))
	}
}

// A subscriber whose sends fail twice and succeed on the third claim is
// delivered without disturbing the other subscribers' single sends.
func TestWorker_RetriesThenSucceeds(t *testing.T) {
	store := repository.NewMockStore()
	publishTestIssue(t, store, "a@x.test", "b@x.test", "c@x.test")
	sender := newScriptedSender()
	sender.failFirst["b@x.test"] = 2
	sink := &recordingSink{}

	drain(t, testConfig(2, 3), store, sender, sink)

	if n := sender.attemptCount("b@x.test"); n != 3 {
		t.Fatalf("b@x.test: expected 3 attempts, got %d", n)
	}
	for _, email := range []string{"a@x.test", "c@x.test"} {
		if n := sender.attemptCount(email); n != 1 {
			t.Fatalf("%s: expected 1 attempt, got %d", email, n)
		}
	}
	if len(sink.abandoned()) != 0 {
		t.Fatalf("expected no abandonments, got %d", len(sink.abandoned()))
	}
}

// Once the attempt budget is exhausted the task is removed and recorded in
// the sink, never retried again.
func TestWorker_AbandonsAfterBudget(t *testing.T) {
	store := repository.NewMockStore()
	publishTestIssue(t, store, "a@x.test", "b@x.test")
	sender := newScriptedSender()
	sender.failFirst["b@x.test"] = 1000
	sink := &recordingSink{}

	drain(t, testConfig(2, 2), store, sender, sink)

	if n := sender.attemptCount("b@x.test"); n != 2 {
		t.Fatalf("b@x.test: expected exactly 2 attempts, got %d", n)
	}
	if n := sender.attemptCount("a@x.test"); n != 1 {
		t.Fatalf("a@x.test: expected 1 attempt, got %d", n)
	}

	abandoned := sink.abandoned()
	if len(abandoned) != 1 {
		t.Fatalf("expected 1 abandoned task, got %d", len(abandoned))
	}
	if abandoned[0].SubscriberEmail != "b@x.test" {
		t.Fatalf("wrong task abandoned: %s", abandoned[0].SubscriberEmail)
	}
}

// failingRenderer simulates unrenderable content.
type failingRenderer struct{}

func (failingRenderer) Render(*domain.Issue, string) (*render.Message, error) {
	return nil, errors.New("template exploded")
}

// Render failures are permanent: the task is abandoned on the first attempt
// and the transport is never called.
func TestWorker_RenderFailureAbandonsImmediately(t *testing.T) {
	store := repository.NewMockStore()
	publishTestIssue(t, store, "a@x.test")
	sender := newScriptedSender()
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := dispatch.NewPool(
		testConfig(1, 3), store, store, failingRenderer{}, sender,
		ratelimiter.New(1000), sink, zap.NewNop(), dispatch.MetricHooks{},
	)
	pool.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.abandoned()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	pool.Wait()

	if len(sink.abandoned()) != 1 {
		t.Fatalf("expected 1 abandoned task, got %d", len(sink.abandoned()))
	}
	if sender.attemptCount("a@x.test") != 0 {
		t.Fatal("transport must not be called for unrenderable content")
	}
	depth, _ := store.Depth(context.Background())
	if depth != 0 {
		t.Fatalf("abandoned task must leave the queue, got depth %d", depth)
	}
}

// An infrastructure error fetching the issue releases the claim without
// spending any of the task's retry budget.
func TestWorker_IssueFetchErrorReleasesClaim(t *testing.T) {
	store := repository.NewMockStore()
	issue := publishTestIssue(t, store, "a@x.test")
	store.GetByIDErr = errors.New("db unavailable")
	sender := newScriptedSender()
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := dispatch.NewPool(
		testConfig(1, 3), store, store, render.New(), sender,
		ratelimiter.New(1000), sink, zap.NewNop(), dispatch.MetricHooks{},
	)
	pool.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	pool.Wait()

	if n := store.TaskRetries(issue.ID, "a@x.test"); n != 0 {
		t.Fatalf("infra errors must not consume the retry budget, got %d (gone = -1)", n)
	}
	if len(sink.abandoned()) != 0 {
		t.Fatalf("expected no abandonments, got %d", len(sink.abandoned()))
	}
}
