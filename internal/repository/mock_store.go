package repository

import (
	"context"
	"sync"
	"time"

	"github.com/inkwell/courier/internal/domain"
)

// MockStore is a hand-written, in-memory implementation of IssueRepository,
// SubscriberRepository, and QueueRepository, backed by one set of maps the
// way the real implementations share one database. Used in unit tests; no
// mock-generation library needed.
//
// Claims honor the same exclusivity contract as the Postgres claim: a task
// held by one claim is invisible to concurrent ClaimNext calls until the
// claim is completed, retried, abandoned, or released.
type MockStore struct {
	mu          sync.Mutex
	issues      map[string]*domain.Issue
	issueByKey  map[string]string // idempotency key -> issue ID
	subscribers map[string]*domain.Subscriber
	tokens      map[string]string // token -> email
	tasks       map[taskKey]*mockTask

	// Optional error overrides — set in tests to simulate failure paths.
	PublishErr   error
	GetByIDErr   error
	ClaimNextErr error
}

type taskKey struct {
	issueID string
	email   string
}

type mockTask struct {
	task    domain.DeliveryTask
	claimed bool
}

func NewMockStore() *MockStore {
	return &MockStore{
		issues:      make(map[string]*domain.Issue),
		issueByKey:  make(map[string]string),
		subscribers: make(map[string]*domain.Subscriber),
		tokens:      make(map[string]string),
		tasks:       make(map[taskKey]*mockTask),
	}
}

// ---- IssueRepository ----

func (m *MockStore) Publish(_ context.Context, issue *domain.Issue, idempotencyKey string) (*domain.Issue, int64, error) {
	if m.PublishErr != nil {
		return nil, 0, m.PublishErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	persisted := issue
	if idempotencyKey != "" {
		if id, ok := m.issueByKey[idempotencyKey]; ok {
			persisted = m.issues[id]
		}
	}
	if _, ok := m.issues[persisted.ID]; !ok {
		clone := *persisted
		m.issues[persisted.ID] = &clone
		if idempotencyKey != "" {
			m.issueByKey[idempotencyKey] = persisted.ID
		}
	}

	var inserted int64
	for email, sub := range m.subscribers {
		if sub.Status != domain.StatusConfirmed {
			continue
		}
		key := taskKey{issueID: persisted.ID, email: email}
		if _, exists := m.tasks[key]; exists {
			continue
		}
		m.tasks[key] = &mockTask{task: domain.DeliveryTask{
			IssueID:         persisted.ID,
			SubscriberEmail: email,
		}}
		inserted++
	}
	return m.issues[persisted.ID], inserted, nil
}

func (m *MockStore) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.issues[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *i
	return &clone, nil
}

// ---- SubscriberRepository ----

func (m *MockStore) Subscribe(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subscribers[email]; exists {
		return domain.ErrDuplicateSubscriber
	}
	m.subscribers[email] = &domain.Subscriber{
		Email:        email,
		Status:       domain.StatusPendingConfirmation,
		SubscribedAt: time.Now().UTC(),
	}
	m.tokens[token] = email
	return nil
}

func (m *MockStore) Confirm(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.tokens[token]
	if !ok {
		return "", domain.ErrTokenNotFound
	}
	m.subscribers[email].Status = domain.StatusConfirmed
	delete(m.tokens, token)
	return email, nil
}

func (m *MockStore) ListConfirmed(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var emails []string
	for email, sub := range m.subscribers {
		if sub.Status == domain.StatusConfirmed {
			emails = append(emails, email)
		}
	}
	return emails, nil
}

// AddConfirmed seeds a confirmed subscriber directly, bypassing the token flow.
func (m *MockStore) AddConfirmed(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[email] = &domain.Subscriber{
		Email:        email,
		Status:       domain.StatusConfirmed,
		SubscribedAt: time.Now().UTC(),
	}
}

// SubscriberStatus reports a subscriber's current status for assertions.
func (m *MockStore) SubscriberStatus(email string) (domain.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[email]
	if !ok {
		return "", false
	}
	return s.Status, true
}

// ---- QueueRepository ----

func (m *MockStore) ClaimNext(_ context.Context) (Claim, error) {
	if m.ClaimNextErr != nil {
		return nil, m.ClaimNextErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.tasks {
		if t.claimed {
			continue
		}
		t.claimed = true
		return &mockClaim{store: m, key: key, task: t.task}, nil
	}
	return nil, nil
}

func (m *MockStore) Depth(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks), nil
}

// TaskRetries reports a pending task's recorded attempts, or -1 if the row
// is gone (delivered or abandoned).
func (m *MockStore) TaskRetries(issueID, email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskKey{issueID: issueID, email: email}]
	if !ok {
		return -1
	}
	return t.task.Retries
}

type mockClaim struct {
	store *MockStore
	key   taskKey
	task  domain.DeliveryTask
}

func (c *mockClaim) Task() domain.DeliveryTask { return c.task }

func (c *mockClaim) Complete(_ context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.tasks, c.key)
	return nil
}

func (c *mockClaim) Retry(_ context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if t, ok := c.store.tasks[c.key]; ok {
		t.task.Retries++
		t.claimed = false
	}
	return nil
}

func (c *mockClaim) Abandon(_ context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.tasks, c.key)
	return nil
}

func (c *mockClaim) Release(_ context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if t, ok := c.store.tasks[c.key]; ok {
		t.claimed = false
	}
	return nil
}
