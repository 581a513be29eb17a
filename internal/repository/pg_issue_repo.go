package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell/courier/internal/domain"
)

type pgIssueRepository struct {
	pool *pgxpool.Pool
}

// NewPgIssueRepository returns an IssueRepository backed by PostgreSQL.
func NewPgIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &pgIssueRepository{pool: pool}
}

// Publish runs the fan-out transaction: insert the issue row, then insert
// one queue row per confirmed subscriber as of this transaction's snapshot.
// A subscriber who confirms after the snapshot is not retroactively added.
func (r *pgIssueRepository) Publish(ctx context.Context, issue *domain.Issue, idempotencyKey string) (*domain.Issue, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin publish transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	persisted := issue

	if idempotencyKey != "" {
		existing, err := issueByIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, 0, err
		}
		if existing != nil {
			persisted = existing
		}
	}

	if persisted == issue {
		var key *string
		if idempotencyKey != "" {
			key = &idempotencyKey
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO issues (issue_id, title, text_content, html_content, published_at, idempotency_key)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			issue.ID, issue.Title, issue.TextContent, issue.HTMLContent, issue.PublishedAt, key,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("insert issue: %w", err)
		}
	}

	// One task per confirmed subscriber, snapshotted inside this
	// transaction. ON CONFLICT makes a re-run for the same issue a no-op
	// per already-enqueued subscriber rather than an error.
	tag, err := tx.Exec(ctx, `
		INSERT INTO issue_delivery_queue (issue_id, subscriber_email)
		SELECT $1, email
		FROM subscriptions
		WHERE status = 'confirmed'
		ON CONFLICT (issue_id, subscriber_email) DO NOTHING`,
		persisted.ID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("enqueue delivery tasks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit publish: %w", err)
	}

	return persisted, tag.RowsAffected(), nil
}

func (r *pgIssueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT issue_id, title, text_content, html_content, published_at
		FROM issues WHERE issue_id = $1`, id)

	var i domain.Issue
	err := row.Scan(&i.ID, &i.Title, &i.TextContent, &i.HTMLContent, &i.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &i, nil
}

func issueByIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (*domain.Issue, error) {
	row := tx.QueryRow(ctx, `
		SELECT issue_id, title, text_content, html_content, published_at
		FROM issues WHERE idempotency_key = $1`, key)

	var i domain.Issue
	err := row.Scan(&i.ID, &i.Title, &i.TextContent, &i.HTMLContent, &i.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return &i, nil
}
