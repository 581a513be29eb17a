package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell/courier/internal/domain"
)

type pgQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
//
// The claim protocol is a single-row SELECT ... FOR UPDATE SKIP LOCKED
// inside a transaction that stays open for the lifetime of the claim.
// The row lock is the lease: other workers skip locked rows instead of
// blocking, and if the claiming process dies, Postgres releases the lock
// with the connection, making the task claimable again. No status column
// is needed — a row's presence is the task's entire state.
func NewPgQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &pgQueueRepository{pool: pool}
}

func (r *pgQueueRepository) ClaimNext(ctx context.Context) (Claim, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}

	var t domain.DeliveryTask
	err = tx.QueryRow(ctx, `
		SELECT issue_id, subscriber_email, n_retries
		FROM issue_delivery_queue
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
	).Scan(&t.IssueID, &t.SubscriberEmail, &t.Retries)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return nil, nil
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("claim next task: %w", err)
	}

	return &pgClaim{tx: tx, task: t}, nil
}

func (r *pgQueueRepository) Depth(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM issue_delivery_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// pgClaim holds the claim transaction. Every method ends the transaction,
// on success or failure, so the row lock is released on every exit path.
type pgClaim struct {
	tx   pgx.Tx
	task domain.DeliveryTask
}

func (c *pgClaim) Task() domain.DeliveryTask { return c.task }

func (c *pgClaim) Complete(ctx context.Context) error {
	_, err := c.tx.Exec(ctx, `
		DELETE FROM issue_delivery_queue
		WHERE issue_id = $1 AND subscriber_email = $2`,
		c.task.IssueID, c.task.SubscriberEmail,
	)
	if err != nil {
		_ = c.tx.Rollback(ctx)
		return fmt.Errorf("complete task: %w", err)
	}
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

func (c *pgClaim) Retry(ctx context.Context) error {
	_, err := c.tx.Exec(ctx, `
		UPDATE issue_delivery_queue
		SET n_retries = n_retries + 1
		WHERE issue_id = $1 AND subscriber_email = $2`,
		c.task.IssueID, c.task.SubscriberEmail,
	)
	if err != nil {
		_ = c.tx.Rollback(ctx)
		return fmt.Errorf("record retry: %w", err)
	}
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit retry: %w", err)
	}
	return nil
}

func (c *pgClaim) Abandon(ctx context.Context) error {
	_, err := c.tx.Exec(ctx, `
		DELETE FROM issue_delivery_queue
		WHERE issue_id = $1 AND subscriber_email = $2`,
		c.task.IssueID, c.task.SubscriberEmail,
	)
	if err != nil {
		_ = c.tx.Rollback(ctx)
		return fmt.Errorf("abandon task: %w", err)
	}
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit abandonment: %w", err)
	}
	return nil
}

func (c *pgClaim) Release(ctx context.Context) error {
	if err := c.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}
