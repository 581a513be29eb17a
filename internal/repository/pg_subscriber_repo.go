package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell/courier/internal/domain"
)

type pgSubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubscriberRepository returns a SubscriberRepository backed by PostgreSQL.
func NewPgSubscriberRepository(pool *pgxpool.Pool) SubscriberRepository {
	return &pgSubscriberRepository{pool: pool}
}

func (r *pgSubscriberRepository) Subscribe(ctx context.Context, email, token string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin subscribe transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (email, status, subscribed_at)
		VALUES ($1, $2, $3)`,
		email, domain.StatusPendingConfirmation, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateSubscriber
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO subscription_tokens (token, subscriber_email)
		VALUES ($1, $2)`,
		token, email,
	)
	if err != nil {
		return fmt.Errorf("insert subscription token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit subscribe: %w", err)
	}
	return nil
}

func (r *pgSubscriberRepository) Confirm(ctx context.Context, token string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin confirm transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var email string
	err = tx.QueryRow(ctx, `
		SELECT subscriber_email FROM subscription_tokens WHERE token = $1`,
		token,
	).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup token: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE subscriptions SET status = $1 WHERE email = $2`,
		domain.StatusConfirmed, email,
	)
	if err != nil {
		return "", fmt.Errorf("confirm subscription: %w", err)
	}

	// Tokens are single-use.
	_, err = tx.Exec(ctx, `DELETE FROM subscription_tokens WHERE token = $1`, token)
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit confirm: %w", err)
	}
	return email, nil
}

func (r *pgSubscriberRepository) ListConfirmed(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT email FROM subscriptions WHERE status = $1 ORDER BY email`,
		domain.StatusConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
