package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"apgc/backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEventNotFound          = errors.New("event not found")
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrPaymentStateNotAllowed = errors.New("payment state not allowed")
	ErrTicketStateNotAllowed  = errors.New("ticket state not allowed")
	ErrTicketCodeExhausted    = errors.New("could not allocate a unique ticket code")
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ResolveEvent loads the event a reference points at.
func (r *Repository) ResolveEvent(ctx context.Context, ref models.EventRef) (models.Event, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, title, starts_at, location, price_amount, discount_category, discounted_price_amount
FROM events
WHERE id = $1`, ref.ID)
	out, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, ErrEventNotFound
	}
	return out, err
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var out models.Event
	var discountCategory sql.NullString
	err := row.Scan(&out.ID, &out.Title, &out.StartsAt, &out.Location, &out.PriceAmount, &discountCategory, &out.DiscountedPrice)
	if discountCategory.Valid {
		out.DiscountCategory = discountCategory.String
	}
	return out, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func nullString(val string) interface{} {
	if val == "" {
		return nil
	}
	return val
}

func notFoundOr(err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}
