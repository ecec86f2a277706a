package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore/order-inventory/internal/apperr"
)

// StatsRepo maintains per-user order aggregates. Callers treat failures
// here as best-effort bookkeeping, never as a reason to roll back.
type StatsRepo struct{ DB *pgxpool.Pool }

func (r *StatsRepo) Increment(ctx context.Context, userID string, orders int, spentCents int64) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users
		SET total_orders = total_orders + $2,
		    total_spent_cents = total_spent_cents + $3
		WHERE id = $1`, userID, orders, spentCents)
	if err != nil {
		return apperr.Internal("update user stats", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("user %s not found", userID)
	}
	return nil
}
