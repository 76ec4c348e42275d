package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository persists subscription plans and user subscriptions.
type Repository struct {
	q db.Querier
}

// New creates a subscriptions repository.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

const planColumns = `id, name, tier, price, billing_cycle, lead_discount_percent, max_leads_per_month, priority_boost, active`

func scanPlan(row pgx.Row) (SubscriptionPlan, error) {
	var plan SubscriptionPlan
	var cycle string
	err := row.Scan(&plan.ID, &plan.Name, &plan.Tier, &plan.Price, &cycle,
		&plan.LeadDiscountPercent, &plan.MaxLeadsPerMonth, &plan.PriorityBoost, &plan.Active)
	if err != nil {
		return SubscriptionPlan{}, err
	}
	plan.BillingCycle = BillingCycle(cycle)
	return plan, nil
}

// GetPlan returns a plan by id.
func (r *Repository) GetPlan(ctx context.Context, planID uuid.UUID) (SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`

	plan, err := scanPlan(r.q.QueryRow(ctx, query, planID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SubscriptionPlan{}, apperr.NotFound("subscription plan not found")
		}
		return SubscriptionPlan{}, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

// ListActivePlans returns purchasable plans ordered by price.
func (r *Repository) ListActivePlans(ctx context.Context) ([]SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE active = true ORDER BY price ASC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []SubscriptionPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

const subscriptionColumns = `id, user_id, plan_id, status, current_period_start, current_period_end, leads_used, created_at, updated_at`

func scanSubscription(row pgx.Row) (UserSubscription, error) {
	var sub UserSubscription
	var status string
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.LeadsUsed,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return UserSubscription{}, err
	}
	sub.Status = Status(status)
	return sub, nil
}

// expireIfDue corrects a usable subscription whose period has ended. The
// conditional UPDATE makes the correction race-free: concurrent readers
// all converge on EXPIRED without a background sweep.
func (r *Repository) expireIfDue(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE user_subscriptions
		SET status = 'EXPIRED', updated_at = now()
		WHERE user_id = $1 AND status IN ('ACTIVE', 'TRIAL') AND current_period_end <= now()`

	if _, err := r.q.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("expire subscription: %w", err)
	}
	return nil
}

// GetActiveForUser returns the user's usable subscription, lazily expiring
// it first if the period has ended. found=false means no benefits apply.
func (r *Repository) GetActiveForUser(ctx context.Context, userID uuid.UUID) (UserSubscription, bool, error) {
	if err := r.expireIfDue(ctx, userID); err != nil {
		return UserSubscription{}, false, err
	}

	query := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id = $1 AND status IN ('ACTIVE', 'TRIAL')`

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserSubscription{}, false, nil
		}
		return UserSubscription{}, false, fmt.Errorf("get subscription: %w", err)
	}
	return sub, true, nil
}

// Upsert creates or renews the user's subscription in place. Renewal
// resets the lead quota for the new period.
func (r *Repository) Upsert(ctx context.Context, userID, planID uuid.UUID, periodStart, periodEnd time.Time) (UserSubscription, error) {
	query := `
		INSERT INTO user_subscriptions (user_id, plan_id, status, current_period_start, current_period_end, leads_used)
		VALUES ($1, $2, 'ACTIVE', $3, $4, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = 'ACTIVE',
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			leads_used = 0,
			updated_at = now()
		RETURNING ` + subscriptionColumns

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, userID, planID, periodStart, periodEnd))
	if err != nil {
		return UserSubscription{}, fmt.Errorf("upsert subscription: %w", err)
	}
	return sub, nil
}

// Cancel marks the user's subscription cancelled. Benefits stop
// immediately.
func (r *Repository) Cancel(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE user_subscriptions
		SET status = 'CANCELLED', updated_at = now()
		WHERE user_id = $1 AND status IN ('ACTIVE', 'TRIAL')`

	tag, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("no active subscription")
	}
	return nil
}

// TryConsumeLead atomically takes one unit of lead quota and returns the
// plan's discount percent. ok=false means no usable subscription or an
// exhausted quota; the caller falls back to the undiscounted price.
func (r *Repository) TryConsumeLead(ctx context.Context, userID uuid.UUID) (decimal.Decimal, bool, error) {
	if err := r.expireIfDue(ctx, userID); err != nil {
		return decimal.Zero, false, err
	}

	query := `
		UPDATE user_subscriptions s
		SET leads_used = s.leads_used + 1, updated_at = now()
		FROM subscription_plans p
		WHERE s.user_id = $1
			AND s.plan_id = p.id
			AND s.status IN ('ACTIVE', 'TRIAL')
			AND s.current_period_end > now()
			AND s.leads_used < p.max_leads_per_month
		RETURNING p.lead_discount_percent`

	var discount decimal.Decimal
	err := r.q.QueryRow(ctx, query, userID).Scan(&discount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("consume lead quota: %w", err)
	}
	return discount, true, nil
}
