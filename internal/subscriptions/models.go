// Package subscriptions manages provider subscription plans: tier boosts
// for routing, per-month lead quotas, and lead cost discounts. Expiry is
// lazy: any reader that notices a subscription past its period end corrects
// the status before using it for quota or pricing decisions.
package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a user subscription.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusTrial     Status = "TRIAL"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Usable reports whether the subscription grants benefits.
func (s Status) Usable() bool {
	return s == StatusActive || s == StatusTrial
}

// BillingCycle determines the subscription period length.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// PeriodLength returns the duration of one billing period.
func (c BillingCycle) PeriodLength() time.Duration {
	if c == CycleYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// SubscriptionPlan is a purchasable tier.
type SubscriptionPlan struct {
	ID                  uuid.UUID
	Name                string
	Tier                string
	Price               decimal.Decimal
	BillingCycle        BillingCycle
	LeadDiscountPercent decimal.Decimal
	MaxLeadsPerMonth    int
	PriorityBoost       int
	Active              bool
}

// UserSubscription is one user's subscription to a plan. At most one row
// exists per user; renewal updates it in place.
type UserSubscription struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	PlanID             uuid.UUID
	Status             Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	LeadsUsed          int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Expired reports whether the period end has passed at the given instant.
func (s UserSubscription) Expired(now time.Time) bool {
	return !s.CurrentPeriodEnd.After(now)
}

// ApplyDiscount returns the lead cost after a percentage discount, rounded
// to cents. The subtraction happens in decimal so the result is exact.
func ApplyDiscount(base, percent decimal.Decimal) decimal.Decimal {
	if percent.LessThanOrEqual(decimal.Zero) {
		return base.Round(2)
	}
	if percent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero.Round(2)
	}
	factor := decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100)))
	return base.Mul(factor).Round(2)
}
