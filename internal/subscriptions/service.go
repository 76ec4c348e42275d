package subscriptions

import (
	"context"
	"time"

	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store abstracts subscription persistence for the service.
type Store interface {
	GetPlan(ctx context.Context, planID uuid.UUID) (SubscriptionPlan, error)
	ListActivePlans(ctx context.Context) ([]SubscriptionPlan, error)
	GetActiveForUser(ctx context.Context, userID uuid.UUID) (UserSubscription, bool, error)
	Upsert(ctx context.Context, userID, planID uuid.UUID, periodStart, periodEnd time.Time) (UserSubscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) error
	TryConsumeLead(ctx context.Context, userID uuid.UUID) (decimal.Decimal, bool, error)
}

// Service implements subscription use cases, including lead pricing for
// the assignment orchestrator.
type Service struct {
	store        Store
	leadBaseCost decimal.Decimal
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates the subscription service.
func NewService(store Store, leadBaseCost decimal.Decimal, log *logger.Logger) *Service {
	return &Service{store: store, leadBaseCost: leadBaseCost, log: log, now: time.Now}
}

// ListPlans returns purchasable plans.
func (s *Service) ListPlans(ctx context.Context) ([]SubscriptionPlan, error) {
	return s.store.ListActivePlans(ctx)
}

// GetMine returns the caller's usable subscription, if any.
func (s *Service) GetMine(ctx context.Context, userID uuid.UUID) (UserSubscription, bool, error) {
	return s.store.GetActiveForUser(ctx, userID)
}

// Cancel stops the caller's subscription.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) error {
	return s.store.Cancel(ctx, userID)
}

// PriceLead quotes the cost of one lead for a provider. A usable
// subscription with remaining quota yields the plan's discount and
// consumes one quota unit; otherwise the base cost applies unchanged.
func (s *Service) PriceLead(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error) {
	discount, ok, err := s.store.TryConsumeLead(ctx, providerID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return s.leadBaseCost.Round(2), nil
	}

	cost := ApplyDiscount(s.leadBaseCost, discount)
	s.log.WithContext(ctx).Info("lead discount applied",
		"provider_id", providerID, "discount_percent", discount.String(), "lead_cost", cost.String())
	return cost, nil
}

// Activate creates or renews the user's subscription after a successful
// subscription payment. The period length follows the plan's billing
// cycle. Safe to re-run on redelivered events; the period is simply
// re-anchored at the delivery time.
func (s *Service) Activate(ctx context.Context, userID, planID uuid.UUID) (UserSubscription, SubscriptionPlan, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return UserSubscription{}, SubscriptionPlan{}, err
	}

	start := s.now()
	sub, err := s.store.Upsert(ctx, userID, planID, start, start.Add(plan.BillingCycle.PeriodLength()))
	if err != nil {
		return UserSubscription{}, SubscriptionPlan{}, err
	}

	s.log.WithContext(ctx).Info("subscription activated",
		"user_id", userID, "plan", plan.Name, "period_end", sub.CurrentPeriodEnd)
	return sub, plan, nil
}
