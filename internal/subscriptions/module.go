package subscriptions

import (
	"net/http"

	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the subscriptions bounded context implementing http.Module.
type Module struct {
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the subscriptions module.
func NewModule(pool *pgxpool.Pool, cfg config.AssignmentConfig, log *logger.Logger) *Module {
	repo := New(pool)
	svc := NewService(repo, cfg.GetLeadBaseCost(), log)

	return &Module{service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "subscriptions"
}

// Service returns the service layer for external wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts subscription routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/subscriptions/plans", m.listPlans)

	group := ctx.Protected.Group("/subscriptions")
	group.GET("/me", m.getMine)
	group.DELETE("/me", m.cancel)
}

// PlanResponse is the API representation of a plan.
type PlanResponse struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Tier                string    `json:"tier"`
	Price               string    `json:"price"`
	BillingCycle        string    `json:"billingCycle"`
	LeadDiscountPercent string    `json:"leadDiscountPercent"`
	MaxLeadsPerMonth    int       `json:"maxLeadsPerMonth"`
}

// SubscriptionResponse is the API representation of a user subscription.
type SubscriptionResponse struct {
	PlanID             uuid.UUID `json:"planId"`
	Status             string    `json:"status"`
	CurrentPeriodStart string    `json:"currentPeriodStart"`
	CurrentPeriodEnd   string    `json:"currentPeriodEnd"`
	LeadsUsed          int       `json:"leadsUsed"`
}

func (m *Module) listPlans(c *gin.Context) {
	plans, err := m.service.ListPlans(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]PlanResponse, 0, len(plans))
	for _, plan := range plans {
		responses = append(responses, PlanResponse{
			ID:                  plan.ID,
			Name:                plan.Name,
			Tier:                plan.Tier,
			Price:               plan.Price.StringFixed(2),
			BillingCycle:        string(plan.BillingCycle),
			LeadDiscountPercent: plan.LeadDiscountPercent.String(),
			MaxLeadsPerMonth:    plan.MaxLeadsPerMonth,
		})
	}
	httpkit.OK(c, responses)
}

func (m *Module) getMine(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	sub, found, err := m.service.GetMine(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	if !found {
		httpkit.Error(c, http.StatusNotFound, "no active subscription", nil)
		return
	}

	httpkit.OK(c, SubscriptionResponse{
		PlanID:             sub.PlanID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart.UTC().Format("2006-01-02T15:04:05Z07:00"),
		CurrentPeriodEnd:   sub.CurrentPeriodEnd.UTC().Format("2006-01-02T15:04:05Z07:00"),
		LeadsUsed:          sub.LeadsUsed,
	})
}

func (m *Module) cancel(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	if err := m.service.Cancel(c.Request.Context(), userID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
