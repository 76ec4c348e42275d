package proposals

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

// Module is the proposals bounded context implementing http.Module.
type Module struct {
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the proposals module.
func NewModule(pool *pgxpool.Pool, cfg config.PaymentConfig, log *logger.Logger) *Module {
	repo := New(pool)
	svc := NewService(repo, cfg.GetPlatformFeeRate(), log)

	return &Module{service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "proposals"
}

// Service returns the service layer for external wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts proposal routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/proposals/:id", m.get)
	ctx.Admin.POST("/proposals/:id/payout/complete", m.completePayout)
}

// ProposalResponse is the API representation of a proposal.
type ProposalResponse struct {
	ID             uuid.UUID `json:"id"`
	LeadID         uuid.UUID `json:"leadId"`
	Details        string    `json:"details"`
	Price          string    `json:"price"`
	PaymentStatus  string    `json:"paymentStatus"`
	PayoutStatus   string    `json:"payoutStatus"`
	ProviderAmount *string   `json:"providerAmount,omitempty"`
	PlatformFee    *string   `json:"platformFee,omitempty"`
	CreatedAt      string    `json:"createdAt"`
}

func toResponse(p Proposal) ProposalResponse {
	resp := ProposalResponse{
		ID:            p.ID,
		LeadID:        p.LeadID,
		Details:       p.Details,
		Price:         p.Price.StringFixed(2),
		PaymentStatus: string(p.PaymentStatus),
		PayoutStatus:  string(p.PayoutStatus),
		CreatedAt:     p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.ProviderAmount != nil {
		amount := p.ProviderAmount.StringFixed(2)
		resp.ProviderAmount = &amount
	}
	if p.PlatformFee != nil {
		fee := p.PlatformFee.StringFixed(2)
		resp.PlatformFee = &fee
	}
	return resp
}

func (m *Module) get(c *gin.Context) {
	userID, ok := httpkit.UserID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}

	proposalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid proposal id", nil)
		return
	}

	proposal, err := m.service.GetForUser(c.Request.Context(), proposalID, userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(proposal))
}

func (m *Module) completePayout(c *gin.Context) {
	proposalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid proposal id", nil)
		return
	}

	if err := m.service.CompletePayout(c.Request.Context(), proposalID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "completed"})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
