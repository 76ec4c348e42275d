package leads

import (
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the leads module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := New(pool)
	svc := NewService(repo, log)
	h := NewHandler(svc, val)

	return &Module{handler: h, service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Repository returns the repository for cross-module reads.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes on the provided router context.
// All lead endpoints require the provider role.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/leads")
	group.Use(httpkit.RequireRole(httpkit.RoleProvider))
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
	group.POST("/:id/accept", m.handler.Accept)
	group.POST("/:id/reject", m.handler.Reject)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
