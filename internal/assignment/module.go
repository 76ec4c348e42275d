package assignment

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/routing"
	"leadmarket_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignment bounded context implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the assignment module.
func NewModule(
	pool *pgxpool.Pool,
	resolver *routing.Resolver,
	pricer LeadPricer,
	scheduler FallbackScheduler,
	bus events.Bus,
	cfg Config,
	log *logger.Logger,
) *Module {
	svc := NewService(pool, resolver, pricer, scheduler, bus, cfg, log)
	h := NewHandler(svc)

	return &Module{handler: h, service: svc, repo: New(pool)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// Service returns the service layer for external wiring.
func (m *Module) Service() *Service {
	return m.service
}

// Repository returns the selection repository for cross-module reads.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts the admin reassignment route.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.POST("/requests/:id/assign", m.handler.Assign)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
