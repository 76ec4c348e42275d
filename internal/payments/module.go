package payments

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
)

// Module is the payments bounded context implementing http.Module.
type Module struct {
	handler    *Handler
	reconciler *Reconciler
}

// NewModule creates and initializes the payments module.
func NewModule(
	leadFinalizer LeadFinalizer,
	proposalStore ProposalStore,
	subs SubscriptionActivator,
	requestUpdater RequestUpdater,
	fallback FallbackTrigger,
	directory UserDirectory,
	bus events.Bus,
	cfg config.PaymentConfig,
	log *logger.Logger,
) *Module {
	reconciler := NewReconciler(leadFinalizer, proposalStore, subs, requestUpdater, fallback, directory, bus, log)
	h := NewHandler(reconciler, cfg.GetPaymentWebhookSecret(), log)

	return &Module{handler: h, reconciler: reconciler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// Reconciler returns the reconciler for direct invocation from workers.
func (m *Module) Reconciler() *Reconciler {
	return m.reconciler
}

// RegisterRoutes mounts the webhook. It sits on the open v1 group: the
// processor authenticates with the payload signature, not a JWT.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/webhooks/payment", m.handler.Webhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
