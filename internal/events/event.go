// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadmarket_backend/platform/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Assignment Domain Events
// =============================================================================

// LeadAssigned is published when a primary lead is created for a provider.
type LeadAssigned struct {
	BaseEvent
	LeadID           uuid.UUID       `json:"leadId"`
	ServiceRequestID uuid.UUID       `json:"serviceRequestId"`
	ProviderID       uuid.UUID       `json:"providerId"`
	ProviderEmail    string          `json:"providerEmail"`
	ProviderName     string          `json:"providerName"`
	Category         string          `json:"category"`
	City             string          `json:"city"`
	LeadCost         decimal.Decimal `json:"leadCost"`
}

func (e LeadAssigned) EventName() string { return "leads.assigned" }

// LeadRouted is published when the fallback scheduler promotes an
// alternative provider to a new lead.
type LeadRouted struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	ServiceRequestID uuid.UUID `json:"serviceRequestId"`
	ProviderID       uuid.UUID `json:"providerId"`
	ProviderEmail    string    `json:"providerEmail"`
	ProviderName     string    `json:"providerName"`
	Category         string    `json:"category"`
	Position         int       `json:"position"`
}

func (e LeadRouted) EventName() string { return "leads.routed" }

// NoProviderAvailable is published when assignment finds zero candidates.
type NoProviderAvailable struct {
	BaseEvent
	ServiceRequestID uuid.UUID `json:"serviceRequestId"`
	CustomerID       uuid.UUID `json:"customerId"`
	CustomerEmail    string    `json:"customerEmail"`
	CustomerName     string    `json:"customerName"`
	Category         string    `json:"category"`
}

func (e NoProviderAvailable) EventName() string { return "requests.no_provider_available" }

// =============================================================================
// Payment Domain Events
// =============================================================================

// LeadAccepted is published exactly once, when a lead-acceptance payment
// succeeds and the lead transitions to accepted.
type LeadAccepted struct {
	BaseEvent
	LeadID           uuid.UUID       `json:"leadId"`
	ServiceRequestID uuid.UUID       `json:"serviceRequestId"`
	ProviderID       uuid.UUID       `json:"providerId"`
	ProviderEmail    string          `json:"providerEmail"`
	ProviderName     string          `json:"providerName"`
	CustomerID       uuid.UUID       `json:"customerId"`
	CustomerEmail    string          `json:"customerEmail"`
	CustomerName     string          `json:"customerName"`
	CustomerPhone    string          `json:"customerPhone"`
	ProposalID       uuid.UUID       `json:"proposalId"`
	ProposalPrice    decimal.Decimal `json:"proposalPrice"`
}

func (e LeadAccepted) EventName() string { return "leads.accepted" }

// LeadPaymentFailed is published when a lead-acceptance payment fails.
// The lead stays retryable by the same provider.
type LeadPaymentFailed struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	ServiceRequestID uuid.UUID `json:"serviceRequestId"`
	ProviderID       uuid.UUID `json:"providerId"`
	ProviderEmail    string    `json:"providerEmail"`
	ProviderName     string    `json:"providerName"`
}

func (e LeadPaymentFailed) EventName() string { return "leads.payment_failed" }

// ProposalPaymentFailed is published when a proposal payment fails or is
// canceled by the customer.
type ProposalPaymentFailed struct {
	BaseEvent
	ProposalID    uuid.UUID `json:"proposalId"`
	CustomerID    uuid.UUID `json:"customerId"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerName  string    `json:"customerName"`
}

func (e ProposalPaymentFailed) EventName() string { return "proposals.payment_failed" }

// WorkOrderCreated is published once per proposal when a paid proposal is
// accepted and the request moves to in-progress.
type WorkOrderCreated struct {
	BaseEvent
	WorkOrderID      uuid.UUID       `json:"workOrderId"`
	ProposalID       uuid.UUID       `json:"proposalId"`
	ServiceRequestID uuid.UUID       `json:"serviceRequestId"`
	ProviderID       uuid.UUID       `json:"providerId"`
	ProviderEmail    string          `json:"providerEmail"`
	CustomerID       uuid.UUID       `json:"customerId"`
	CustomerEmail    string          `json:"customerEmail"`
	Price            decimal.Decimal `json:"price"`
}

func (e WorkOrderCreated) EventName() string { return "workorders.created" }

// SubscriptionActivated is published when a subscription payment succeeds
// and the user's subscription is upserted to ACTIVE.
type SubscriptionActivated struct {
	BaseEvent
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	UserID         uuid.UUID `json:"userId"`
	UserEmail      string    `json:"userEmail"`
	UserName       string    `json:"userName"`
	PlanTier       string    `json:"planTier"`
	BillingCycle   string    `json:"billingCycle"`
}

func (e SubscriptionActivated) EventName() string { return "subscriptions.activated" }
