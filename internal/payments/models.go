// Package payments consumes payment-outcome events from the external
// processor and reconciles leads, proposals, and subscriptions against
// them. Events may arrive out of order or more than once; every handler
// re-derives "is this already done?" from stored state.
package payments

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is the payment outcome.
type EventType string

const (
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
)

// Purpose identifies what the payment was for.
type Purpose string

const (
	PurposeLeadAcceptance Purpose = "lead_acceptance"
	PurposeProposal       Purpose = "proposal"
	PurposeSubscription   Purpose = "subscription"
)

// CorrelationIDs carry the aggregate references for an event; which ones
// are set depends on the purpose.
type CorrelationIDs struct {
	LeadID          uuid.UUID `json:"leadId,omitempty"`
	ProposalID      uuid.UUID `json:"proposalId,omitempty"`
	UserID          uuid.UUID `json:"userId,omitempty"`
	PlanID          uuid.UUID `json:"planId,omitempty"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
}

// Event is an inbound payment-outcome event.
type Event struct {
	EventType      EventType       `json:"eventType"`
	Purpose        Purpose         `json:"purpose"`
	CorrelationIDs CorrelationIDs  `json:"correlationIds"`
	Amount         decimal.Decimal `json:"amount"`
}

// Validate checks the parts every event must carry. Purpose-specific
// correlation ids are checked at dispatch.
func (e Event) Validate() error {
	switch e.EventType {
	case EventSucceeded, EventFailed, EventCanceled:
	default:
		return &FatalError{Reason: "unknown event type: " + strings.TrimSpace(string(e.EventType))}
	}
	switch e.Purpose {
	case PurposeLeadAcceptance, PurposeProposal, PurposeSubscription:
	default:
		return &FatalError{Reason: "unknown purpose: " + strings.TrimSpace(string(e.Purpose))}
	}
	return nil
}
