// Package proposals owns the Proposal and WorkOrder aggregates: the priced
// offer created when a lead acceptance is paid, and the work order spawned
// exactly once when the proposal payment clears.
package proposals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the proposal payment lifecycle.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// PayoutStatus tracks the provider payout. The split is computed when the
// payment succeeds; the payout itself is finalized on work approval, never
// inside the payment webhook.
type PayoutStatus string

const (
	PayoutNone      PayoutStatus = "none"
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
)

// Proposal is a provider's priced offer for a service request. Exactly one
// proposal exists per lead.
type Proposal struct {
	ID               uuid.UUID
	LeadID           uuid.UUID
	ServiceRequestID uuid.UUID
	ProviderID       uuid.UUID
	CustomerID       uuid.UUID
	Details          string
	Price            decimal.Decimal
	PaymentStatus    PaymentStatus
	PayoutStatus     PayoutStatus
	ProviderAmount   *decimal.Decimal
	PlatformFee      *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkOrder is created exactly once per paid proposal.
type WorkOrder struct {
	ID               uuid.UUID
	ProposalID       uuid.UUID
	ServiceRequestID uuid.UUID
	ProviderID       uuid.UUID
	CustomerID       uuid.UUID
	Status           string
	CreatedAt        time.Time
}

// WorkOrderStatusOpen is the initial work order state.
const WorkOrderStatusOpen = "open"
