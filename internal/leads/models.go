// Package leads owns the Lead aggregate: the right to contact one customer,
// granted to one provider for one service request. All mutations go through
// the state-machine operations here so every transition enforces its own
// precondition at the storage layer.
package leads

import (
	"encoding/json"
	"time"

	"leadmarket_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lead is a right-to-contact granted to a provider.
// Customer contact fields stay empty until the lead is accepted; that is a
// privacy rule, not a display choice.
type Lead struct {
	ID               uuid.UUID
	ServiceRequestID uuid.UUID
	CustomerID       uuid.UUID
	ProviderID       uuid.UUID
	BusinessID       uuid.UUID
	Category         string
	Zip              string
	City             string
	State            string
	Status           domain.Status
	Position         int
	Metadata         Metadata
	PaymentIntentID  *string
	LeadCost         decimal.Decimal
	CustomerName     *string
	CustomerEmail    *string
	CustomerPhone    *string
	RejectReason     *domain.RejectReason
	RejectDetail     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Metadata is the serialized payload embedded on every lead. The schema
// predates the service_request_id column, so the request back-reference is
// still written here for older readers; during backfill the payload is the
// source of truth.
type Metadata struct {
	ServiceRequestID uuid.UUID      `json:"serviceRequestId"`
	ProposalDraft    *ProposalDraft `json:"proposalDraft,omitempty"`
}

// ProposalDraft is the priced offer a provider stages when accepting a
// lead. The reconciler turns it into a Proposal once payment succeeds.
type ProposalDraft struct {
	Details string          `json:"details"`
	Price   decimal.Decimal `json:"price"`
}

// ParseMetadata decodes an embedded metadata payload. A payload that fails
// to parse is treated as empty, not as an error: the linkage is best-effort.
func ParseMetadata(raw []byte) Metadata {
	var meta Metadata
	if len(raw) == 0 {
		return meta
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}
	}
	return meta
}
