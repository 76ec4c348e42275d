package leads

import (
	"context"
	"fmt"
	"strings"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/phone"

	"github.com/google/uuid"
)

// Store is the persistence surface the lead service works against. The
// Accept implementation must honor the conditional-update contract: it
// transitions only an open lead whose request has no accepted sibling,
// reports transitioned=false without error when the lead itself already
// won, and a conflict when a sibling did.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Lead, error)
	GetCustomerContact(ctx context.Context, customerID uuid.UUID) (CustomerContact, error)
	AcceptedSiblingExists(ctx context.Context, serviceRequestID uuid.UUID) (bool, error)
	StageAcceptance(ctx context.Context, leadID uuid.UUID, draft ProposalDraft, paymentIntentID string) error
	ClearStagedAcceptance(ctx context.Context, leadID uuid.UUID) error
	Accept(ctx context.Context, params AcceptParams) (bool, error)
	Reject(ctx context.Context, leadID uuid.UUID, reason domain.RejectReason, reasonOther string) error
	CancelOpenSiblings(ctx context.Context, serviceRequestID, acceptedLeadID uuid.UUID) error
}

// Service implements lead lifecycle use cases.
type Service struct {
	repo Store
	log  *logger.Logger
}

// NewService creates the lead service.
func NewService(repo Store, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// ListForProvider returns all leads granted to a provider. Contact fields
// are only populated on accepted leads; the store never holds them earlier.
func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID) ([]Lead, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

// GetForProvider returns a single lead, verifying ownership. Other
// providers' leads are reported as not found rather than forbidden.
func (s *Service) GetForProvider(ctx context.Context, leadID, providerID uuid.UUID) (Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return Lead{}, err
	}
	if lead.ProviderID != providerID {
		return Lead{}, apperr.NotFound(leadNotFoundMessage)
	}
	return lead, nil
}

// StageAcceptance records the provider's intent to accept a lead along
// with their priced proposal draft, and returns the payment intent
// reference the provider completes payment against. The lead does not
// transition here: acceptance is confirmed only by the payment outcome.
func (s *Service) StageAcceptance(ctx context.Context, leadID, providerID uuid.UUID, draft ProposalDraft) (string, error) {
	lead, err := s.GetForProvider(ctx, leadID, providerID)
	if err != nil {
		return "", err
	}
	if !lead.Status.Open() {
		return "", apperr.Conflict(fmt.Sprintf("lead is %s and cannot be accepted", lead.Status))
	}

	// Fail fast when a sibling already won; the transition itself
	// re-checks, this just spares the provider a payment.
	taken, err := s.repo.AcceptedSiblingExists(ctx, lead.ServiceRequestID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", apperr.Conflict(alreadyAcceptedMessage)
	}

	paymentIntentID := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.repo.StageAcceptance(ctx, leadID, draft, paymentIntentID); err != nil {
		return "", err
	}

	s.log.WithContext(ctx).Info("lead acceptance staged",
		"lead_id", leadID, "provider_id", providerID, "payment_intent_id", paymentIntentID)
	return paymentIntentID, nil
}

// Reject marks an open lead rejected with a categorized reason.
func (s *Service) Reject(ctx context.Context, leadID, providerID uuid.UUID, reason domain.RejectReason, detail string) error {
	if !reason.Valid() {
		return apperr.Validation("invalid rejection reason")
	}
	if reason.RequiresDetail() && strings.TrimSpace(detail) == "" {
		return apperr.Validation("rejection reason OTHER requires a detail")
	}

	lead, err := s.GetForProvider(ctx, leadID, providerID)
	if err != nil {
		return err
	}
	if !lead.Status.Open() {
		return apperr.Conflict(fmt.Sprintf("lead is %s and cannot be rejected", lead.Status))
	}

	if err := s.repo.Reject(ctx, leadID, reason, detail); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("lead rejected", "lead_id", leadID, "provider_id", providerID, "reason", string(reason))
	return nil
}

// AcceptResult reports the outcome of a payment-confirmed acceptance.
type AcceptResult struct {
	Lead Lead
	// Transitioned is false when the lead was already accepted, which
	// happens on redelivered payment events. Callers must not repeat
	// side effects in that case.
	Transitioned bool
}

// Accept finalizes a lead acceptance after the payment succeeded. It
// reveals the customer contact snapshot, cancels still-open siblings, and
// is safe to call more than once for the same lead.
func (s *Service) Accept(ctx context.Context, leadID uuid.UUID) (AcceptResult, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return AcceptResult{}, err
	}

	contact, err := s.repo.GetCustomerContact(ctx, lead.CustomerID)
	if err != nil {
		return AcceptResult{}, err
	}
	contact.Phone = phone.NormalizeE164(contact.Phone)

	transitioned, err := s.repo.Accept(ctx, AcceptParams{
		LeadID:        leadID,
		CustomerName:  contact.Name,
		CustomerEmail: contact.Email,
		CustomerPhone: contact.Phone,
	})
	if err != nil {
		return AcceptResult{}, err
	}

	// The lead is accepted now or was already. Cleanup runs on duplicate
	// deliveries too, so a cancel that failed on the first delivery is
	// retried instead of leaving siblings open until a conversion check.
	if err := s.repo.CancelOpenSiblings(ctx, lead.ServiceRequestID, leadID); err != nil {
		// The acceptance itself committed; only the cleanup failed.
		s.log.WithContext(ctx).Error("cancel sibling leads failed", "error", err, "lead_id", leadID)
	}

	updated, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return AcceptResult{}, err
	}
	return AcceptResult{Lead: updated, Transitioned: transitioned}, nil
}

// ClearStagedAcceptance drops the staged proposal draft and payment
// reference after a failed lead payment. The lead stays open so the
// provider can try again.
func (s *Service) ClearStagedAcceptance(ctx context.Context, leadID uuid.UUID) (Lead, error) {
	if err := s.repo.ClearStagedAcceptance(ctx, leadID); err != nil {
		return Lead{}, err
	}
	return s.repo.GetByID(ctx, leadID)
}
