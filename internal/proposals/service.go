package proposals

import (
	"context"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service implements proposal use cases.
type Service struct {
	repo            *Repository
	platformFeeRate decimal.Decimal
	log             *logger.Logger
}

// NewService creates the proposal service.
func NewService(repo *Repository, platformFeeRate decimal.Decimal, log *logger.Logger) *Service {
	return &Service{repo: repo, platformFeeRate: platformFeeRate, log: log}
}

// EnsureForLead creates the proposal for a lead if it does not exist yet
// and returns it either way.
func (s *Service) EnsureForLead(ctx context.Context, params CreateParams) (Proposal, error) {
	return s.repo.CreateIfAbsent(ctx, params)
}

// GetByLeadID returns the proposal created for a lead.
func (s *Service) GetByLeadID(ctx context.Context, leadID uuid.UUID) (Proposal, error) {
	return s.repo.GetByLeadID(ctx, leadID)
}

// GetForUser returns a proposal visible to the caller: its provider or its
// customer. Anyone else sees not found.
func (s *Service) GetForUser(ctx context.Context, proposalID, userID uuid.UUID) (Proposal, error) {
	proposal, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if proposal.ProviderID != userID && proposal.CustomerID != userID {
		return Proposal{}, apperr.NotFound("proposal not found")
	}
	return proposal, nil
}

// RecordPaymentSuccess marks the proposal paid and computes the payout
// split exactly once. first=false signals a redelivered event; the stored
// split is returned untouched.
func (s *Service) RecordPaymentSuccess(ctx context.Context, proposalID uuid.UUID) (Proposal, bool, error) {
	proposal, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return Proposal{}, false, err
	}

	providerAmount, platformFee := ComputePayout(proposal.Price, s.platformFeeRate)
	first, err := s.repo.MarkPaymentSucceeded(ctx, proposalID, providerAmount, platformFee)
	if err != nil {
		return Proposal{}, false, err
	}

	if first {
		s.log.WithContext(ctx).Info("proposal payment recorded",
			"proposal_id", proposalID,
			"price", proposal.Price.String(),
			"provider_amount", providerAmount.String(),
			"platform_fee", platformFee.String())
	}

	updated, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return Proposal{}, false, err
	}
	return updated, first, nil
}

// RecordPaymentFailure marks the proposal payment failed.
func (s *Service) RecordPaymentFailure(ctx context.Context, proposalID uuid.UUID) (Proposal, error) {
	if err := s.repo.MarkPaymentFailed(ctx, proposalID); err != nil {
		return Proposal{}, err
	}
	return s.repo.GetByID(ctx, proposalID)
}

// CreateWorkOrder spawns the work order for a paid proposal, at most once.
func (s *Service) CreateWorkOrder(ctx context.Context, proposalID uuid.UUID) (WorkOrder, bool, error) {
	proposal, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return WorkOrder{}, false, err
	}
	if proposal.PaymentStatus != PaymentSucceeded {
		return WorkOrder{}, false, apperr.Conflict("proposal is not paid")
	}
	return s.repo.CreateWorkOrderIfAbsent(ctx, proposal)
}

// CompletePayout finalizes the provider payout after work approval.
func (s *Service) CompletePayout(ctx context.Context, proposalID uuid.UUID) error {
	if err := s.repo.MarkPayoutCompleted(ctx, proposalID); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("payout completed", "proposal_id", proposalID)
	return nil
}
