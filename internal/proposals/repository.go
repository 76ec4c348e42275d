package proposals

import (
	"context"
	"errors"
	"fmt"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository persists proposals and work orders.
type Repository struct {
	q db.Querier
}

// New creates a proposals repository.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

const proposalColumns = `id, lead_id, service_request_id, provider_id, customer_id, details, price, payment_status, payout_status, provider_amount, platform_fee, created_at, updated_at`

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	var paymentStatus, payoutStatus string
	err := row.Scan(&p.ID, &p.LeadID, &p.ServiceRequestID, &p.ProviderID, &p.CustomerID,
		&p.Details, &p.Price, &paymentStatus, &payoutStatus,
		&p.ProviderAmount, &p.PlatformFee, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Proposal{}, err
	}
	p.PaymentStatus = PaymentStatus(paymentStatus)
	p.PayoutStatus = PayoutStatus(payoutStatus)
	return p, nil
}

// CreateParams holds the fields for a new proposal.
type CreateParams struct {
	LeadID           uuid.UUID
	ServiceRequestID uuid.UUID
	ProviderID       uuid.UUID
	CustomerID       uuid.UUID
	Details          string
	Price            decimal.Decimal
}

// CreateIfAbsent inserts the proposal for a lead, or returns the existing
// one. The unique constraint on lead_id plus ON CONFLICT DO NOTHING makes
// this safe under redelivered payment events.
func (r *Repository) CreateIfAbsent(ctx context.Context, params CreateParams) (Proposal, error) {
	insert := `
		INSERT INTO proposals (lead_id, service_request_id, provider_id, customer_id, details, price, payment_status, payout_status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', 'none')
		ON CONFLICT (lead_id) DO NOTHING
		RETURNING ` + proposalColumns

	proposal, err := scanProposal(r.q.QueryRow(ctx, insert,
		params.LeadID, params.ServiceRequestID, params.ProviderID, params.CustomerID,
		params.Details, params.Price,
	))
	if err == nil {
		return proposal, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, fmt.Errorf("create proposal: %w", err)
	}
	// Conflict path: the proposal already exists for this lead.
	return r.GetByLeadID(ctx, params.LeadID)
}

// GetByID returns a proposal by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`

	proposal, err := scanProposal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proposal{}, apperr.NotFound("proposal not found")
		}
		return Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	return proposal, nil
}

// GetByLeadID returns the proposal created for a lead.
func (r *Repository) GetByLeadID(ctx context.Context, leadID uuid.UUID) (Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE lead_id = $1`

	proposal, err := scanProposal(r.q.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proposal{}, apperr.NotFound("proposal not found")
		}
		return Proposal{}, fmt.Errorf("get proposal by lead: %w", err)
	}
	return proposal, nil
}

// MarkPaymentSucceeded records the payment and the payout split in one
// guarded write. first=false means a previous delivery already did this
// and the split must not be recomputed.
func (r *Repository) MarkPaymentSucceeded(ctx context.Context, proposalID uuid.UUID, providerAmount, platformFee decimal.Decimal) (first bool, err error) {
	query := `
		UPDATE proposals
		SET payment_status = 'succeeded', payout_status = 'pending',
		    provider_amount = $2, platform_fee = $3, updated_at = now()
		WHERE id = $1 AND payment_status <> 'succeeded'`

	tag, err := r.q.Exec(ctx, query, proposalID, providerAmount, platformFee)
	if err != nil {
		return false, fmt.Errorf("mark proposal paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPaymentFailed records a failed or canceled proposal payment. Payout
// fields are never touched, and an already-succeeded payment is never
// demoted by a late failure event.
func (r *Repository) MarkPaymentFailed(ctx context.Context, proposalID uuid.UUID) error {
	query := `
		UPDATE proposals
		SET payment_status = 'failed', updated_at = now()
		WHERE id = $1 AND payment_status <> 'succeeded'`

	if _, err := r.q.Exec(ctx, query, proposalID); err != nil {
		return fmt.Errorf("mark proposal failed: %w", err)
	}
	return nil
}

// MarkPayoutCompleted finalizes the provider payout after work approval.
func (r *Repository) MarkPayoutCompleted(ctx context.Context, proposalID uuid.UUID) error {
	query := `
		UPDATE proposals
		SET payout_status = 'completed', updated_at = now()
		WHERE id = $1 AND payout_status = 'pending'`

	tag, err := r.q.Exec(ctx, query, proposalID)
	if err != nil {
		return fmt.Errorf("complete payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("payout is not pending")
	}
	return nil
}

// CreateWorkOrderIfAbsent creates the work order for a paid proposal.
// created=false means one already exists; callers must not repeat the
// side effects tied to creation.
func (r *Repository) CreateWorkOrderIfAbsent(ctx context.Context, proposal Proposal) (WorkOrder, bool, error) {
	insert := `
		INSERT INTO work_orders (proposal_id, service_request_id, provider_id, customer_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (proposal_id) DO NOTHING
		RETURNING id, proposal_id, service_request_id, provider_id, customer_id, status, created_at`

	var order WorkOrder
	err := r.q.QueryRow(ctx, insert,
		proposal.ID, proposal.ServiceRequestID, proposal.ProviderID, proposal.CustomerID, WorkOrderStatusOpen,
	).Scan(&order.ID, &order.ProposalID, &order.ServiceRequestID, &order.ProviderID, &order.CustomerID, &order.Status, &order.CreatedAt)
	if err == nil {
		return order, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return WorkOrder{}, false, fmt.Errorf("create work order: %w", err)
	}

	query := `SELECT id, proposal_id, service_request_id, provider_id, customer_id, status, created_at FROM work_orders WHERE proposal_id = $1`
	err = r.q.QueryRow(ctx, query, proposal.ID).
		Scan(&order.ID, &order.ProposalID, &order.ServiceRequestID, &order.ProviderID, &order.CustomerID, &order.Status, &order.CreatedAt)
	if err != nil {
		return WorkOrder{}, false, fmt.Errorf("get work order: %w", err)
	}
	return order, false, nil
}
