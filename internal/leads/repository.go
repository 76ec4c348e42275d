package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	leadNotFoundMessage    = "lead not found"
	alreadyAcceptedMessage = "lead already accepted for this request"

	uniqueViolationCode = "23505"
)

// Repository persists leads with PostgreSQL.
type Repository struct {
	q db.Querier
}

// New creates a lead repository over a pool or transaction.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

const leadColumns = `id, service_request_id, customer_id, provider_id, business_id, category, zip, city, state, status, position, metadata, payment_intent_id, lead_cost, customer_name, customer_email, customer_phone, reject_reason, reject_detail, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var status string
	var rejectReason *string
	var metadata []byte
	err := row.Scan(
		&lead.ID, &lead.ServiceRequestID, &lead.CustomerID, &lead.ProviderID, &lead.BusinessID,
		&lead.Category, &lead.Zip, &lead.City, &lead.State, &status, &lead.Position,
		&metadata, &lead.PaymentIntentID, &lead.LeadCost,
		&lead.CustomerName, &lead.CustomerEmail, &lead.CustomerPhone,
		&rejectReason, &lead.RejectDetail,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	lead.Status = domain.Status(status)
	if rejectReason != nil {
		reason := domain.RejectReason(*rejectReason)
		lead.RejectReason = &reason
	}
	lead.Metadata = ParseMetadata(metadata)
	return lead, nil
}

// CreateParams holds the fields for a new lead.
type CreateParams struct {
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
	LeadCost         decimal.Decimal
}

// Create inserts a new lead. Contact fields start NULL; the metadata
// payload carries the request back-reference for compatibility.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Lead, error) {
	if params.Status != domain.StatusSubmitted && params.Status != domain.StatusRouted {
		return Lead{}, apperr.Validation("new leads must start as submitted or routed")
	}

	metadata, err := json.Marshal(Metadata{ServiceRequestID: params.ServiceRequestID})
	if err != nil {
		return Lead{}, fmt.Errorf("marshal lead metadata: %w", err)
	}

	query := `
		INSERT INTO leads (service_request_id, customer_id, provider_id, business_id, category, zip, city, state, status, position, metadata, lead_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + leadColumns

	lead, err := scanLead(r.q.QueryRow(ctx, query,
		params.ServiceRequestID, params.CustomerID, params.ProviderID, params.BusinessID,
		params.Category, params.Zip, params.City, params.State,
		string(params.Status), params.Position, metadata, params.LeadCost,
	))
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByID retrieves a lead by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// ListByProvider returns a provider's leads, newest first.
func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE provider_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var results []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		results = append(results, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return results, nil
}

// StageAcceptance records the provider's proposal draft and the payment
// intent reference on an open lead. The lead stays in its current status;
// the accepted transition happens only when the payment outcome arrives.
func (r *Repository) StageAcceptance(ctx context.Context, leadID uuid.UUID, draft ProposalDraft, paymentIntentID string) error {
	patch, err := json.Marshal(map[string]any{"proposalDraft": draft})
	if err != nil {
		return fmt.Errorf("marshal proposal draft: %w", err)
	}

	query := `
		UPDATE leads
		SET metadata = metadata || $2::jsonb, payment_intent_id = $3, updated_at = now()
		WHERE id = $1 AND status IN ('submitted', 'routed')`

	tag, err := r.q.Exec(ctx, query, leadID, patch, paymentIntentID)
	if err != nil {
		return fmt.Errorf("stage lead acceptance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("lead is no longer open")
	}
	return nil
}

// AcceptParams carries the customer contact snapshot revealed on acceptance.
type AcceptParams struct {
	LeadID        uuid.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Accept transitions an open lead to accepted and reveals customer contact.
//
// The sibling re-check runs inside the same UPDATE as the transition, and a
// partial unique index on (service_request_id) WHERE status = 'accepted'
// backs it at the constraint level, so two concurrent accepts can never
// both commit. Returns transitioned=false (no error) when the lead is
// already accepted: redelivered payment events are a no-op, not a failure.
func (r *Repository) Accept(ctx context.Context, params AcceptParams) (bool, error) {
	query := `
		UPDATE leads
		SET status = 'accepted',
		    customer_name = $2, customer_email = $3, customer_phone = $4,
		    updated_at = now()
		WHERE id = $1
			AND status IN ('submitted', 'routed')
			AND NOT EXISTS (
				SELECT 1 FROM leads sibling
				WHERE sibling.service_request_id = leads.service_request_id
					AND sibling.status = 'accepted'
			)`

	tag, err := r.q.Exec(ctx, query,
		params.LeadID, params.CustomerName, params.CustomerEmail, params.CustomerPhone,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return false, apperr.Conflict(alreadyAcceptedMessage)
		}
		return false, fmt.Errorf("accept lead: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows: either this lead already won (idempotent no-op) or a
	// sibling beat it to acceptance.
	lead, err := r.GetByID(ctx, params.LeadID)
	if err != nil {
		return false, err
	}
	if lead.Status == domain.StatusAccepted {
		return false, nil
	}

	exists, err := r.AcceptedSiblingExists(ctx, lead.ServiceRequestID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, apperr.Conflict(alreadyAcceptedMessage)
	}
	return false, apperr.Conflict(fmt.Sprintf("lead is %s and cannot be accepted", lead.Status))
}

// Reject transitions an open lead to rejected with a reason.
func (r *Repository) Reject(ctx context.Context, leadID uuid.UUID, reason domain.RejectReason, reasonOther string) error {
	query := `
		UPDATE leads
		SET status = 'rejected', reject_reason = $2, reject_detail = NULLIF($3, ''), updated_at = now()
		WHERE id = $1 AND status IN ('submitted', 'routed')`

	tag, err := r.q.Exec(ctx, query, leadID, string(reason), reasonOther)
	if err != nil {
		return fmt.Errorf("reject lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("lead is no longer open")
	}
	return nil
}

// Cancel marks a still-open lead cancelled. A lead that already reached a
// terminal status is left alone.
func (r *Repository) Cancel(ctx context.Context, leadID uuid.UUID) error {
	query := `
		UPDATE leads
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('submitted', 'routed')`

	if _, err := r.q.Exec(ctx, query, leadID); err != nil {
		return fmt.Errorf("cancel lead: %w", err)
	}
	return nil
}

// CancelOpenSiblings marks every still-open sibling of an accepted lead as
// cancelled. Safe to re-run: already-terminal siblings are untouched.
func (r *Repository) CancelOpenSiblings(ctx context.Context, serviceRequestID, acceptedLeadID uuid.UUID) error {
	query := `
		UPDATE leads
		SET status = 'cancelled', updated_at = now()
		WHERE service_request_id = $1 AND id <> $2 AND status IN ('submitted', 'routed')`

	if _, err := r.q.Exec(ctx, query, serviceRequestID, acceptedLeadID); err != nil {
		return fmt.Errorf("cancel sibling leads: %w", err)
	}
	return nil
}

// AcceptedSiblingExists reports whether any lead for the request has
// reached accepted. Used defensively before mutating anything.
func (r *Repository) AcceptedSiblingExists(ctx context.Context, serviceRequestID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM leads WHERE service_request_id = $1 AND status = 'accepted')`

	var exists bool
	if err := r.q.QueryRow(ctx, query, serviceRequestID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check accepted sibling: %w", err)
	}
	return exists, nil
}

// ProviderHasAcceptedLead reports whether the provider already holds an
// accepted lead for the request.
func (r *Repository) ProviderHasAcceptedLead(ctx context.Context, serviceRequestID, providerID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM leads WHERE service_request_id = $1 AND provider_id = $2 AND status = 'accepted')`

	var exists bool
	if err := r.q.QueryRow(ctx, query, serviceRequestID, providerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check provider accepted lead: %w", err)
	}
	return exists, nil
}

// DeleteByServiceRequest removes every lead for the request. Only used by
// admin reassignment, under the per-request advisory lock.
func (r *Repository) DeleteByServiceRequest(ctx context.Context, serviceRequestID uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM leads WHERE service_request_id = $1`, serviceRequestID); err != nil {
		return fmt.Errorf("delete leads for request: %w", err)
	}
	return nil
}

// ClearStagedAcceptance removes the staged proposal draft and payment
// reference from a lead that is still open.
func (r *Repository) ClearStagedAcceptance(ctx context.Context, leadID uuid.UUID) error {
	query := `
		UPDATE leads
		SET metadata = metadata - 'proposalDraft', payment_intent_id = NULL, updated_at = now()
		WHERE id = $1 AND status IN ('submitted', 'routed')`

	if _, err := r.q.Exec(ctx, query, leadID); err != nil {
		return fmt.Errorf("clear staged acceptance: %w", err)
	}
	return nil
}

// CustomerContact is the customer's user contact snapshot revealed on
// acceptance.
type CustomerContact struct {
	Name  string
	Email string
	Phone string
}

// GetCustomerContact returns a customer's contact details.
func (r *Repository) GetCustomerContact(ctx context.Context, customerID uuid.UUID) (CustomerContact, error) {
	query := `SELECT name, email, COALESCE(phone, '') FROM users WHERE id = $1`

	var c CustomerContact
	if err := r.q.QueryRow(ctx, query, customerID).Scan(&c.Name, &c.Email, &c.Phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerContact{}, apperr.NotFound("customer not found")
		}
		return CustomerContact{}, fmt.Errorf("get customer contact: %w", err)
	}
	return c, nil
}

// ProviderContact is the provider's user contact snapshot for notifications.
type ProviderContact struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// GetProviderContact returns the provider's user record for a lead.
func (r *Repository) GetProviderContact(ctx context.Context, providerID uuid.UUID) (ProviderContact, error) {
	query := `SELECT id, name, email FROM users WHERE id = $1`

	var c ProviderContact
	if err := r.q.QueryRow(ctx, query, providerID).Scan(&c.ID, &c.Name, &c.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProviderContact{}, apperr.NotFound("provider not found")
		}
		return ProviderContact{}, fmt.Errorf("get provider contact: %w", err)
	}
	return c, nil
}
