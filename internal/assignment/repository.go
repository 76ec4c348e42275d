package assignment

import (
	"context"
	"fmt"

	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists alternative selections and holds the per-request
// advisory lock used to serialize (re)assignment.
type Repository struct {
	q db.Querier
}

// New creates an assignment repository over a pool or transaction.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

// AcquireRequestLock takes a transaction-scoped advisory lock keyed on the
// request id. It blocks until the lock is granted and releases on commit
// or rollback. Must be called on a transaction.
func (r *Repository) AcquireRequestLock(ctx context.Context, serviceRequestID uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, serviceRequestID.String()); err != nil {
		return fmt.Errorf("acquire request lock: %w", err)
	}
	return nil
}

// CreateSelection inserts an alternative selection at a position. The
// unique constraint on (service_request_id, position) rejects duplicates.
func (r *Repository) CreateSelection(ctx context.Context, sel AlternativeSelection) (AlternativeSelection, error) {
	query := `
		INSERT INTO alternative_selections (service_request_id, business_id, provider_id, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query, sel.ServiceRequestID, sel.BusinessID, sel.ProviderID, sel.Position).
		Scan(&sel.ID, &sel.CreatedAt)
	if err != nil {
		return AlternativeSelection{}, fmt.Errorf("create alternative selection: %w", err)
	}
	return sel, nil
}

// ListByRequest returns the request's selections ordered by position.
func (r *Repository) ListByRequest(ctx context.Context, serviceRequestID uuid.UUID) ([]AlternativeSelection, error) {
	query := `
		SELECT id, service_request_id, business_id, provider_id, position, created_at
		FROM alternative_selections
		WHERE service_request_id = $1
		ORDER BY position ASC`

	rows, err := r.q.Query(ctx, query, serviceRequestID)
	if err != nil {
		return nil, fmt.Errorf("list alternative selections: %w", err)
	}
	defer rows.Close()

	var selections []AlternativeSelection
	for rows.Next() {
		var sel AlternativeSelection
		if err := rows.Scan(&sel.ID, &sel.ServiceRequestID, &sel.BusinessID, &sel.ProviderID, &sel.Position, &sel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alternative selection: %w", err)
		}
		selections = append(selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alternative selections: %w", err)
	}
	return selections, nil
}

// NextByRequest returns the lowest-position selection for the request, if
// any. Used by the fallback scheduler, which consumes one per invocation.
func (r *Repository) NextByRequest(ctx context.Context, serviceRequestID uuid.UUID) (AlternativeSelection, bool, error) {
	query := `
		SELECT id, service_request_id, business_id, provider_id, position, created_at
		FROM alternative_selections
		WHERE service_request_id = $1
		ORDER BY position ASC
		LIMIT 1`

	var sel AlternativeSelection
	err := r.q.QueryRow(ctx, query, serviceRequestID).
		Scan(&sel.ID, &sel.ServiceRequestID, &sel.BusinessID, &sel.ProviderID, &sel.Position, &sel.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return AlternativeSelection{}, false, nil
		}
		return AlternativeSelection{}, false, fmt.Errorf("next alternative selection: %w", err)
	}
	return sel, true, nil
}

// Delete removes a consumed selection.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM alternative_selections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete alternative selection: %w", err)
	}
	return nil
}

// DeleteByRequest removes every selection for the request. Used by admin
// reassignment under the advisory lock.
func (r *Repository) DeleteByRequest(ctx context.Context, serviceRequestID uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM alternative_selections WHERE service_request_id = $1`, serviceRequestID); err != nil {
		return fmt.Errorf("delete alternative selections: %w", err)
	}
	return nil
}
