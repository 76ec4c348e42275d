package requests

import (
	"context"
	"errors"
	"fmt"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestNotFoundMessage = "service request not found"

// Repository persists service requests with PostgreSQL.
type Repository struct {
	q db.Querier
}

// New creates a service request repository over a pool or transaction.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

const requestColumns = `id, customer_id, category, sub_category, description, zip, city, state, radius_km, status, primary_provider_id, created_at, updated_at`

func (r *Repository) scanRequest(row pgx.Row) (ServiceRequest, error) {
	var req ServiceRequest
	var status string
	err := row.Scan(
		&req.ID, &req.CustomerID, &req.Category, &req.SubCategory, &req.Description,
		&req.Zip, &req.City, &req.State, &req.RadiusKM, &status,
		&req.PrimaryProviderID, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return ServiceRequest{}, err
	}
	req.Status = Status(status)
	return req, nil
}

// Create inserts a new service request in status created.
func (r *Repository) Create(ctx context.Context, params CreateParams) (ServiceRequest, error) {
	query := `
		INSERT INTO service_requests (customer_id, category, sub_category, description, zip, city, state, radius_km, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'created')
		RETURNING ` + requestColumns

	req, err := r.scanRequest(r.q.QueryRow(ctx, query,
		params.CustomerID, params.Category, params.SubCategory, params.Description,
		params.Zip, params.City, params.State, params.RadiusKM,
	))
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("create service request: %w", err)
	}
	return req, nil
}

// CreateParams holds the fields a customer submits for a new request.
type CreateParams struct {
	CustomerID  uuid.UUID
	Category    string
	SubCategory string
	Description string
	Zip         string
	City        string
	State       string
	RadiusKM    float64
}

// GetByID retrieves a service request.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`

	req, err := r.scanRequest(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, apperr.NotFound(requestNotFoundMessage)
		}
		return ServiceRequest{}, fmt.Errorf("get service request: %w", err)
	}
	return req, nil
}

// GetCustomer returns the contact snapshot of the request's owner.
func (r *Repository) GetCustomer(ctx context.Context, requestID uuid.UUID) (Customer, error) {
	query := `
		SELECT u.id, u.name, u.email, COALESCE(u.phone, '')
		FROM service_requests sr
		JOIN users u ON u.id = sr.customer_id
		WHERE sr.id = $1`

	var c Customer
	err := r.q.QueryRow(ctx, query, requestID).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, apperr.NotFound(requestNotFoundMessage)
		}
		return Customer{}, fmt.Errorf("get request customer: %w", err)
	}
	return c, nil
}

// MarkLeadAssigned sets the primary provider and advances the request to
// lead_assigned. The status guard makes the call idempotent: a redelivered
// payment event observes zero affected rows and treats it as already done.
func (r *Repository) MarkLeadAssigned(ctx context.Context, requestID, providerID uuid.UUID) (bool, error) {
	query := `
		UPDATE service_requests
		SET primary_provider_id = $2, status = 'lead_assigned', updated_at = now()
		WHERE id = $1 AND status IN ('created', 'lead_assigned')`

	tag, err := r.q.Exec(ctx, query, requestID, providerID)
	if err != nil {
		return false, fmt.Errorf("mark lead assigned: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AdvanceStatus moves the request from one specific status to the next.
// Returns false without error when the request was not in the expected
// status, which callers treat as "someone else already did this".
func (r *Repository) AdvanceStatus(ctx context.Context, requestID uuid.UUID, from, to Status) (bool, error) {
	if !from.CanTransition(to) {
		return false, apperr.Conflict(fmt.Sprintf("cannot transition request from %s to %s", from, to))
	}

	query := `
		UPDATE service_requests
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`

	tag, err := r.q.Exec(ctx, query, requestID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("advance request status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResetForReassignment clears the primary provider and returns the request
// to created. Only called while holding the per-request advisory lock.
func (r *Repository) ResetForReassignment(ctx context.Context, requestID uuid.UUID) error {
	query := `
		UPDATE service_requests
		SET primary_provider_id = NULL, status = 'created', updated_at = now()
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, requestID)
	if err != nil {
		return fmt.Errorf("reset request for reassignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMessage)
	}
	return nil
}

// ListByCustomer returns a customer's requests, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE customer_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var results []ServiceRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		results = append(results, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return results, nil
}
