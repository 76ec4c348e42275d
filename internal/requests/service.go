package requests

import (
	"context"
	"strings"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// Assigner triggers provider assignment for a request. Implemented by the
// assignment module; injected as an interface to avoid a package cycle.
type Assigner interface {
	AssignProvidersForRequest(ctx context.Context, requestID uuid.UUID) error
}

// Service implements service request use cases.
type Service struct {
	repo     *Repository
	assigner Assigner
	log      *logger.Logger
}

// NewService creates the request service. The assigner is wired later by
// the composition root via SetAssigner.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// SetAssigner injects the assignment orchestrator.
func (s *Service) SetAssigner(a Assigner) {
	s.assigner = a
}

// Submit validates and stores a new request, then routes it to providers.
// Assignment failure does not fail the submission; the request stays in
// created and can be assigned later by an admin.
func (s *Service) Submit(ctx context.Context, params CreateParams) (ServiceRequest, error) {
	if strings.TrimSpace(params.Category) == "" {
		return ServiceRequest{}, apperr.Validation("category is required")
	}
	if strings.TrimSpace(params.Zip) == "" && strings.TrimSpace(params.City) == "" {
		return ServiceRequest{}, apperr.Validation("a zip code or city is required")
	}

	req, err := s.repo.Create(ctx, params)
	if err != nil {
		return ServiceRequest{}, err
	}

	if s.assigner != nil {
		if err := s.assigner.AssignProvidersForRequest(ctx, req.ID); err != nil {
			s.log.Error("initial provider assignment failed", "requestId", req.ID, "error", err)
		} else {
			req, err = s.repo.GetByID(ctx, req.ID)
			if err != nil {
				return ServiceRequest{}, err
			}
		}
	}

	return req, nil
}

// Get returns a request if the caller owns it or is its primary provider.
func (s *Service) Get(ctx context.Context, requestID, callerID uuid.UUID) (ServiceRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return ServiceRequest{}, err
	}

	if req.CustomerID != callerID && (req.PrimaryProviderID == nil || *req.PrimaryProviderID != callerID) {
		return ServiceRequest{}, apperr.Forbidden("not your request")
	}
	return req, nil
}

// ListMine returns the caller's requests.
func (s *Service) ListMine(ctx context.Context, customerID uuid.UUID) ([]ServiceRequest, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}
