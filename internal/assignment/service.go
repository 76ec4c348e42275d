package assignment

import (
	"context"
	"fmt"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/requests"
	"leadmarket_backend/internal/routing"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CandidateResolver produces the eligible candidate list for a request.
type CandidateResolver interface {
	Resolve(ctx context.Context, loc routing.RequestLocation) ([]routing.Candidate, error)
}

// LeadPricer quotes the cost of one lead for a provider, consuming
// subscription quota when one applies.
type LeadPricer interface {
	PriceLead(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error)
}

// FallbackScheduler books the delayed conversion check that drives the
// fallback chain when a primary provider never converts.
type FallbackScheduler interface {
	ScheduleConversionCheck(ctx context.Context, serviceRequestID, leadID uuid.UUID, at time.Time) error
}

// Config is the configuration slice assignment needs.
type Config interface {
	config.AssignmentConfig
	config.FallbackConfig
}

// Service orchestrates provider assignment for service requests.
type Service struct {
	pool      *pgxpool.Pool
	resolver  CandidateResolver
	pricer    LeadPricer
	scheduler FallbackScheduler
	bus       events.Bus
	cfg       Config
	log       *logger.Logger
}

// NewService creates the assignment orchestrator.
func NewService(
	pool *pgxpool.Pool,
	resolver CandidateResolver,
	pricer LeadPricer,
	scheduler FallbackScheduler,
	bus events.Bus,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{
		pool:      pool,
		resolver:  resolver,
		pricer:    pricer,
		scheduler: scheduler,
		bus:       bus,
		cfg:       cfg,
		log:       log,
	}
}

// assignmentOutcome is what the transaction produced, carried out for
// post-commit side effects.
type assignmentOutcome struct {
	request     requests.ServiceRequest
	customer    requests.Customer
	primary     *routing.Candidate
	lead        leads.Lead
	leadCost    decimal.Decimal
	alternates  []routing.Candidate
	noProviders bool
}

// AssignProvidersForRequest resolves, ranks, and assigns providers for the
// request: first-ranked candidate becomes the primary lead, the next up to
// MaxAlternatives become ordered alternative selections. Re-invocation on a
// request that already has a primary lead performs a full reassignment.
//
// The whole mutation runs in one transaction under a per-request advisory
// lock, so two concurrent (re)assignments for the same request serialize
// instead of interleaving.
func (s *Service) AssignProvidersForRequest(ctx context.Context, serviceRequestID uuid.UUID) error {
	outcome, err := s.assignInTx(ctx, serviceRequestID)
	if err != nil {
		return err
	}

	s.publishOutcome(ctx, outcome)
	return nil
}

func (s *Service) assignInTx(ctx context.Context, serviceRequestID uuid.UUID) (assignmentOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return assignmentOutcome{}, fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback(ctx)

	selectionRepo := New(tx)
	requestRepo := requests.New(tx)
	leadRepo := leads.New(tx)

	if err := selectionRepo.AcquireRequestLock(ctx, serviceRequestID); err != nil {
		return assignmentOutcome{}, err
	}

	request, err := requestRepo.GetByID(ctx, serviceRequestID)
	if err != nil {
		return assignmentOutcome{}, err
	}
	if !request.Status.Reassignable() {
		return assignmentOutcome{}, apperr.Conflict(
			fmt.Sprintf("request is %s and can no longer be assigned", request.Status))
	}

	customer, err := requestRepo.GetCustomer(ctx, serviceRequestID)
	if err != nil {
		return assignmentOutcome{}, err
	}

	// Reassignment: tear down whatever the previous run produced.
	if request.PrimaryProviderID != nil {
		if err := leadRepo.DeleteByServiceRequest(ctx, serviceRequestID); err != nil {
			return assignmentOutcome{}, err
		}
		if err := selectionRepo.DeleteByRequest(ctx, serviceRequestID); err != nil {
			return assignmentOutcome{}, err
		}
		if err := requestRepo.ResetForReassignment(ctx, serviceRequestID); err != nil {
			return assignmentOutcome{}, err
		}
	}

	candidates, err := s.resolver.Resolve(ctx, routing.RequestLocation{
		Category:    request.Category,
		SubCategory: request.SubCategory,
		Zip:         request.Zip,
		City:        request.City,
		State:       request.State,
		RadiusKM:    request.RadiusKM,
	})
	if err != nil {
		return assignmentOutcome{}, err
	}

	if len(candidates) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return assignmentOutcome{}, fmt.Errorf("commit assignment tx: %w", err)
		}
		return assignmentOutcome{request: request, customer: customer, noProviders: true}, nil
	}

	ranked := routing.Rank(candidates)
	primary := ranked[0]
	alternates := ranked[1:]
	if max := s.cfg.GetMaxAlternatives(); len(alternates) > max {
		alternates = alternates[:max]
	}

	leadCost, err := s.pricer.PriceLead(ctx, primary.OwnerID)
	if err != nil {
		s.log.WithContext(ctx).Warn("lead pricing failed, using base cost",
			"provider_id", primary.OwnerID, "error", err)
		leadCost = s.cfg.GetLeadBaseCost()
	}

	lead, err := leadRepo.Create(ctx, leads.CreateParams{
		ServiceRequestID: serviceRequestID,
		CustomerID:       request.CustomerID,
		ProviderID:       primary.OwnerID,
		BusinessID:       primary.BusinessID,
		Category:         request.Category,
		Zip:              request.Zip,
		City:             request.City,
		State:            request.State,
		Status:           domain.StatusSubmitted,
		Position:         0,
		LeadCost:         leadCost,
	})
	if err != nil {
		return assignmentOutcome{}, err
	}

	assigned, err := requestRepo.MarkLeadAssigned(ctx, serviceRequestID, primary.OwnerID)
	if err != nil {
		return assignmentOutcome{}, err
	}
	if !assigned {
		return assignmentOutcome{}, apperr.Conflict("request state changed during assignment")
	}

	for i, alt := range alternates {
		_, err := selectionRepo.CreateSelection(ctx, AlternativeSelection{
			ServiceRequestID: serviceRequestID,
			BusinessID:       alt.BusinessID,
			ProviderID:       alt.OwnerID,
			Position:         i + 1,
		})
		if err != nil {
			return assignmentOutcome{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return assignmentOutcome{}, fmt.Errorf("commit assignment tx: %w", err)
	}

	return assignmentOutcome{
		request:    request,
		customer:   customer,
		primary:    &primary,
		lead:       lead,
		leadCost:   leadCost,
		alternates: alternates,
	}, nil
}

func (s *Service) publishOutcome(ctx context.Context, outcome assignmentOutcome) {
	log := s.log.WithContext(ctx)

	if outcome.noProviders {
		log.Warn("no provider available", "request_id", outcome.request.ID, "category", outcome.request.Category)
		s.bus.Publish(ctx, events.NoProviderAvailable{
			BaseEvent:        events.NewBaseEvent(),
			ServiceRequestID: outcome.request.ID,
			CustomerID:       outcome.customer.ID,
			CustomerEmail:    outcome.customer.Email,
			CustomerName:     outcome.customer.Name,
			Category:         outcome.request.Category,
		})
		return
	}

	log.Info("providers assigned",
		"request_id", outcome.request.ID,
		"lead_id", outcome.lead.ID,
		"primary_provider_id", outcome.primary.OwnerID,
		"alternatives", len(outcome.alternates))

	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           outcome.lead.ID,
		ServiceRequestID: outcome.request.ID,
		ProviderID:       outcome.primary.OwnerID,
		ProviderEmail:    outcome.primary.OwnerEmail,
		ProviderName:     outcome.primary.OwnerName,
		Category:         outcome.request.Category,
		City:             outcome.request.City,
		LeadCost:         outcome.leadCost,
	})

	if s.scheduler != nil {
		deadline := time.Now().Add(s.cfg.GetFallbackWindow())
		if err := s.scheduler.ScheduleConversionCheck(ctx, outcome.request.ID, outcome.lead.ID, deadline); err != nil {
			log.Error("schedule conversion check failed", "error", err, "lead_id", outcome.lead.ID)
		}
	}
}
