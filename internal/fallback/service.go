package fallback

import (
	"context"
	"time"

	"leadmarket_backend/internal/assignment"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// ConversionScheduler books the next conversion check when a promotion
// creates a fresh lead.
type ConversionScheduler interface {
	ScheduleConversionCheck(ctx context.Context, serviceRequestID, leadID uuid.UUID, at time.Time) error
}

// Config is the configuration slice fallback needs.
type Config interface {
	config.AssignmentConfig
	config.FallbackConfig
}

// Service promotes alternative selections to routed leads.
type Service struct {
	store     Store
	pricer    assignment.LeadPricer
	scheduler ConversionScheduler
	bus       events.Bus
	cfg       Config
	log       *logger.Logger
}

// NewService creates the fallback service.
func NewService(
	store Store,
	pricer assignment.LeadPricer,
	scheduler ConversionScheduler,
	bus events.Bus,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{store: store, pricer: pricer, scheduler: scheduler, bus: bus, cfg: cfg, log: log}
}

// TriggerImmediate starts the fallback chain right away, without waiting
// for the conversion window. Used when a lead payment fails.
func (s *Service) TriggerImmediate(ctx context.Context, serviceRequestID uuid.UUID) error {
	return s.promoteNext(ctx, serviceRequestID, uuid.Nil)
}

// RunConversionCheck is the time-based trigger. The deadline is a logical
// property of the lead, so running late is fine: the check re-derives the
// lead's current state first.
func (s *Service) RunConversionCheck(ctx context.Context, serviceRequestID, leadID uuid.UUID) error {
	return s.promoteNext(ctx, serviceRequestID, leadID)
}

// promoteNext cancels the timed-out lead (when one is named and still
// open), then promotes exactly one eligible alternative to a routed lead.
// At most one promotion happens per invocation.
func (s *Service) promoteNext(ctx context.Context, serviceRequestID, timedOutLeadID uuid.UUID) error {
	outcome, err := s.promoteInTx(ctx, serviceRequestID, timedOutLeadID)
	if err != nil {
		return err
	}

	log := s.log.WithContext(ctx)
	if outcome.promoted == nil {
		log.Info("no alternative promoted", "request_id", serviceRequestID, "reason", outcome.reason)
		return nil
	}

	lead := *outcome.promoted
	log.Info("alternative promoted",
		"request_id", serviceRequestID, "lead_id", lead.ID,
		"provider_id", lead.ProviderID, "position", lead.Position)

	s.bus.Publish(ctx, events.LeadRouted{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           lead.ID,
		ServiceRequestID: serviceRequestID,
		ProviderID:       lead.ProviderID,
		ProviderEmail:    outcome.providerEmail,
		ProviderName:     outcome.providerName,
		Category:         lead.Category,
		Position:         lead.Position,
	})

	if s.scheduler != nil {
		deadline := time.Now().Add(s.cfg.GetFallbackWindow())
		if err := s.scheduler.ScheduleConversionCheck(ctx, serviceRequestID, lead.ID, deadline); err != nil {
			log.Error("schedule next conversion check failed", "error", err, "lead_id", lead.ID)
		}
	}
	return nil
}

type promotionOutcome struct {
	promoted      *leads.Lead
	providerName  string
	providerEmail string
	reason        string
}

func (s *Service) promoteInTx(ctx context.Context, serviceRequestID, timedOutLeadID uuid.UUID) (promotionOutcome, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return promotionOutcome{}, err
	}
	defer tx.Rollback(ctx)

	if err := tx.AcquireRequestLock(ctx, serviceRequestID); err != nil {
		return promotionOutcome{}, err
	}

	// Once any lead is accepted the chain is over, whatever triggered us.
	accepted, err := tx.AcceptedSiblingExists(ctx, serviceRequestID)
	if err != nil {
		return promotionOutcome{}, err
	}
	if accepted {
		if err := tx.Commit(ctx); err != nil {
			return promotionOutcome{}, err
		}
		return promotionOutcome{reason: "request already has an accepted lead"}, nil
	}

	// Cancel the timed-out lead if it is still open. A lead that already
	// moved on (rejected, cancelled) is left alone.
	if timedOutLeadID != uuid.Nil {
		if err := tx.CancelLead(ctx, timedOutLeadID); err != nil {
			return promotionOutcome{}, err
		}
	}

	request, err := tx.GetRequest(ctx, serviceRequestID)
	if err != nil {
		return promotionOutcome{}, err
	}

	selections, err := tx.ListSelections(ctx, serviceRequestID)
	if err != nil {
		return promotionOutcome{}, err
	}

	for _, sel := range selections {
		hasAccepted, err := tx.ProviderHasAcceptedLead(ctx, serviceRequestID, sel.ProviderID)
		if err != nil {
			return promotionOutcome{}, err
		}
		if hasAccepted {
			// Stale selection; the provider already won through another
			// path. Consume it and look at the next one.
			if err := tx.DeleteSelection(ctx, sel.ID); err != nil {
				return promotionOutcome{}, err
			}
			continue
		}

		leadCost, err := s.pricer.PriceLead(ctx, sel.ProviderID)
		if err != nil {
			s.log.WithContext(ctx).Warn("lead pricing failed, using base cost",
				"provider_id", sel.ProviderID, "error", err)
			leadCost = s.cfg.GetLeadBaseCost()
		}

		lead, err := tx.CreateLead(ctx, leads.CreateParams{
			ServiceRequestID: serviceRequestID,
			CustomerID:       request.CustomerID,
			ProviderID:       sel.ProviderID,
			BusinessID:       sel.BusinessID,
			Category:         request.Category,
			Zip:              request.Zip,
			City:             request.City,
			State:            request.State,
			Status:           domain.StatusRouted,
			Position:         sel.Position,
			LeadCost:         leadCost,
		})
		if err != nil {
			return promotionOutcome{}, err
		}

		if err := tx.DeleteSelection(ctx, sel.ID); err != nil {
			return promotionOutcome{}, err
		}

		provider, err := tx.GetProviderContact(ctx, sel.ProviderID)
		if err != nil {
			return promotionOutcome{}, err
		}

		if err := tx.Commit(ctx); err != nil {
			return promotionOutcome{}, err
		}
		return promotionOutcome{promoted: &lead, providerName: provider.Name, providerEmail: provider.Email}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return promotionOutcome{}, err
	}
	return promotionOutcome{reason: "alternatives exhausted"}, nil
}
