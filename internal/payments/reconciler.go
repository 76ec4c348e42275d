package payments

import (
	"context"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/proposals"
	"leadmarket_backend/internal/requests"
	"leadmarket_backend/internal/subscriptions"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadFinalizer finalizes or rolls back a staged lead acceptance.
type LeadFinalizer interface {
	Accept(ctx context.Context, leadID uuid.UUID) (leads.AcceptResult, error)
	ClearStagedAcceptance(ctx context.Context, leadID uuid.UUID) (leads.Lead, error)
}

// ProposalStore mutates proposals in response to payment outcomes.
type ProposalStore interface {
	EnsureForLead(ctx context.Context, params proposals.CreateParams) (proposals.Proposal, error)
	RecordPaymentSuccess(ctx context.Context, proposalID uuid.UUID) (proposals.Proposal, bool, error)
	RecordPaymentFailure(ctx context.Context, proposalID uuid.UUID) (proposals.Proposal, error)
	CreateWorkOrder(ctx context.Context, proposalID uuid.UUID) (proposals.WorkOrder, bool, error)
}

// SubscriptionActivator upserts subscriptions on successful payment.
type SubscriptionActivator interface {
	Activate(ctx context.Context, userID, planID uuid.UUID) (subscriptions.UserSubscription, subscriptions.SubscriptionPlan, error)
}

// RequestUpdater advances the service request lifecycle.
type RequestUpdater interface {
	MarkLeadAssigned(ctx context.Context, requestID, providerID uuid.UUID) (bool, error)
	AdvanceStatus(ctx context.Context, requestID uuid.UUID, from, to requests.Status) (bool, error)
}

// FallbackTrigger starts the fallback chain without waiting for the
// timeout window.
type FallbackTrigger interface {
	TriggerImmediate(ctx context.Context, serviceRequestID uuid.UUID) error
}

// UserDirectory resolves contact details for notification events.
type UserDirectory interface {
	GetCustomerContact(ctx context.Context, userID uuid.UUID) (leads.CustomerContact, error)
	GetProviderContact(ctx context.Context, userID uuid.UUID) (leads.ProviderContact, error)
}

// Reconciler dispatches payment-outcome events to the owning aggregates.
//
// Every path is safe to re-run from the top: duplicate deliveries are
// detected from stored state, never from event ordering, and detection is
// a logged no-op rather than an error so the processor stops redelivering.
type Reconciler struct {
	leads     LeadFinalizer
	proposals ProposalStore
	subs      SubscriptionActivator
	requests  RequestUpdater
	fallback  FallbackTrigger
	directory UserDirectory
	bus       events.Bus
	log       *logger.Logger
}

// NewReconciler creates the payment event reconciler.
func NewReconciler(
	leadFinalizer LeadFinalizer,
	proposalStore ProposalStore,
	subs SubscriptionActivator,
	requestUpdater RequestUpdater,
	fallback FallbackTrigger,
	directory UserDirectory,
	bus events.Bus,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		leads:     leadFinalizer,
		proposals: proposalStore,
		subs:      subs,
		requests:  requestUpdater,
		fallback:  fallback,
		directory: directory,
		bus:       bus,
		log:       log,
	}
}

// Process reconciles one event. A RetryableError asks the transport layer
// to signal "retry me"; any other error is acknowledged upstream.
func (r *Reconciler) Process(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	switch event.Purpose {
	case PurposeLeadAcceptance:
		return r.reconcileLeadAcceptance(ctx, event)
	case PurposeProposal:
		return r.reconcileProposal(ctx, event)
	case PurposeSubscription:
		return r.reconcileSubscription(ctx, event)
	}
	return nil
}

func (r *Reconciler) reconcileLeadAcceptance(ctx context.Context, event Event) error {
	leadID := event.CorrelationIDs.LeadID
	if leadID == uuid.Nil {
		return &FatalError{Reason: "lead_acceptance event missing lead id"}
	}

	if event.EventType != EventSucceeded {
		return r.leadPaymentFailed(ctx, event, leadID)
	}

	result, err := r.leads.Accept(ctx, leadID)
	if err != nil {
		// A sibling already won the request. A late or duplicate success
		// event cannot change that; acknowledge it.
		if apperr.GetKind(err) == apperr.KindConflict {
			r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "sibling already accepted")
			return nil
		}
		return Retryable(err)
	}
	if !result.Transitioned {
		r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "duplicate delivery")
		return nil
	}

	lead := result.Lead
	acceptedEvent := events.LeadAccepted{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           lead.ID,
		ServiceRequestID: lead.ServiceRequestID,
		ProviderID:       lead.ProviderID,
		CustomerID:       lead.CustomerID,
	}
	if lead.CustomerName != nil {
		acceptedEvent.CustomerName = *lead.CustomerName
	}
	if lead.CustomerEmail != nil {
		acceptedEvent.CustomerEmail = *lead.CustomerEmail
	}
	if lead.CustomerPhone != nil {
		acceptedEvent.CustomerPhone = *lead.CustomerPhone
	}

	if draft := lead.Metadata.ProposalDraft; draft != nil {
		proposal, err := r.proposals.EnsureForLead(ctx, proposals.CreateParams{
			LeadID:           lead.ID,
			ServiceRequestID: lead.ServiceRequestID,
			ProviderID:       lead.ProviderID,
			CustomerID:       lead.CustomerID,
			Details:          draft.Details,
			Price:            draft.Price,
		})
		if err != nil {
			return Retryable(err)
		}
		acceptedEvent.ProposalID = proposal.ID
		acceptedEvent.ProposalPrice = proposal.Price
	} else {
		r.log.Warn("accepted lead has no staged proposal draft", "lead_id", lead.ID)
	}

	if _, err := r.requests.MarkLeadAssigned(ctx, lead.ServiceRequestID, lead.ProviderID); err != nil {
		return Retryable(err)
	}

	provider, err := r.directory.GetProviderContact(ctx, lead.ProviderID)
	if err != nil {
		return Retryable(err)
	}
	acceptedEvent.ProviderName = provider.Name
	acceptedEvent.ProviderEmail = provider.Email

	r.bus.Publish(ctx, acceptedEvent)
	r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "")
	return nil
}

// leadPaymentFailed keeps the lead open and retryable by the same
// provider, tells the provider, and starts the fallback chain immediately
// since a failed payment is a strong signal the primary will not convert.
func (r *Reconciler) leadPaymentFailed(ctx context.Context, event Event, leadID uuid.UUID) error {
	lead, err := r.leads.ClearStagedAcceptance(ctx, leadID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return &FatalError{Reason: "lead_acceptance event references unknown lead"}
		}
		return Retryable(err)
	}

	provider, err := r.directory.GetProviderContact(ctx, lead.ProviderID)
	if err != nil {
		return Retryable(err)
	}

	r.bus.Publish(ctx, events.LeadPaymentFailed{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           lead.ID,
		ServiceRequestID: lead.ServiceRequestID,
		ProviderID:       lead.ProviderID,
		ProviderEmail:    provider.Email,
		ProviderName:     provider.Name,
	})

	if err := r.fallback.TriggerImmediate(ctx, lead.ServiceRequestID); err != nil {
		return Retryable(err)
	}

	r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "")
	return nil
}

func (r *Reconciler) reconcileProposal(ctx context.Context, event Event) error {
	proposalID := event.CorrelationIDs.ProposalID
	if proposalID == uuid.Nil {
		return &FatalError{Reason: "proposal event missing proposal id"}
	}

	if event.EventType != EventSucceeded {
		return r.proposalPaymentFailed(ctx, event, proposalID)
	}

	proposal, first, err := r.proposals.RecordPaymentSuccess(ctx, proposalID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return &FatalError{Reason: "proposal event references unknown proposal"}
		}
		return Retryable(err)
	}
	if !first {
		r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "duplicate delivery")
		return nil
	}

	order, created, err := r.proposals.CreateWorkOrder(ctx, proposalID)
	if err != nil {
		return Retryable(err)
	}
	if created {
		if _, err := r.requests.AdvanceStatus(ctx, proposal.ServiceRequestID, requests.StatusLeadAssigned, requests.StatusInProgress); err != nil {
			return Retryable(err)
		}

		provider, err := r.directory.GetProviderContact(ctx, proposal.ProviderID)
		if err != nil {
			return Retryable(err)
		}
		customer, err := r.directory.GetCustomerContact(ctx, proposal.CustomerID)
		if err != nil {
			return Retryable(err)
		}

		r.bus.Publish(ctx, events.WorkOrderCreated{
			BaseEvent:        events.NewBaseEvent(),
			WorkOrderID:      order.ID,
			ProposalID:       proposal.ID,
			ServiceRequestID: proposal.ServiceRequestID,
			ProviderID:       proposal.ProviderID,
			ProviderEmail:    provider.Email,
			CustomerID:       proposal.CustomerID,
			CustomerEmail:    customer.Email,
			Price:            proposal.Price,
		})
	}

	r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "")
	return nil
}

func (r *Reconciler) proposalPaymentFailed(ctx context.Context, event Event, proposalID uuid.UUID) error {
	proposal, err := r.proposals.RecordPaymentFailure(ctx, proposalID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return &FatalError{Reason: "proposal event references unknown proposal"}
		}
		return Retryable(err)
	}

	customer, err := r.directory.GetCustomerContact(ctx, proposal.CustomerID)
	if err != nil {
		return Retryable(err)
	}

	r.bus.Publish(ctx, events.ProposalPaymentFailed{
		BaseEvent:     events.NewBaseEvent(),
		ProposalID:    proposal.ID,
		CustomerID:    proposal.CustomerID,
		CustomerEmail: customer.Email,
		CustomerName:  customer.Name,
	})

	r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "")
	return nil
}

func (r *Reconciler) reconcileSubscription(ctx context.Context, event Event) error {
	if event.EventType != EventSucceeded {
		// A failed renewal changes nothing: the subscription keeps its
		// current period and expires lazily if never renewed.
		r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "no state change on failed subscription payment")
		return nil
	}

	userID, planID := event.CorrelationIDs.UserID, event.CorrelationIDs.PlanID
	if userID == uuid.Nil || planID == uuid.Nil {
		return &FatalError{Reason: "subscription event missing user or plan id"}
	}

	sub, plan, err := r.subs.Activate(ctx, userID, planID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return &FatalError{Reason: "subscription event references unknown plan"}
		}
		return Retryable(err)
	}

	user, err := r.directory.GetProviderContact(ctx, userID)
	if err != nil {
		return Retryable(err)
	}

	r.bus.Publish(ctx, events.SubscriptionActivated{
		BaseEvent:      events.NewBaseEvent(),
		SubscriptionID: sub.ID,
		UserID:         userID,
		UserEmail:      user.Email,
		UserName:       user.Name,
		PlanTier:       plan.Tier,
		BillingCycle:   string(plan.BillingCycle),
	})

	r.log.PaymentEvent(string(event.EventType), string(event.Purpose), true, "")
	return nil
}
