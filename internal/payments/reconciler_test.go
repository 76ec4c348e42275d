package payments

import (
	"context"
	"errors"
	"testing"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/proposals"
	"leadmarket_backend/internal/requests"
	"leadmarket_backend/internal/subscriptions"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeLeadFinalizer struct {
	acceptResult leads.AcceptResult
	acceptErr    error
	acceptCalls  int
	cleared      []uuid.UUID
	clearedLead  leads.Lead
}

func (f *fakeLeadFinalizer) Accept(_ context.Context, _ uuid.UUID) (leads.AcceptResult, error) {
	f.acceptCalls++
	return f.acceptResult, f.acceptErr
}

func (f *fakeLeadFinalizer) ClearStagedAcceptance(_ context.Context, leadID uuid.UUID) (leads.Lead, error) {
	f.cleared = append(f.cleared, leadID)
	return f.clearedLead, nil
}

type fakeProposalStore struct {
	ensured      []proposals.CreateParams
	proposal     proposals.Proposal
	successFirst bool
	successErr   error
	failures     []uuid.UUID
	workOrder    proposals.WorkOrder
	orderCreated bool
	orderCalls   int
}

func (f *fakeProposalStore) EnsureForLead(_ context.Context, params proposals.CreateParams) (proposals.Proposal, error) {
	f.ensured = append(f.ensured, params)
	return f.proposal, nil
}

func (f *fakeProposalStore) RecordPaymentSuccess(_ context.Context, _ uuid.UUID) (proposals.Proposal, bool, error) {
	return f.proposal, f.successFirst, f.successErr
}

func (f *fakeProposalStore) RecordPaymentFailure(_ context.Context, proposalID uuid.UUID) (proposals.Proposal, error) {
	f.failures = append(f.failures, proposalID)
	return f.proposal, nil
}

func (f *fakeProposalStore) CreateWorkOrder(_ context.Context, _ uuid.UUID) (proposals.WorkOrder, bool, error) {
	f.orderCalls++
	return f.workOrder, f.orderCreated, nil
}

type fakeSubscriptionActivator struct {
	activated [][2]uuid.UUID
	sub       subscriptions.UserSubscription
	plan      subscriptions.SubscriptionPlan
}

func (f *fakeSubscriptionActivator) Activate(_ context.Context, userID, planID uuid.UUID) (subscriptions.UserSubscription, subscriptions.SubscriptionPlan, error) {
	f.activated = append(f.activated, [2]uuid.UUID{userID, planID})
	return f.sub, f.plan, nil
}

type fakeRequestUpdater struct {
	leadAssigned []uuid.UUID
	advanced     []requests.Status
}

func (f *fakeRequestUpdater) MarkLeadAssigned(_ context.Context, requestID, _ uuid.UUID) (bool, error) {
	f.leadAssigned = append(f.leadAssigned, requestID)
	return true, nil
}

func (f *fakeRequestUpdater) AdvanceStatus(_ context.Context, _ uuid.UUID, _, to requests.Status) (bool, error) {
	f.advanced = append(f.advanced, to)
	return true, nil
}

type fakeFallbackTrigger struct {
	triggered []uuid.UUID
}

func (f *fakeFallbackTrigger) TriggerImmediate(_ context.Context, serviceRequestID uuid.UUID) error {
	f.triggered = append(f.triggered, serviceRequestID)
	return nil
}

type fakeDirectory struct{}

func (fakeDirectory) GetCustomerContact(_ context.Context, _ uuid.UUID) (leads.CustomerContact, error) {
	return leads.CustomerContact{Name: "Casey Customer", Email: "casey@example.com", Phone: "+15125550100"}, nil
}

func (fakeDirectory) GetProviderContact(_ context.Context, userID uuid.UUID) (leads.ProviderContact, error) {
	return leads.ProviderContact{ID: userID, Name: "Pat Provider", Email: "pat@example.com"}, nil
}

type reconcilerFixture struct {
	leads     *fakeLeadFinalizer
	proposals *fakeProposalStore
	subs      *fakeSubscriptionActivator
	requests  *fakeRequestUpdater
	fallback  *fakeFallbackTrigger
	bus       *recordingBus
	rec       *Reconciler
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func newFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		leads:     &fakeLeadFinalizer{},
		proposals: &fakeProposalStore{},
		subs:      &fakeSubscriptionActivator{},
		requests:  &fakeRequestUpdater{},
		fallback:  &fakeFallbackTrigger{},
		bus:       &recordingBus{},
	}
	f.rec = NewReconciler(f.leads, f.proposals, f.subs, f.requests, f.fallback, fakeDirectory{}, f.bus, logger.New("development"))
	return f
}

func strPtr(s string) *string { return &s }

func acceptedLead(leadID, requestID, providerID, customerID uuid.UUID) leads.Lead {
	price := decimal.RequireFromString("450.00")
	return leads.Lead{
		ID:               leadID,
		ServiceRequestID: requestID,
		ProviderID:       providerID,
		CustomerID:       customerID,
		Status:           domain.StatusAccepted,
		CustomerName:     strPtr("Casey Customer"),
		CustomerEmail:    strPtr("casey@example.com"),
		Metadata: leads.Metadata{
			ServiceRequestID: requestID,
			ProposalDraft:    &leads.ProposalDraft{Details: "Fix the roof", Price: price},
		},
	}
}

func TestLeadAcceptanceSucceeded(t *testing.T) {
	f := newFixture()
	leadID, requestID := uuid.New(), uuid.New()
	providerID, customerID := uuid.New(), uuid.New()
	f.leads.acceptResult = leads.AcceptResult{
		Lead:         acceptedLead(leadID, requestID, providerID, customerID),
		Transitioned: true,
	}
	f.proposals.proposal = proposals.Proposal{ID: uuid.New(), Price: decimal.RequireFromString("450.00")}

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeLeadAcceptance,
		CorrelationIDs: CorrelationIDs{LeadID: leadID},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.proposals.ensured) != 1 {
		t.Fatalf("expected 1 proposal created, got %d", len(f.proposals.ensured))
	}
	if f.proposals.ensured[0].Details != "Fix the roof" {
		t.Errorf("proposal details not taken from the staged draft")
	}
	if len(f.requests.leadAssigned) != 1 || f.requests.leadAssigned[0] != requestID {
		t.Error("request not marked lead-assigned")
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.bus.published))
	}
	accepted, ok := f.bus.published[0].(events.LeadAccepted)
	if !ok {
		t.Fatalf("expected LeadAccepted, got %T", f.bus.published[0])
	}
	if accepted.CustomerEmail != "casey@example.com" || accepted.ProviderEmail != "pat@example.com" {
		t.Error("accepted event missing party contacts")
	}
}

func TestLeadAcceptanceDuplicateDelivery(t *testing.T) {
	f := newFixture()
	leadID := uuid.New()
	f.leads.acceptResult = leads.AcceptResult{Transitioned: false}

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeLeadAcceptance,
		CorrelationIDs: CorrelationIDs{LeadID: leadID},
	})
	if err != nil {
		t.Fatalf("duplicate delivery must be acknowledged, got %v", err)
	}

	if len(f.proposals.ensured) != 0 {
		t.Error("duplicate delivery must not create a proposal")
	}
	if len(f.bus.published) != 0 {
		t.Error("duplicate delivery must not publish notifications")
	}
}

func TestLeadAcceptanceSiblingConflict(t *testing.T) {
	f := newFixture()
	f.leads.acceptErr = apperr.Conflict("lead already accepted for this request")

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeLeadAcceptance,
		CorrelationIDs: CorrelationIDs{LeadID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("sibling conflict must be acknowledged, got %v", err)
	}
	if len(f.bus.published) != 0 {
		t.Error("no notifications for a lost race")
	}
}

func TestLeadAcceptanceStoreErrorIsRetryable(t *testing.T) {
	f := newFixture()
	f.leads.acceptErr = errors.New("connection reset")

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeLeadAcceptance,
		CorrelationIDs: CorrelationIDs{LeadID: uuid.New()},
	})
	if !IsRetryable(err) {
		t.Fatalf("storage failure must request redelivery, got %v", err)
	}
}

func TestLeadAcceptanceFailedTriggersFallback(t *testing.T) {
	f := newFixture()
	leadID, requestID, providerID := uuid.New(), uuid.New(), uuid.New()
	f.leads.clearedLead = leads.Lead{ID: leadID, ServiceRequestID: requestID, ProviderID: providerID}

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventFailed,
		Purpose:        PurposeLeadAcceptance,
		CorrelationIDs: CorrelationIDs{LeadID: leadID},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.leads.cleared) != 1 {
		t.Error("staged acceptance not cleared")
	}
	if len(f.fallback.triggered) != 1 || f.fallback.triggered[0] != requestID {
		t.Error("fallback not triggered immediately on payment failure")
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.bus.published))
	}
	if _, ok := f.bus.published[0].(events.LeadPaymentFailed); !ok {
		t.Errorf("expected LeadPaymentFailed, got %T", f.bus.published[0])
	}
}

func TestProposalSucceededFirstDelivery(t *testing.T) {
	f := newFixture()
	proposalID, requestID := uuid.New(), uuid.New()
	f.proposals.proposal = proposals.Proposal{
		ID:               proposalID,
		ServiceRequestID: requestID,
		ProviderID:       uuid.New(),
		CustomerID:       uuid.New(),
		Price:            decimal.RequireFromString("450.00"),
	}
	f.proposals.successFirst = true
	f.proposals.orderCreated = true
	f.proposals.workOrder = proposals.WorkOrder{ID: uuid.New(), ProposalID: proposalID}

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeProposal,
		CorrelationIDs: CorrelationIDs{ProposalID: proposalID},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.requests.advanced) != 1 || f.requests.advanced[0] != requests.StatusInProgress {
		t.Error("request not advanced to in_progress")
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.bus.published))
	}
	created, ok := f.bus.published[0].(events.WorkOrderCreated)
	if !ok {
		t.Fatalf("expected WorkOrderCreated, got %T", f.bus.published[0])
	}
	if created.CustomerID != f.proposals.proposal.CustomerID {
		t.Error("event should carry the customer account reference")
	}
}

func TestProposalSucceededDuplicateDelivery(t *testing.T) {
	f := newFixture()
	f.proposals.successFirst = false

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeProposal,
		CorrelationIDs: CorrelationIDs{ProposalID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("duplicate delivery must be acknowledged, got %v", err)
	}
	if f.proposals.orderCalls != 0 {
		t.Error("duplicate delivery must not attempt work order creation")
	}
	if len(f.bus.published) != 0 {
		t.Error("duplicate delivery must not publish notifications")
	}
}

func TestProposalFailedNotifiesCustomer(t *testing.T) {
	f := newFixture()
	proposalID := uuid.New()
	f.proposals.proposal = proposals.Proposal{ID: proposalID, CustomerID: uuid.New()}

	for _, eventType := range []EventType{EventFailed, EventCanceled} {
		f.bus.published = nil
		err := f.rec.Process(context.Background(), Event{
			EventType:      eventType,
			Purpose:        PurposeProposal,
			CorrelationIDs: CorrelationIDs{ProposalID: proposalID},
		})
		if err != nil {
			t.Fatalf("Process(%s): %v", eventType, err)
		}
		if len(f.bus.published) != 1 {
			t.Fatalf("expected 1 event for %s, got %d", eventType, len(f.bus.published))
		}
		if _, ok := f.bus.published[0].(events.ProposalPaymentFailed); !ok {
			t.Errorf("expected ProposalPaymentFailed, got %T", f.bus.published[0])
		}
	}
}

func TestSubscriptionSucceededActivates(t *testing.T) {
	f := newFixture()
	userID, planID := uuid.New(), uuid.New()
	f.subs.sub = subscriptions.UserSubscription{ID: uuid.New(), UserID: userID}
	f.subs.plan = subscriptions.SubscriptionPlan{Tier: "pro", BillingCycle: subscriptions.CycleMonthly}

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventSucceeded,
		Purpose:        PurposeSubscription,
		CorrelationIDs: CorrelationIDs{UserID: userID, PlanID: planID},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(f.subs.activated) != 1 {
		t.Fatal("subscription not activated")
	}
	if f.subs.activated[0] != [2]uuid.UUID{userID, planID} {
		t.Error("activation called with wrong ids")
	}
	activated, ok := f.bus.published[0].(events.SubscriptionActivated)
	if !ok {
		t.Fatalf("expected SubscriptionActivated, got %T", f.bus.published[0])
	}
	if activated.PlanTier != "pro" {
		t.Errorf("PlanTier = %q, want pro", activated.PlanTier)
	}
}

func TestSubscriptionFailedIsNoOp(t *testing.T) {
	f := newFixture()

	err := f.rec.Process(context.Background(), Event{
		EventType:      EventFailed,
		Purpose:        PurposeSubscription,
		CorrelationIDs: CorrelationIDs{UserID: uuid.New(), PlanID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("failed subscription payment must be acknowledged, got %v", err)
	}
	if len(f.subs.activated) != 0 {
		t.Error("failed payment must not touch the subscription")
	}
}

func TestProcessRejectsMalformedEvents(t *testing.T) {
	f := newFixture()

	cases := []Event{
		{EventType: "refunded", Purpose: PurposeProposal},
		{EventType: EventSucceeded, Purpose: "tip"},
		{EventType: EventSucceeded, Purpose: PurposeLeadAcceptance}, // missing lead id
		{EventType: EventSucceeded, Purpose: PurposeProposal},       // missing proposal id
		{EventType: EventSucceeded, Purpose: PurposeSubscription},   // missing user/plan
	}

	for _, event := range cases {
		err := f.rec.Process(context.Background(), event)
		if err == nil {
			t.Errorf("event %+v: expected an error", event)
			continue
		}
		if IsRetryable(err) {
			t.Errorf("event %+v: malformed events must not be retried", event)
		}
	}
}
