package notification

import (
	"context"
	"testing"

	"leadmarket_backend/internal/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func workOrderEvent(providerID, customerID uuid.UUID) events.WorkOrderCreated {
	return events.WorkOrderCreated{
		BaseEvent:        events.NewBaseEvent(),
		WorkOrderID:      uuid.New(),
		ProposalID:       uuid.New(),
		ServiceRequestID: uuid.New(),
		ProviderID:       providerID,
		ProviderEmail:    "pro@example.com",
		CustomerID:       customerID,
		CustomerEmail:    "customer@example.com",
		Price:            decimal.RequireFromString("450.00"),
	}
}

func TestWorkOrderCreatedNotifiesBothParties(t *testing.T) {
	providerID := uuid.New()
	customerID := uuid.New()
	store := &fakeStore{prefByUser: map[uuid.UUID]Preference{
		providerID: allowAll(providerID),
		customerID: allowAll(customerID),
	}}
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, 0)
	sub := NewSubscriber(svc, "https://app.leadmarket.test")

	if err := sub.onWorkOrderCreated(context.Background(), workOrderEvent(providerID, customerID)); err != nil {
		t.Fatal(err)
	}

	if sender.calls != 2 {
		t.Fatalf("sends = %d, want 2", sender.calls)
	}
	got := map[string]bool{}
	for _, to := range sender.recipients {
		got[to] = true
	}
	if !got["pro@example.com"] || !got["customer@example.com"] {
		t.Errorf("recipients = %v, want provider and customer", sender.recipients)
	}
	if len(store.created) != 2 {
		t.Fatalf("audits = %d, want 2", len(store.created))
	}
}

func TestWorkOrderCreatedHonorsCustomerPreference(t *testing.T) {
	providerID := uuid.New()
	customerID := uuid.New()
	customerPref := allowAll(customerID)
	customerPref.PaymentsEnabled = false
	store := &fakeStore{prefByUser: map[uuid.UUID]Preference{
		providerID: allowAll(providerID),
		customerID: customerPref,
	}}
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, 0)
	sub := NewSubscriber(svc, "https://app.leadmarket.test")

	if err := sub.onWorkOrderCreated(context.Background(), workOrderEvent(providerID, customerID)); err != nil {
		t.Fatal(err)
	}

	if sender.calls != 1 {
		t.Fatalf("sends = %d, want provider only", sender.calls)
	}
	if sender.lastTo != "pro@example.com" {
		t.Errorf("recipient = %s, want the provider", sender.lastTo)
	}
	if len(store.created) != 1 {
		t.Fatalf("audits = %d, want 1; a skipped send leaves no audit", len(store.created))
	}
	if store.created[0].UserID == nil || *store.created[0].UserID != providerID {
		t.Error("the surviving audit should belong to the provider")
	}
}
