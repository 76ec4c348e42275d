package assignment

import (
	"context"
	"testing"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads"
	"leadmarket_backend/internal/requests"
	"leadmarket_backend/internal/routing"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

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

type recordingScheduler struct {
	scheduled []uuid.UUID
	at        time.Time
}

func (s *recordingScheduler) ScheduleConversionCheck(_ context.Context, _, leadID uuid.UUID, at time.Time) error {
	s.scheduled = append(s.scheduled, leadID)
	s.at = at
	return nil
}

type staticConfig struct{}

func (staticConfig) GetLeadBaseCost() decimal.Decimal { return decimal.RequireFromString("25.00") }
func (staticConfig) GetDefaultRadiusKM() float64      { return 50 }
func (staticConfig) GetMaxAlternatives() int          { return 2 }
func (staticConfig) GetFallbackWindow() time.Duration { return 24 * time.Hour }

func TestPublishOutcomeNoProviders(t *testing.T) {
	bus := &recordingBus{}
	scheduler := &recordingScheduler{}
	svc := NewService(nil, nil, nil, scheduler, bus, staticConfig{}, logger.New("development"))

	requestID := uuid.New()
	svc.publishOutcome(context.Background(), assignmentOutcome{
		request:     requests.ServiceRequest{ID: requestID, Category: "roofing"},
		customer:    requests.Customer{ID: uuid.New(), Email: "c@example.com", Name: "Casey"},
		noProviders: true,
	})

	if len(bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.published))
	}
	event, ok := bus.published[0].(events.NoProviderAvailable)
	if !ok {
		t.Fatalf("expected NoProviderAvailable, got %T", bus.published[0])
	}
	if event.ServiceRequestID != requestID {
		t.Errorf("event carries wrong request id")
	}
	if len(scheduler.scheduled) != 0 {
		t.Error("no conversion check should be scheduled without a lead")
	}
}

func TestPublishOutcomeAssigned(t *testing.T) {
	bus := &recordingBus{}
	scheduler := &recordingScheduler{}
	svc := NewService(nil, nil, nil, scheduler, bus, staticConfig{}, logger.New("development"))

	leadID := uuid.New()
	providerID := uuid.New()
	start := time.Now()

	svc.publishOutcome(context.Background(), assignmentOutcome{
		request:  requests.ServiceRequest{ID: uuid.New(), Category: "roofing", City: "Austin"},
		customer: requests.Customer{ID: uuid.New()},
		primary:  &routing.Candidate{OwnerID: providerID, OwnerEmail: "p@example.com", OwnerName: "Pat"},
		lead:     leads.Lead{ID: leadID},
		leadCost: decimal.RequireFromString("20.00"),
	})

	if len(bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.published))
	}
	event, ok := bus.published[0].(events.LeadAssigned)
	if !ok {
		t.Fatalf("expected LeadAssigned, got %T", bus.published[0])
	}
	if event.LeadID != leadID || event.ProviderID != providerID {
		t.Error("event carries wrong identifiers")
	}
	if !event.LeadCost.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("LeadCost = %s, want 20.00", event.LeadCost)
	}

	if len(scheduler.scheduled) != 1 || scheduler.scheduled[0] != leadID {
		t.Fatal("expected a conversion check scheduled for the lead")
	}
	deadline := scheduler.at
	if deadline.Before(start.Add(23*time.Hour)) || deadline.After(start.Add(25*time.Hour)) {
		t.Errorf("conversion check scheduled at %s, want about 24h out", deadline)
	}
}
