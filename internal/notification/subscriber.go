package notification

import (
	"context"
	"fmt"

	"leadmarket_backend/internal/events"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Subscriber turns domain events into outgoing notifications. A provider
// event and a customer event for the same domain fact are separate sends
// with separate audits.
type Subscriber struct {
	service    *Service
	appBaseURL string
}

// NewSubscriber creates the event subscriber.
func NewSubscriber(service *Service, appBaseURL string) *Subscriber {
	return &Subscriber{service: service, appBaseURL: appBaseURL}
}

// Register subscribes every notification-bearing domain event on the bus.
func (s *Subscriber) Register(bus events.Bus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(s.onLeadAssigned))
	bus.Subscribe(events.LeadRouted{}.EventName(), events.HandlerFunc(s.onLeadRouted))
	bus.Subscribe(events.NoProviderAvailable{}.EventName(), events.HandlerFunc(s.onNoProviderAvailable))
	bus.Subscribe(events.LeadAccepted{}.EventName(), events.HandlerFunc(s.onLeadAccepted))
	bus.Subscribe(events.LeadPaymentFailed{}.EventName(), events.HandlerFunc(s.onLeadPaymentFailed))
	bus.Subscribe(events.ProposalPaymentFailed{}.EventName(), events.HandlerFunc(s.onProposalPaymentFailed))
	bus.Subscribe(events.WorkOrderCreated{}.EventName(), events.HandlerFunc(s.onWorkOrderCreated))
	bus.Subscribe(events.SubscriptionActivated{}.EventName(), events.HandlerFunc(s.onSubscriptionActivated))
}

func (s *Subscriber) leadURL(leadID uuid.UUID) string {
	return fmt.Sprintf("%s/leads/%s", s.appBaseURL, leadID)
}

func (s *Subscriber) onLeadAssigned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadAssigned)
	if !ok {
		return nil
	}
	providerID := e.ProviderID
	_, err := s.service.Send(ctx, SendInput{
		UserID:         &providerID,
		RecipientEmail: e.ProviderEmail,
		Type:           TypeLeadAssigned,
		Data: TemplateData{
			"providerName": e.ProviderName,
			"category":     e.Category,
			"city":         e.City,
			"leadCost":     e.LeadCost.StringFixed(2),
			"leadURL":      s.leadURL(e.LeadID),
		},
	})
	return err
}

func (s *Subscriber) onLeadRouted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadRouted)
	if !ok {
		return nil
	}
	providerID := e.ProviderID
	_, err := s.service.Send(ctx, SendInput{
		UserID:         &providerID,
		RecipientEmail: e.ProviderEmail,
		Type:           TypeLeadRouted,
		Data: TemplateData{
			"providerName": e.ProviderName,
			"category":     e.Category,
			"leadURL":      s.leadURL(e.LeadID),
		},
	})
	return err
}

func (s *Subscriber) onNoProviderAvailable(ctx context.Context, event events.Event) error {
	e, ok := event.(events.NoProviderAvailable)
	if !ok {
		return nil
	}
	customerID := e.CustomerID
	_, err := s.service.Send(ctx, SendInput{
		UserID:         &customerID,
		RecipientEmail: e.CustomerEmail,
		Type:           TypeNoProviderAvailable,
		Data: TemplateData{
			"customerName": e.CustomerName,
			"category":     e.Category,
		},
	})
	return err
}

func (s *Subscriber) onLeadAccepted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadAccepted)
	if !ok {
		return nil
	}
	providerID := e.ProviderID
	customerID := e.CustomerID

	// The two recipients are independent; one failing delivery must not
	// hold back the other.
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.service.Send(ctx, SendInput{
			UserID:         &providerID,
			RecipientEmail: e.ProviderEmail,
			Type:           TypeLeadAcceptedProvider,
			Data: TemplateData{
				"providerName":  e.ProviderName,
				"customerName":  e.CustomerName,
				"customerEmail": e.CustomerEmail,
				"customerPhone": e.CustomerPhone,
				"leadURL":       s.leadURL(e.LeadID),
			},
		})
		return err
	})
	g.Go(func() error {
		_, err := s.service.Send(ctx, SendInput{
			UserID:         &customerID,
			RecipientEmail: e.CustomerEmail,
			Type:           TypeLeadAcceptedCustomer,
			Data: TemplateData{
				"customerName": e.CustomerName,
				"providerName": e.ProviderName,
			},
		})
		return err
	})
	return g.Wait()
}

func (s *Subscriber) onLeadPaymentFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadPaymentFailed)
	if !ok {
		return nil
	}
	providerID := e.ProviderID
	_, err := s.service.Send(ctx, SendInput{
		UserID:         &providerID,
		RecipientEmail: e.ProviderEmail,
		Type:           TypeLeadPaymentFailed,
		Data: TemplateData{
			"providerName": e.ProviderName,
			"leadURL":      s.leadURL(e.LeadID),
		},
	})
	return err
}

func (s *Subscriber) onProposalPaymentFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ProposalPaymentFailed)
	if !ok {
		return nil
	}
	customerID := e.CustomerID
	_, err := s.service.Send(ctx, SendInput{
		UserID:         &customerID,
		RecipientEmail: e.CustomerEmail,
		Type:           TypeProposalPaymentFailed,
		Data: TemplateData{
			"customerName": e.CustomerName,
			"proposalURL":  fmt.Sprintf("%s/proposals/%s", s.appBaseURL, e.ProposalID),
		},
	})
	return err
}

func (s *Subscriber) onWorkOrderCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.WorkOrderCreated)
	if !ok {
		return nil
	}
	data := TemplateData{
		"price":        e.Price.StringFixed(2),
		"workOrderURL": fmt.Sprintf("%s/work-orders/%s", s.appBaseURL, e.WorkOrderID),
	}

	providerID := e.ProviderID
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.service.Send(ctx, SendInput{
			UserID:         &providerID,
			RecipientEmail: e.ProviderEmail,
			Type:           TypeWorkOrderCreated,
			Data:           data,
		})
		return err
	})
	customerID := e.CustomerID
	g.Go(func() error {
		_, err := s.service.Send(ctx, SendInput{
			UserID:         &customerID,
			RecipientEmail: e.CustomerEmail,
			Type:           TypeWorkOrderCreated,
			Data:           data,
		})
		return err
	})
	return g.Wait()
}

func (s *Subscriber) onSubscriptionActivated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.SubscriptionActivated)
	if !ok {
		return nil
	}
	userID := e.UserID
	_, err := s.service.Send(ctx, SendInput{
		UserID:         &userID,
		RecipientEmail: e.UserEmail,
		Type:           TypeSubscriptionActivated,
		Data: TemplateData{
			"userName":     e.UserName,
			"planTier":     e.PlanTier,
			"billingCycle": e.BillingCycle,
		},
	})
	return err
}
