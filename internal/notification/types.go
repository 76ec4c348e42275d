// Package notification delivers templated emails for domain events, with
// per-user preferences, a persistent audit trail, and bounded retries.
// Delivery failure never aborts the business operation that triggered it.
package notification

import (
	"fmt"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/platform/apperr"
)

// Type identifies a notification template. The registry below is closed:
// sending an unregistered type is a programming error, not a runtime
// condition to retry.
type Type string

const (
	TypeLeadAssigned          Type = "lead_assigned"
	TypeLeadRouted            Type = "lead_routed"
	TypeNoProviderAvailable   Type = "no_provider_available"
	TypeLeadAcceptedProvider  Type = "lead_accepted_provider"
	TypeLeadAcceptedCustomer  Type = "lead_accepted_customer"
	TypeLeadPaymentFailed     Type = "lead_payment_failed"
	TypeProposalPaymentFailed Type = "proposal_payment_failed"
	TypeWorkOrderCreated      Type = "work_order_created"
	TypeSubscriptionActivated Type = "subscription_activated"
)

// Category groups types for preference flags.
type Category string

const (
	CategoryLeads         Category = "leads"
	CategoryPayments      Category = "payments"
	CategorySubscriptions Category = "subscriptions"
	CategorySystem        Category = "system"
)

// Category returns the preference category the type falls under.
func (t Type) Category() Category {
	switch t {
	case TypeLeadAssigned, TypeLeadRouted, TypeLeadAcceptedProvider, TypeLeadAcceptedCustomer:
		return CategoryLeads
	case TypeLeadPaymentFailed, TypeProposalPaymentFailed, TypeWorkOrderCreated:
		return CategoryPayments
	case TypeSubscriptionActivated:
		return CategorySubscriptions
	default:
		return CategorySystem
	}
}

// TemplateData carries the per-message values a renderer interpolates.
type TemplateData map[string]string

// Rendered is the output of a template render.
type Rendered struct {
	Subject string
	HTML    string
}

type renderFunc func(data TemplateData, unsubscribeURL string) (Rendered, error)

func layoutRender(subject, heading string, bodyLines []string, ctaLabel, ctaURL, unsubscribeURL string) (Rendered, error) {
	html, err := email.RenderLayout(email.LayoutData{
		Title:          subject,
		Heading:        heading,
		BodyLines:      bodyLines,
		CTALabel:       ctaLabel,
		CTAURL:         ctaURL,
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, HTML: html}, nil
}

// registry maps every known type to its renderer. Adding a type means
// adding an entry here; nothing is resolved dynamically.
var registry = map[Type]renderFunc{
	TypeLeadAssigned: func(d TemplateData, unsub string) (Rendered, error) {
		subject := fmt.Sprintf("New %s lead in %s", d["category"], d["city"])
		return layoutRender(subject,
			"You have a new lead",
			[]string{
				fmt.Sprintf("Hi %s, a customer near %s is looking for %s services.", d["providerName"], d["city"], d["category"]),
				fmt.Sprintf("Accepting this lead costs %s. Contact details are revealed after acceptance.", d["leadCost"]),
			},
			"View lead", d["leadURL"], unsub)
	},
	TypeLeadRouted: func(d TemplateData, unsub string) (Rendered, error) {
		subject := fmt.Sprintf("A %s lead is now available to you", d["category"])
		return layoutRender(subject,
			"A lead has been routed to you",
			[]string{
				fmt.Sprintf("Hi %s, the previous provider did not take this job, so it is now yours to accept.", d["providerName"]),
				"Leads routed this way go to the next provider if you do not respond.",
			},
			"View lead", d["leadURL"], unsub)
	},
	TypeNoProviderAvailable: func(d TemplateData, unsub string) (Rendered, error) {
		return layoutRender("We are still looking for a provider",
			"No provider available yet",
			[]string{
				fmt.Sprintf("Hi %s, we could not match your %s request with a provider right away.", d["customerName"], d["category"]),
				"Our team has been notified and will keep looking. You do not need to do anything.",
			},
			"", "", unsub)
	},
	TypeLeadAcceptedProvider: func(d TemplateData, unsub string) (Rendered, error) {
		return layoutRender("Lead accepted: customer contact details",
			"The lead is yours",
			[]string{
				fmt.Sprintf("Hi %s, your payment was received and the lead is confirmed.", d["providerName"]),
				fmt.Sprintf("Customer: %s, %s, %s.", d["customerName"], d["customerEmail"], d["customerPhone"]),
				"Reach out promptly; customers choose fast responders.",
			},
			"View lead", d["leadURL"], unsub)
	},
	TypeLeadAcceptedCustomer: func(d TemplateData, unsub string) (Rendered, error) {
		return layoutRender("A provider accepted your request",
			"Good news",
			[]string{
				fmt.Sprintf("Hi %s, %s accepted your request and will contact you shortly.", d["customerName"], d["providerName"]),
			},
			"", "", unsub)
	},
	TypeLeadPaymentFailed: func(d TemplateData, unsub string) (Rendered, error) {
		return layoutRender("Your lead payment did not go through",
			"Payment failed",
			[]string{
				fmt.Sprintf("Hi %s, the payment for your lead acceptance failed. The lead is still open for you.", d["providerName"]),
				"You can retry the acceptance, but the lead may be offered to another provider in the meantime.",
			},
			"Retry", d["leadURL"], unsub)
	},
	TypeProposalPaymentFailed: func(d TemplateData, unsub string) (Rendered, error) {
		return layoutRender("Your payment did not go through",
			"Payment failed",
			[]string{
				fmt.Sprintf("Hi %s, the payment for your proposal failed or was canceled.", d["customerName"]),
				"No money was taken. You can retry the payment from your dashboard.",
			},
			"Retry payment", d["proposalURL"], unsub)
	},
	TypeWorkOrderCreated: func(d TemplateData, unsub string) (Rendered, error) {
		return layoutRender("Work order created",
			"The job is confirmed",
			[]string{
				fmt.Sprintf("The proposal of %s has been paid and a work order was created.", d["price"]),
				"Both parties can track progress from the dashboard.",
			},
			"View work order", d["workOrderURL"], unsub)
	},
	TypeSubscriptionActivated: func(d TemplateData, unsub string) (Rendered, error) {
		subject := fmt.Sprintf("Your %s subscription is active", d["planTier"])
		return layoutRender(subject,
			"Subscription activated",
			[]string{
				fmt.Sprintf("Hi %s, your %s subscription (%s billing) is now active.", d["userName"], d["planTier"], d["billingCycle"]),
				"Tier benefits apply to all new leads immediately.",
			},
			"", "", unsub)
	},
}

// Render produces the subject and body for a notification type.
func Render(t Type, data TemplateData, unsubscribeURL string) (Rendered, error) {
	render, ok := registry[t]
	if !ok {
		return Rendered{}, apperr.Internal(fmt.Sprintf("notification template not found: %s", t))
	}
	return render(data, unsubscribeURL)
}
