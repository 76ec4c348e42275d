package notification

import (
	"strings"
	"testing"
)

func TestTypeCategory(t *testing.T) {
	cases := []struct {
		typ  Type
		want Category
	}{
		{TypeLeadAssigned, CategoryLeads},
		{TypeLeadRouted, CategoryLeads},
		{TypeLeadAcceptedProvider, CategoryLeads},
		{TypeLeadAcceptedCustomer, CategoryLeads},
		{TypeLeadPaymentFailed, CategoryPayments},
		{TypeProposalPaymentFailed, CategoryPayments},
		{TypeWorkOrderCreated, CategoryPayments},
		{TypeSubscriptionActivated, CategorySubscriptions},
		{Type("something_else"), CategorySystem},
	}
	for _, tc := range cases {
		if got := tc.typ.Category(); got != tc.want {
			t.Errorf("%s category = %s, want %s", tc.typ, got, tc.want)
		}
	}
}

func TestPreferenceAllows(t *testing.T) {
	pref := Preference{EmailEnabled: true, LeadsEnabled: false, PaymentsEnabled: true, SubscriptionsEnabled: true}
	if pref.Allows(CategoryLeads) {
		t.Error("leads allowed despite disabled flag")
	}
	if !pref.Allows(CategoryPayments) {
		t.Error("payments blocked despite enabled flag")
	}
	if !pref.Allows(CategorySystem) {
		t.Error("system blocked despite global switch on")
	}

	pref.EmailEnabled = false
	if pref.Allows(CategoryPayments) || pref.Allows(CategorySystem) {
		t.Error("global switch off must block every category")
	}
}

func TestRenderInterpolatesData(t *testing.T) {
	rendered, err := Render(TypeLeadAcceptedProvider, TemplateData{
		"providerName":  "Ada",
		"customerName":  "Grace",
		"customerEmail": "grace@example.com",
		"customerPhone": "+15125550100",
		"leadURL":       "https://app.leadmarket.test/leads/abc",
	}, "https://app.leadmarket.test/api/v1/notifications/unsubscribe?token=tok")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Grace", "grace@example.com", "+15125550100", "unsubscribe?token=tok"} {
		if !strings.Contains(rendered.HTML, want) {
			t.Errorf("rendered body missing %q", want)
		}
	}
}

func TestRenderUnknownType(t *testing.T) {
	if _, err := Render(Type("nope"), nil, ""); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
