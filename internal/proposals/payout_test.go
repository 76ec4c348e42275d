package proposals

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputePayout(t *testing.T) {
	rate := decimal.RequireFromString("0.15")

	cases := []struct {
		price        string
		wantProvider string
		wantFee      string
	}{
		{"100.00", "85.00", "15.00"},
		{"4500.00", "3825.00", "675.00"},
		{"0.01", "0.01", "0.00"},
		{"33.33", "28.33", "5.00"},
		{"99.99", "84.99", "15.00"},
	}

	for _, tc := range cases {
		t.Run(tc.price, func(t *testing.T) {
			price := decimal.RequireFromString(tc.price)
			provider, fee := ComputePayout(price, rate)

			if provider.StringFixed(2) != tc.wantProvider {
				t.Errorf("provider = %s, want %s", provider, tc.wantProvider)
			}
			if fee.StringFixed(2) != tc.wantFee {
				t.Errorf("fee = %s, want %s", fee, tc.wantFee)
			}
		})
	}
}

// The split must always be exact: provider + fee == price, never off by a
// cent in either direction.
func TestComputePayoutSumsExactly(t *testing.T) {
	rate := decimal.RequireFromString("0.15")
	prices := []string{"0.01", "0.02", "0.99", "1.00", "33.33", "66.67", "99.99", "100.01", "12345.67"}

	for _, raw := range prices {
		price := decimal.RequireFromString(raw)
		provider, fee := ComputePayout(price, rate)
		if !provider.Add(fee).Equal(price) {
			t.Errorf("price %s: provider %s + fee %s != price", raw, provider, fee)
		}
		if provider.IsNegative() || fee.IsNegative() {
			t.Errorf("price %s: negative component in split", raw)
		}
	}
}
