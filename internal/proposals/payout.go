package proposals

import "github.com/shopspring/decimal"

// ComputePayout splits a proposal price into the provider amount and the
// platform fee. The fee is rounded to cents and the provider gets the
// remainder, so the two always sum to the price exactly.
func ComputePayout(price, platformFeeRate decimal.Decimal) (providerAmount, platformFee decimal.Decimal) {
	platformFee = price.Mul(platformFeeRate).Round(2)
	providerAmount = price.Sub(platformFee)
	return providerAmount, platformFee
}
