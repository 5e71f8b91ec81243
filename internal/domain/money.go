package domain

import (
	"github.com/shopspring/decimal"
)

var basisPointsPerUnit = decimal.NewFromInt(10_000)

// RateFromBasisPoints converts a discount rate in basis points to a fraction
// (525 -> 0.0525).
func RateFromBasisPoints(bps uint64) decimal.Decimal {
	return decimal.NewFromUint64(bps).Div(basisPointsPerUnit)
}

// FormatBasisPoints renders a rate as a percentage with two decimals.
func FormatBasisPoints(bps uint64) string {
	return RateFromBasisPoints(bps).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// FundingProgress is funded/amount as a fraction in [0, 1]. A zero face
// amount reports zero progress.
func FundingProgress(funded, amount uint64) decimal.Decimal {
	if amount == 0 {
		return decimal.Zero
	}
	p := decimal.NewFromUint64(funded).Div(decimal.NewFromUint64(amount))
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}

// FormatAmount renders integral base units with the given number of
// decimal places (FormatAmount(150, 2) == "1.50").
func FormatAmount(units uint64, decimals int32) string {
	return decimal.NewFromUint64(units).Shift(-decimals).StringFixed(decimals)
}
