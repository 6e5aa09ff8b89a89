package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateQuote is one snapshot of the foreign currency rates.
type RateQuote struct {
	Date      Date
	Official  decimal.Decimal
	Card      decimal.Decimal
	Blue      decimal.Decimal
	Source    string
	FetchedAt time.Time
}

// CardRate applies a total tax percentage on top of the official rate.
func CardRate(official decimal.Decimal, taxPercent float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(taxPercent).Div(decimal.NewFromInt(100)))
	return official.Mul(factor)
}
