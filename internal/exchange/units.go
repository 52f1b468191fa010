package exchange

import (
	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human-unit amount to the integer string of the
// token's smallest unit, truncating toward zero. Truncation (never rounding
// up) guarantees the agent cannot submit a trade for slightly more than it
// holds.
func ToBaseUnits(amount float64, decimals int) string {
	scaled := decimal.NewFromFloat(amount).Shift(int32(decimals))
	return scaled.Truncate(0).String()
}
