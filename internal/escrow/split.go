package escrow

import (
	"github.com/shopspring/decimal"
)

// SplitCommission divides total into the platform commission and the escrowed
// remainder. Commission is rounded half away from zero to scale decimal places
// and escrow takes the rest, so the two always sum to total.
func SplitCommission(total, percentage decimal.Decimal, scale int32) (commission, escrow decimal.Decimal) {
	commission = total.Mul(percentage).Round(scale)
	escrow = total.Sub(commission)
	return commission, escrow
}
