package money

import "github.com/shopspring/decimal"

// Side is the column a signed amount posts to
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Split returns the absolute amount and the side for a signed Tally amount.
// Tally writes debits as negative numbers.
func Split(amount decimal.Decimal) (decimal.Decimal, Side) {
	if amount.IsNegative() {
		return amount.Abs(), Debit
	}
	return amount, Credit
}

// Sum adds all amounts
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
