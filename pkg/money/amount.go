package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for text that is not an amount
var ErrInvalidAmount = errors.New("invalid amount")

// Scale is the number of decimal places amounts are rounded to before comparison
const Scale = 2

// Parse converts a plain amount string to a decimal.
// A leading currency token such as "₹", "Rs." or "JPY" and thousands
// separators are stripped, so "-Rs. 1,234.50" parses as -1234.50.
// Anything else around the digits is an error. An empty string is zero.
func Parse(amountStr string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amountStr)
	if s == "" {
		return decimal.Zero, nil
	}

	cleaned, ok := clean(s)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amountStr)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amountStr, err)
	}
	return d, nil
}

// ParseConverted parses an amount that may be written as a multi-currency
// expression, e.g. "-JPY363953.00 @ ₹ 0.6931/JPY = -₹ 252255.82".
// Only the converted amount after the final "=" is used.
func ParseConverted(amountStr string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amountStr)
	if strings.Contains(s, "@") {
		if idx := strings.LastIndex(s, "="); idx >= 0 {
			s = s[idx+1:]
		}
	}
	return Parse(s)
}

// ParseRate parses a Tally rate such as "125.00/Nos", keeping the part before "/"
func ParseRate(rateStr string) (decimal.Decimal, error) {
	s := strings.TrimSpace(rateStr)
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}
	return Parse(s)
}

// Round rounds to Scale decimal places
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Equal reports whether a and b are equal once rounded to Scale places
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}

// Format renders d with exactly Scale decimal places
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// amountPattern is an optional sign, an optional currency token and the number.
// The sign may sit on either side of the token.
var amountPattern = regexp.MustCompile(`^([+-]?)\s*(?:[^\d.,+\-\s][^\d.,+\-]*?\.?)?\s*([+-]?)\s*([\d,]*\.?\d*)$`)

// clean reduces s to a signed number without currency or separators
func clean(s string) (string, bool) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	sign, number := m[1], strings.ReplaceAll(m[3], ",", "")
	if m[2] != "" {
		if sign != "" {
			return "", false
		}
		sign = m[2]
	}
	if strings.IndexFunc(number, unicode.IsDigit) < 0 {
		return "", false
	}
	return sign + number, true
}
