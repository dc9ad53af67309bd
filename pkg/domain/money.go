package domain

import (
	"github.com/shopspring/decimal"

	dErrors "cashdesk/pkg/domain-errors"
)

// MoneyScale is the number of fraction digits carried by every monetary amount.
const MoneyScale = 2

// maxMoneyDigits mirrors NUMERIC(12,2) on the transactions.amount column.
const maxMoneyDigits = 12

// ParseAmount validates a deposit amount: strictly positive, at most two
// fraction digits and at most twelve significant digits.
//
// Magnitude is checked from the coefficient and exponent before any
// rescaling, so inputs like 1e50000000 are rejected without expanding them.
func ParseAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	digits := d.NumDigits()
	exp := int(d.Exponent())
	if digits+exp > maxMoneyDigits-MoneyScale {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount exceeds 12 digits")
	}
	// A fraction longer than the coefficient cannot be all trailing zeros.
	if -exp-MoneyScale > digits {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount must have at most 2 decimal places")
	}
	if !d.Equal(d.Round(MoneyScale)) {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount must have at most 2 decimal places")
	}
	return d.Round(MoneyScale), nil
}

// FormatMoney renders an amount with exactly two fraction digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// FormatCurrency renders an amount for human-facing messages, e.g. $50,000.00.
func FormatCurrency(d decimal.Decimal) string {
	s := d.StringFixed(MoneyScale)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i := range len(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	res := "$" + string(out) + frac
	if neg {
		return "-" + res
	}
	return res
}
