// README: Common money value object used across modules.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a stored amount carries no currency code.
const DefaultCurrency = "CAD"

// Money is an amount in minor units (cents). Negative amounts are allowed for balances.
type Money struct {
	Amount   int64
	Currency string
}

func Cents(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

// MoneyFromDecimal rounds d half-up to two decimals.
func MoneyFromDecimal(d decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: d.Round(2).Shift(2).IntPart(), Currency: currency}
}

// ParseMoney accepts a decimal string such as "12.34".
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d, currency), nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -2)
}

func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// String renders the amount with two decimals, e.g. "87.66".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
