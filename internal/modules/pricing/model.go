// README: Fare rate definition and quote value object.
package pricing

import "github.com/shopspring/decimal"

type Rate struct {
	CostPerMile decimal.Decimal
	FlatFee     decimal.Decimal
	Currency    string
}

// DefaultRate is the average cost per mile of driving (59.2 cents) plus a one dollar flat fee.
func DefaultRate() Rate {
	return Rate{
		CostPerMile: decimal.RequireFromString("0.592"),
		FlatFee:     decimal.RequireFromString("1.00"),
		Currency:    "CAD",
	}
}

type Direction int

const (
	Up Direction = iota + 1
	Down
)

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return Up, true
	case "down":
		return Down, true
	}
	return 0, false
}

// Quote is the fare a rider is looking at: the computed base and the current adjusted value.
type Quote struct {
	Base    decimal.Decimal
	Current decimal.Decimal
}

// Display renders an amount with two decimals, e.g. "12.34".
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}
