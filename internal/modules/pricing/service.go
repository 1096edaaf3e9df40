// README: Pricing service computes base fares and applies rider surcharge steps.
package pricing

import (
	"github.com/shopspring/decimal"

	"newber/internal/types"
)

var stepFraction = decimal.RequireFromString("0.05")

type Service struct {
	rate Rate
}

func NewService(rate Rate) *Service {
	return &Service{rate: rate}
}

func (s *Service) Currency() string {
	return s.rate.Currency
}

// DistanceMiles is the great-circle distance between start and end.
func (s *Service) DistanceMiles(start, end types.Point) decimal.Decimal {
	m := haversineMetres(start.Lat, start.Lng, end.Lat, end.Lng)
	return decimal.NewFromFloat(m).Div(decimal.NewFromFloat(metresPerMile))
}

// BaseFare is distance in miles times the per-mile rate plus the flat fee. It is not rounded.
func (s *Service) BaseFare(start, end types.Point) decimal.Decimal {
	return s.DistanceMiles(start, end).Mul(s.rate.CostPerMile).Add(s.rate.FlatFee)
}

// BaseMoney is BaseFare rounded to cents; a request cost may never be below it.
func (s *Service) BaseMoney(start, end types.Point) types.Money {
	return types.MoneyFromDecimal(s.BaseFare(start, end), s.rate.Currency)
}

func (s *Service) NewQuote(start, end types.Point) Quote {
	base := s.BaseFare(start, end)
	return Quote{Base: base, Current: base}
}

// Adjust moves current by 5% of base. Up has no ceiling; Down never goes below base.
func (s *Service) Adjust(base, current decimal.Decimal, dir Direction) decimal.Decimal {
	step := base.Mul(stepFraction)
	switch dir {
	case Up:
		current = current.Add(step)
	case Down:
		current = current.Sub(step)
	}
	if current.LessThan(base) {
		return base
	}
	return current
}

func (s *Service) AdjustQuote(q Quote, dir Direction) Quote {
	return Quote{Base: q.Base, Current: s.Adjust(q.Base, q.Current, dir)}
}

func (s *Service) ToMoney(d decimal.Decimal) types.Money {
	return types.MoneyFromDecimal(d, s.rate.Currency)
}
