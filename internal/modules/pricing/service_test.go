// README: Tests for distance, base fare and surcharge adjustment.
package pricing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"newber/internal/types"
)

func TestHaversineMetres_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantM     float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 53.5461, lng1: -113.4939,
			lat2: 53.5461, lng2: -113.4939,
			wantM:     0,
			tolerance: 0.001,
		},
		{
			name: "Edmonton to Calgary (~280km)",
			lat1: 53.5461, lng1: -113.4939,
			lat2: 51.0447, lng2: -114.0719,
			wantM:     280000,
			tolerance: 5000,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantM:     3944000,
			tolerance: 50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineMetres(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("haversineMetres() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestHaversineMetres_Symmetry(t *testing.T) {
	d1 := haversineMetres(53.0, -113.0, 54.0, -114.0)
	d2 := haversineMetres(54.0, -114.0, 53.0, -113.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestBaseFare(t *testing.T) {
	s := NewService(DefaultRate())
	p := types.Point{Lat: 53.5461, Lng: -113.4939}

	if got := s.BaseFare(p, p); !got.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("zero-distance fare = %s, want flat fee 1.00", got)
	}

	// One degree of longitude at the equator is ~69.09 miles -> ~40.90 + 1.00.
	got := s.BaseFare(types.Point{Lat: 0, Lng: 0}, types.Point{Lat: 0, Lng: 1})
	f, _ := got.Float64()
	if math.Abs(f-41.90) > 0.01 {
		t.Errorf("BaseFare() = %s, want ~41.90", got)
	}
}

func TestAdjust_Steps(t *testing.T) {
	s := NewService(DefaultRate())
	base := decimal.RequireFromString("10.00")

	up := s.Adjust(base, base, Up)
	if !up.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("up = %s, want 10.50", up)
	}
	down := s.Adjust(base, up, Down)
	if !down.Equal(base) {
		t.Errorf("down = %s, want 10.00", down)
	}
	floor := s.Adjust(base, base, Down)
	if !floor.Equal(base) {
		t.Errorf("down at base = %s, want base", floor)
	}
}

func TestAdjust_NeverBelowBase(t *testing.T) {
	s := NewService(DefaultRate())
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		start := types.Point{Lat: 53 + rng.Float64(), Lng: -114 + rng.Float64()}
		end := types.Point{Lat: 53 + rng.Float64(), Lng: -114 + rng.Float64()}
		q := s.NewQuote(start, end)
		for step := 0; step < 50; step++ {
			dir := Up
			if rng.Intn(2) == 0 {
				dir = Down
			}
			q = s.AdjustQuote(q, dir)
			if q.Current.LessThan(s.BaseFare(start, end)) {
				t.Fatalf("adjusted fare %s dropped below base %s", q.Current, q.Base)
			}
			if s.ToMoney(q.Current).Amount < s.BaseMoney(start, end).Amount {
				t.Fatalf("rounded fare %v below rounded base %v", s.ToMoney(q.Current), s.BaseMoney(start, end))
			}
		}
	}
}

func TestAdjust_NoDrift(t *testing.T) {
	s := NewService(DefaultRate())
	q := s.NewQuote(types.Point{Lat: 53.5461, Lng: -113.4939}, types.Point{Lat: 53.6316, Lng: -113.3239})
	for i := 0; i < 1000; i++ {
		q = s.AdjustQuote(q, Up)
	}
	for i := 0; i < 1000; i++ {
		q = s.AdjustQuote(q, Down)
	}
	if !q.Current.Equal(q.Base) {
		t.Fatalf("1000 ups and downs drifted: %s vs %s", q.Current, q.Base)
	}
}

func TestToMoney(t *testing.T) {
	s := NewService(DefaultRate())
	m := s.ToMoney(decimal.RequireFromString("12.345"))
	if m.Amount != 1235 || m.Currency != "CAD" {
		t.Errorf("ToMoney = %+v, want 1235 CAD", m)
	}
	if Display(decimal.RequireFromString("7.1")) != "7.10" {
		t.Errorf("Display should render two decimals")
	}
}

func TestParseDirection(t *testing.T) {
	if d, ok := ParseDirection("up"); !ok || d != Up {
		t.Errorf("up not parsed")
	}
	if d, ok := ParseDirection("down"); !ok || d != Down {
		t.Errorf("down not parsed")
	}
	if _, ok := ParseDirection("sideways"); ok {
		t.Errorf("sideways should be rejected")
	}
}
