// README: Shared identifiers and geographic value types.
package types

import (
	"fmt"
	"math"
)

type ID string

type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether p is a finite coordinate with lat in [-90, 90] and lng in [-180, 180].
func (p Point) Valid() bool {
	for _, v := range []float64{p.Lat, p.Lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}

// Location is a named point. It has no lifecycle of its own and is embedded in ride requests.
type Location struct {
	Name  string
	Point Point
}
