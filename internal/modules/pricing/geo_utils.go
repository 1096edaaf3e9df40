// README: Pure geographic helpers used by fare computation.
package pricing

import "math"

// earthRadiusMetres matches the mean radius used by the mobile map SDK.
const earthRadiusMetres = 6371009.0

const metresPerMile = 1609.344

// haversineMetres returns the great-circle distance in metres between two
// points specified in decimal degrees.
func haversineMetres(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMetres * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
