// README: Reverse geocoding through the Google Maps Geocoding API.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"newber/internal/types"
)

// reverseGeocoder is the part of *maps.Client the geocoder needs.
type reverseGeocoder interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Geocoder turns coordinates into a display name.
type Geocoder struct {
	client   reverseGeocoder
	language string
}

// NewGeocoder creates a Geocoder with the given API key.
func NewGeocoder(apiKey string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, language: "en"}, nil
}

// ResolveName returns the formatted address of the closest result. It returns "" without an
// error when the API knows nothing about the point.
func (g *Geocoder) ResolveName(ctx context.Context, p types.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Language: g.language,
	})
	if err != nil {
		return "", fmt.Errorf("geocoding api error: %w", err)
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", nil
}
