// README: Base handler utilities (JSON helpers, error mapping, DTOs).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newber/internal/apperr"
	"newber/internal/modules/ride"
	"newber/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts uuids and identity-provider uids: letters, digits and '-', at most 64 chars.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeAppError maps error kinds to statuses. Store and unknown failures are attached to the
// context for the logging middleware and never shown to the caller.
func writeAppError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		writeError(c, http.StatusBadRequest, err.Error())
	case apperr.ErrAuth:
		writeError(c, http.StatusUnauthorized, err.Error())
	case apperr.ErrForbidden:
		writeError(c, http.StatusForbidden, err.Error())
	case apperr.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	case apperr.ErrConflict:
		writeError(c, http.StatusConflict, err.Error())
	case apperr.ErrStore:
		_ = c.Error(err)
		writeError(c, http.StatusServiceUnavailable, "storage unavailable, try again")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type pointDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p pointDTO) point() types.Point {
	return types.Point{Lat: p.Lat, Lng: p.Lng}
}

func (p pointDTO) valid() bool {
	return p.point().Valid()
}

type locationDTO struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

func newLocationDTO(l types.Location) locationDTO {
	return locationDTO{Name: l.Name, Lat: l.Point.Lat, Lng: l.Point.Lng}
}

func (l locationDTO) valid() bool {
	return pointDTO{Lat: l.Lat, Lng: l.Lng}.valid()
}

func (l locationDTO) location() types.Location {
	return types.Location{Name: l.Name, Point: types.Point{Lat: l.Lat, Lng: l.Lng}}
}

type requestResponse struct {
	ID        types.ID    `json:"id"`
	RiderID   types.ID    `json:"rider_id"`
	DriverID  *types.ID   `json:"driver_id"`
	Start     locationDTO `json:"start"`
	End       locationDTO `json:"end"`
	Cost      string      `json:"cost"`
	Currency  string      `json:"currency"`
	Status    ride.Status `json:"status"`
	Version   int64       `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func newRequestResponse(r *ride.Request) requestResponse {
	return requestResponse{
		ID:        r.ID,
		RiderID:   r.RiderID,
		DriverID:  r.DriverID,
		Start:     newLocationDTO(r.Start),
		End:       newLocationDTO(r.End),
		Cost:      r.Cost.String(),
		Currency:  r.Cost.Currency,
		Status:    r.Status,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
