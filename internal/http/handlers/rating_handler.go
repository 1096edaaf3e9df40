// README: Driver rating handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newber/internal/modules/rating"
	"newber/internal/types"
)

type RatingHandler struct {
	ratings *rating.Service
}

func NewRatingHandler(svc *rating.Service) *RatingHandler {
	return &RatingHandler{ratings: svc}
}

func (h *RatingHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid driver id")
		return
	}
	r, err := h.ratings.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"driver_id": r.DriverID,
		"upvotes":   r.Upvotes,
		"downvotes": r.Downvotes,
		"score":     r.Score(),
	})
}
