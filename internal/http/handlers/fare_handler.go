// README: Fare handlers (estimate a base fare, step a quote up or down).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"newber/internal/modules/pricing"
)

type FareHandler struct {
	pricing *pricing.Service
}

func NewFareHandler(svc *pricing.Service) *FareHandler {
	return &FareHandler{pricing: svc}
}

type estimateReq struct {
	Start pointDTO `json:"start"`
	End   pointDTO `json:"end"`
}

type adjustReq struct {
	Base      string `json:"base"`
	Current   string `json:"current"`
	Direction string `json:"direction"`
}

type quoteResponse struct {
	Base     string `json:"base"`
	Current  string `json:"current"`
	Currency string `json:"currency"`
	// Cost is what a request created from this quote will be charged, in cents.
	Cost int64 `json:"cost_cents"`
}

func (h *FareHandler) quote(q pricing.Quote) quoteResponse {
	return quoteResponse{
		Base:     pricing.Display(q.Base),
		Current:  pricing.Display(q.Current),
		Currency: h.pricing.Currency(),
		Cost:     h.pricing.ToMoney(q.Current).Amount,
	}
}

func (h *FareHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Start.valid() || !req.End.valid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}
	q := h.pricing.NewQuote(req.Start.point(), req.End.point())
	resp := h.quote(q)
	writeJSON(c, http.StatusOK, map[string]any{
		"quote":          resp,
		"distance_miles": h.pricing.DistanceMiles(req.Start.point(), req.End.point()).StringFixed(2),
	})
}

// Adjust takes amounts as decimal strings so clients never round-trip floats.
func (h *FareHandler) Adjust(c *gin.Context) {
	var req adjustReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	base, err := decimal.NewFromString(req.Base)
	if err != nil || base.IsNegative() {
		writeError(c, http.StatusBadRequest, "invalid base")
		return
	}
	current, err := decimal.NewFromString(req.Current)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid current")
		return
	}
	dir, ok := pricing.ParseDirection(req.Direction)
	if !ok {
		writeError(c, http.StatusBadRequest, "direction must be up or down")
		return
	}
	q := h.pricing.AdjustQuote(pricing.Quote{Base: base, Current: current}, dir)
	writeJSON(c, http.StatusOK, map[string]any{"quote": h.quote(q)})
}
