// README: Ride request handlers (create, list, read, lifecycle transitions, history).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newber/internal/http/middleware"
	"newber/internal/modules/rating"
	"newber/internal/modules/ride"
	"newber/internal/modules/user"
	"newber/internal/types"
)

type RequestHandler struct {
	rides *ride.Service
}

func NewRequestHandler(svc *ride.Service) *RequestHandler {
	return &RequestHandler{rides: svc}
}

type createRequestReq struct {
	Start locationDTO `json:"start"`
	End   locationDTO `json:"end"`
	// CostCents is the fare the rider agreed to, in cents.
	CostCents int64 `json:"cost_cents"`
}

type completeReq struct {
	Verdict string `json:"verdict"`
}

type eventResponse struct {
	ID        int64       `json:"id"`
	From      ride.Status `json:"from"`
	To        ride.Status `json:"to"`
	ActorType string      `json:"actor_type"`
	ActorID   *types.ID   `json:"actor_id"`
	At        time.Time   `json:"at"`
}

func caller(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}

func requireRole(c *gin.Context, role user.Role) bool {
	if middleware.CallerRole(c) != string(role) {
		writeError(c, http.StatusForbidden, "forbidden: "+string(role)+" role required")
		return false
	}
	return true
}

// pathID reads and validates :id; it writes the 400 itself.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid request id")
		return "", false
	}
	return types.ID(id), true
}

// loadOwned fetches the request and checks that the caller is its rider.
func (h *RequestHandler) loadOwned(c *gin.Context) (types.ID, bool) {
	id, ok := pathID(c)
	if !ok {
		return "", false
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return "", false
	}
	if r.RiderID != caller(c) {
		writeError(c, http.StatusForbidden, "forbidden: only the rider can do this")
		return "", false
	}
	return id, true
}

func (h *RequestHandler) Create(c *gin.Context) {
	if !requireRole(c, user.RoleRider) {
		return
	}
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Start.valid() || !req.End.valid() {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	if req.CostCents <= 0 {
		writeError(c, http.StatusBadRequest, "cost_cents must be positive")
		return
	}
	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		RiderID: caller(c),
		Start:   req.Start.location(),
		End:     req.End.location(),
		Cost:    types.Money{Amount: req.CostCents},
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRequestResponse(r))
}

func (h *RequestHandler) ListPending(c *gin.Context) {
	if !requireRole(c, user.RoleDriver) {
		return
	}
	list, err := h.rides.ListPending(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	out := make([]requestResponse, 0, len(list))
	for _, r := range list {
		out = append(out, newRequestResponse(r))
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": out})
}

func (h *RequestHandler) Current(c *gin.Context) {
	r, err := h.rides.CurrentFor(c.Request.Context(), caller(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestResponse(r))
}

// Get is open to the request's rider and driver, and to any driver while it is still pending.
func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	pendingForDriver := r.Status == ride.StatusPending && middleware.CallerRole(c) == string(user.RoleDriver)
	if !r.Involves(caller(c)) && !pendingForDriver {
		writeError(c, http.StatusForbidden, "forbidden: not your request")
		return
	}
	writeJSON(c, http.StatusOK, newRequestResponse(r))
}

// Events is open to anyone who took part in at least one recorded transition.
func (h *RequestHandler) Events(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	events, err := h.rides.History(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	uid := caller(c)
	allowed := false
	for _, e := range events {
		if e.ActorID != nil && *e.ActorID == uid {
			allowed = true
			break
		}
	}
	if len(events) == 0 {
		writeError(c, http.StatusNotFound, ride.ErrNotFound.Error())
		return
	}
	if !allowed {
		writeError(c, http.StatusForbidden, "forbidden: not your request")
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{ID: e.ID, From: e.From, To: e.To, ActorType: e.ActorType, ActorID: e.ActorID, At: e.At})
	}
	writeJSON(c, http.StatusOK, map[string]any{"events": out})
}

func (h *RequestHandler) Offer(c *gin.Context) {
	if !requireRole(c, user.RoleDriver) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Offer(c.Request.Context(), ride.OfferCommand{RequestID: id, DriverID: caller(c)})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestResponse(r))
}

func (h *RequestHandler) Accept(c *gin.Context) {
	id, ok := h.loadOwned(c)
	if !ok {
		return
	}
	r, err := h.rides.Accept(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestResponse(r))
}

func (h *RequestHandler) Decline(c *gin.Context) {
	id, ok := h.loadOwned(c)
	if !ok {
		return
	}
	r, err := h.rides.Decline(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestResponse(r))
}

func (h *RequestHandler) Complete(c *gin.Context) {
	var req completeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	verdict, ok := rating.ParseVerdict(req.Verdict)
	if !ok {
		writeAppError(c, rating.ErrBadVerdict)
		return
	}
	id, ok := h.loadOwned(c)
	if !ok {
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), id, verdict)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestResponse(r))
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	id, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := h.rides.Cancel(c.Request.Context(), id); err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"id": id, "status": ride.StatusCancelled})
}
