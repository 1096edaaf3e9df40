// README: User handlers (sign-up, sessions, profile, contact info).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newber/internal/http/middleware"
	"newber/internal/modules/user"
	"newber/internal/types"
)

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(svc *user.Service) *UserHandler {
	return &UserHandler{users: svc}
}

type signUpReq struct {
	Role            string `json:"role"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type signInReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateContactReq struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type userResponse struct {
	ID               types.ID  `json:"id"`
	Username         string    `json:"username"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	Role             user.Role `json:"role"`
	Balance          string    `json:"balance"`
	Currency         string    `json:"currency"`
	CurrentRequestID types.ID  `json:"current_request_id,omitempty"`
}

func newUserResponse(u user.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Username:         u.Username,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		Email:            u.Email,
		Role:             u.Role,
		Balance:          u.Balance.String(),
		Currency:         u.Balance.Currency,
		CurrentRequestID: u.CurrentRequestID,
	}
}

func (h *UserHandler) SignUp(c *gin.Context) {
	var req signUpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.users.SignUp(c.Request.Context(), user.SignUpCommand{
		Role:            req.Role,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Username:        req.Username,
		Phone:           req.Phone,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newUserResponse(u))
}

func (h *UserHandler) SignIn(c *gin.Context) {
	var req signInReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := h.users.SignIn(c.Request.Context(), user.SignInCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"uid": sess.UID, "token": sess.Token})
}

func (h *UserHandler) SignOut(c *gin.Context) {
	if err := h.users.SignOut(c.Request.Context(), types.ID(middleware.CallerUID(c))); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newUserResponse(u))
}

func (h *UserHandler) UpdateContact(c *gin.Context) {
	var req updateContactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.users.UpdateContact(c.Request.Context(), user.UpdateContactCommand{
		UserID:   types.ID(middleware.CallerUID(c)),
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newUserResponse(u))
}
