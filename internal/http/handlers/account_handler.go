// Account HTTP handlers.
//
// This file exposes the registration endpoint:
//   - POST /register
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-debate-backend/internal/services"
)

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	// Username is the public handle (min 3 chars).
	Username string `json:"username" binding:"required,min=3" example:"socrates"`
	// Email is the account email address.
	Email string `json:"email" binding:"required,email" example:"socrates@example.com"`
	// Password is the account password (min 6 chars).
	Password string `json:"password" binding:"required,min=6"`
}

// Register godoc
// @ID          register
// @Summary     Register a new account
// @Description Creates a user account. The response never includes the password hash.
// @Tags        Accounts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
//
// @Success     201  {object} domain.User
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Username or email taken"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username, email and password required")
		return
	}

	u, err := h.acctSvc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch err {
		case services.ErrUsernameTooShort, services.ErrPasswordTooShort:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case services.ErrUsernameTaken:
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, u)
}
