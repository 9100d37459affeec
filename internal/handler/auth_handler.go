package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moolah-app/moolah-api/internal/service"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/response"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Authenticate a teacher or student
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CheckAuth godoc
// @Summary Report whether the presented token is valid
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/check-auth [get]
func (h *AuthHandler) CheckAuth(c *gin.Context) {
	if claims := claimsFromContext(c); claims != nil {
		response.JSON(c, http.StatusOK, service.CheckAuthResponse{IsAuthenticated: true, User: claims}, nil)
		return
	}

	// Fall back to parsing the header directly so the endpoint also answers
	// when no middleware ran.
	var token string
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		token = parts[1]
	}
	response.JSON(c, http.StatusOK, h.auth.CheckAuth(token), nil)
}
