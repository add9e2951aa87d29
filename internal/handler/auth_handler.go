package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/dto"
	"github.com/prperemyshlev/booking-service/internal/service"
)

// AuthHandler handles identity requests
type AuthHandler struct {
	authService service.AuthService
	errs        *ErrorWriter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, errs *ErrorWriter) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		errs:        errs,
	}
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Description Get the local account linked to the bearer token's subject
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	principal := PrincipalFrom(c)
	if principal == nil {
		h.errs.Write(c, domain.ErrUnauthenticated)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}
