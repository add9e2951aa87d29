package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/service"
)

const principalKey = "principal"

// AuthMiddleware resolves the bearer token, if any, into a principal.
// Requests without an Authorization header continue anonymously.
func AuthMiddleware(authService service.AuthService, errs *ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authService.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			errs.Write(c, err)
			return
		}

		if principal != nil {
			c.Set(principalKey, principal)
		}

		c.Next()
	}
}

// RequireAuth rejects anonymous requests and deactivated accounts
func RequireAuth(errs *ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			errs.Write(c, domain.ErrUnauthenticated)
			return
		}
		if !principal.IsActive {
			errs.Write(c, fmt.Errorf("%w: account is deactivated", domain.ErrForbidden))
			return
		}

		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal, or nil for anonymous requests
func PrincipalFrom(c *gin.Context) *domain.Principal {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*domain.Principal)
	return principal
}
