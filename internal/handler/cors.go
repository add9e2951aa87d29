package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Headers browsers may read from cross-origin responses.
var exposedHeaders = strings.Join([]string{
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"Retry-After",
	requestIDHeader,
}, ", ")

// CORSMiddleware answers preflight requests and tags responses for allowed origins
func CORSMiddleware(allowedOrigins, allowedMethods, allowedHeaders []string) gin.HandlerFunc {
	methods := strings.Join(allowedMethods, ", ")
	headers := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		c.Writer.Header().Add("Vary", "Origin")

		if origin != "" && originAllowed(allowedOrigins, origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Expose-Headers", exposedHeaders)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
