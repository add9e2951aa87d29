package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/dto"
	"go.uber.org/zap"
)

// ErrorWriter renders errors as JSON with a status derived from the domain error
type ErrorWriter struct {
	logger *zap.Logger
	// hideInternal replaces unexpected error text with a generic message
	hideInternal bool
}

// NewErrorWriter creates an error writer
func NewErrorWriter(logger *zap.Logger, hideInternal bool) *ErrorWriter {
	return &ErrorWriter{logger: logger, hideInternal: hideInternal}
}

// Write maps err to a status code and aborts the request
func (w *ErrorWriter) Write(c *gin.Context, err error) {
	status, body := w.render(err)
	if status >= http.StatusInternalServerError {
		w.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func (w *ErrorWriter) render(err error) (int, dto.ErrorResponse) {
	if kind, ok := domain.AuthFailureOf(err); ok {
		return http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Invalid or expired token",
			Code:    string(kind),
		}
	}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized", Message: "Authentication required"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: "Not found", Message: err.Error()}
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, dto.ErrorResponse{Error: "Conflict", Message: err.Error()}
	}

	message := err.Error()
	if w.hideInternal {
		message = "An unexpected error occurred"
	}
	return http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error", Message: message}
}
