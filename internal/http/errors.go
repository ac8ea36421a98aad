package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/apperr"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrNotEligible), errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrContentRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrCollaborator):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError logs err and answers with {"error": ...}. Internal details
// are only shown for client errors.
func (e *Env) writeError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		e.Log.Warn(op+" failed", zap.Error(err))
		msg = "An upstream service failed. Please try again."
	case status >= http.StatusInternalServerError:
		e.Log.Error(op+" failed", zap.Error(err))
		msg = "Internal server error"
	default:
		e.Log.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
