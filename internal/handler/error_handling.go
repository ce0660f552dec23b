package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"idol-server/internal/models"
)

// handleServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	var (
		status int
		resp   models.ErrorResponse
	)

	switch {
	case errors.Is(err, models.ErrTokenExpired):
		status, resp = http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenExpired, Message: err.Error()}
	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrTokenInvalid),
		errors.Is(err, models.ErrTokenMalformed):
		status, resp = http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Unauthorized"}
	case errors.Is(err, models.ErrCardNotOwned):
		status, resp = http.StatusForbidden, models.ErrorResponse{Code: models.ErrCodeCardNotOwned, Message: err.Error()}
	case errors.Is(err, models.ErrForbidden):
		status, resp = http.StatusForbidden, models.ErrorResponse{Code: models.ErrCodeForbidden, Message: "Access denied"}
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrCharacterNotFound),
		errors.Is(err, models.ErrPlayerNotFound):
		status, resp = http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrSessionClosed):
		status, resp = http.StatusConflict, models.ErrorResponse{Code: models.ErrCodeSessionClosed, Message: err.Error()}
	case errors.Is(err, models.ErrDuplicateSubmission):
		status, resp = http.StatusConflict, models.ErrorResponse{Code: models.ErrCodeDuplicate, Message: err.Error()}
	case errors.Is(err, models.ErrEmptyInput):
		status, resp = http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeEmptyInput, Message: err.Error()}
	case errors.Is(err, models.ErrInputTooLong):
		status, resp = http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeInputTooLong, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidCompletionTime):
		status, resp = http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeInvalidTime, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidSquad):
		status, resp = http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeInvalidSquad, Message: err.Error()}
	case errors.Is(err, models.ErrBadRequest):
		status, resp = http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, models.ErrTooSoon):
		status, resp = http.StatusTooManyRequests, models.ErrorResponse{Code: models.ErrCodeTooSoon, Message: err.Error()}
	case errors.Is(err, models.ErrInsufficientTickets):
		status, resp = http.StatusPaymentRequired, models.ErrorResponse{Code: models.ErrCodeInsufficientTickets, Message: err.Error()}
	default:
		h.logger.Error("Unhandled service error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		status, resp = http.StatusInternalServerError, models.ErrorResponse{Code: models.ErrCodeInternal, Message: "Internal server error"}
	}

	c.AbortWithStatusJSON(status, resp)
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: message})
}
