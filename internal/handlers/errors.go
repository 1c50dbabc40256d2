package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"minimarket/internal/fixedpoint"
	"minimarket/internal/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrMarketNotFound),
		errors.Is(err, services.ErrFeedNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidParams),
		errors.Is(err, services.ErrBelowMinimum):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrLoginReplayed):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrMarketExists),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrNotTradable),
		errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrNothingToClaim):
		return http.StatusConflict
	case errors.Is(err, fixedpoint.ErrArithmetic):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// pagination reads limit and offset query params
func pagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

// callerWallet returns the authenticated wallet or writes a 401
func callerWallet(c *gin.Context) (string, bool) {
	wallet, ok := walletFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return wallet, ok
}
