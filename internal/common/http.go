// Package common — http.go переводит доменные ошибки в HTTP-ответы.
// Единая точка маппинга: обработчики не расставляют статусы вручную.
package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusOf сопоставляет доменную ошибку HTTP-статусу.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrWalletNotFound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrRoundNotFound),
		errors.Is(err, ErrGameNotFound),
		errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrRoundNotOpen),
		errors.Is(err, ErrBetBelowMinimum),
		errors.Is(err, ErrMandatoryUpgrade),
		errors.Is(err, ErrWithdrawalNotEligible),
		errors.Is(err, ErrWithdrawalCapExceeded),
		errors.Is(err, ErrNoActiveSubscription),
		errors.Is(err, ErrUserExists),
		errors.Is(err, ErrWeakCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTransactionNotPending):
		return http.StatusConflict
	case errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError завершает запрос ошибкой с корректным статусом.
// Внутренние ошибки логируются с correlation id и не раскрываются клиенту.
func AbortWithError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("request_id", c.GetString("requestID")).
			Error("Внутренняя ошибка обработки запроса")
		c.AbortWithStatusJSON(status, gin.H{"error": "внутренняя ошибка сервиса"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
