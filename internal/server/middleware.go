// Package server — HTTP-слой сервиса: middleware и маршрутизация.
// middleware.go содержит сквозные обработчики: correlation id,
// логирование, восстановление после паники, JWT, роли, rate-limit.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"betting-service/internal/features/abuse"
	"betting-service/internal/features/auth"
)

// RequestID присваивает каждому запросу correlation id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger пишет строку лога на каждый запрос.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"request_id": c.GetString("requestID"),
		}).Info("HTTP-запрос обработан")
	}
}

// Recovery перехватывает панику обработчика и отвечает 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"panic":      r,
					"request_id": c.GetString("requestID"),
				}).Error("Паника при обработке запроса")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервиса"})
			}
		}()
		c.Next()
	}
}

// Auth проверяет JWT из заголовка Authorization и кладёт данные
// пользователя в контекст запроса.
func Auth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		claims, err := authService.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "недействительный токен"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// AdminOnly пропускает только администраторов. Ставится после Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "доступ только для администратора"})
			return
		}
		c.Next()
	}
}

// RateLimit ограничивает частоту запросов в заданной зоне.
// Субъект — пользователь из токена, для анонимных запросов — IP.
func RateLimit(detector *abuse.Service, scope string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64("userID")
		subject := c.ClientIP()
		if userID != 0 {
			subject = fmt.Sprintf("u%d", userID)
		}

		decision := detector.CheckRateLimit(c.Request.Context(), userID, subject, scope, max, window)
		if !decision.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "слишком много запросов",
				"retry_after": decision.RetryAfter.String(),
			})
			return
		}
		c.Next()
	}
}
