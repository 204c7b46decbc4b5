// Package rounds — handlers.go обрабатывает HTTP-запросы раундов:
// каталог игр, открытие раунда, ставки и расчёт.
package rounds

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"betting-service/internal/common"
)

// Handler обрабатывает HTTP-запросы раундов.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик раундов.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListGames — GET /games.
func (h *Handler) ListGames(c *gin.Context) {
	games, err := h.service.ListGames(c.Request.Context())
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// GetOpenRound — GET /games/:id/round. Текущий открытый раунд игры.
func (h *Handler) GetOpenRound(c *gin.Context) {
	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id игры"})
		return
	}

	round, err := h.service.GetOpenRound(c.Request.Context(), gameID)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

// openRoundRequest — тело POST /rounds (только админ).
type openRoundRequest struct {
	GameID int64 `json:"game_id" binding:"required"`
}

// OpenRound — POST /rounds. Открывает новый раунд.
func (h *Handler) OpenRound(c *gin.Context) {
	var req openRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	round, err := h.service.OpenRound(c.Request.Context(), req.GameID)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, round)
}

// placeBetRequest — тело POST /rounds/:id/bets.
type placeBetRequest struct {
	Choice string `json:"choice" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// PlaceBet — POST /rounds/:id/bets.
func (h *Handler) PlaceBet(c *gin.Context) {
	roundID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id раунда"})
		return
	}

	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	userID := c.GetInt64("userID")
	bet, err := h.service.PlaceBet(c.Request.Context(), userID, roundID, req.Choice, req.Amount)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

// completeRoundRequest — тело POST /rounds/:id/complete (только админ).
type completeRoundRequest struct {
	Winner string `json:"winner" binding:"required"`
}

// CompleteRound — POST /rounds/:id/complete.
// Повторный вызов для рассчитанного раунда — no-op с текущим состоянием.
func (h *Handler) CompleteRound(c *gin.Context) {
	roundID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id раунда"})
		return
	}

	var req completeRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	round, report, err := h.service.CompleteRound(c.Request.Context(), roundID, req.Winner)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "settlement": report})
}
