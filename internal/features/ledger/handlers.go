// Package ledger — handlers.go обрабатывает HTTP-запросы кошелька:
// баланс, история транзакций, заявки на депозит/вывод и их одобрение.
package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"betting-service/internal/common"
)

// Handler обрабатывает HTTP-запросы кошелька.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик кошелька.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetWallet — GET /wallet. Возвращает баланс текущего пользователя.
func (h *Handler) GetWallet(c *gin.Context) {
	userID := c.GetInt64("userID")

	wallet, err := h.service.GetWallet(c.Request.Context(), userID)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    wallet.UserID,
		"balance":    wallet.Balance,
		"held":       wallet.Held,
		"available":  wallet.Available(),
		"updated_at": wallet.UpdatedAt,
	})
}

// ListTransactions — GET /wallet/transactions?limit=N.
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.GetInt64("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	transactions, err := h.service.Transactions(c.Request.Context(), userID, limit)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// createTransactionRequest — тело POST /wallet/transactions.
type createTransactionRequest struct {
	Type        string `json:"type" binding:"required,oneof=deposit withdrawal"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description"`
}

// CreateTransaction — POST /wallet/transactions.
// Создаёт pending-заявку на депозит или вывод.
func (h *Handler) CreateTransaction(c *gin.Context) {
	userID := c.GetInt64("userID")

	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	txn, err := h.service.RequestTransaction(c.Request.Context(), userID, req.Amount, req.Type, req.Description)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

// settleRequest — тело PATCH /transactions/:id (только админ).
type settleRequest struct {
	Status string `json:"status" binding:"required,oneof=completed rejected"`
}

// SettleTransaction — PATCH /transactions/:id.
// Одобряет или отклоняет pending-заявку.
func (h *Handler) SettleTransaction(c *gin.Context) {
	txID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id транзакции"})
		return
	}

	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	txn, err := h.service.SettleTransaction(c.Request.Context(), txID, req.Status)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}
