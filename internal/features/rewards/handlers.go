// Package rewards — handlers.go обрабатывает HTTP-запросы подписок:
// каталог, покупка, свои подписки, заявка на вывод, обход начислений.
package rewards

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"betting-service/internal/common"
	"betting-service/internal/features/ledger"
)

// Handler обрабатывает HTTP-запросы подписок.
type Handler struct {
	service *Service
	wallets *ledger.Service // Для оформления заявки на вывод
}

// NewHandler создаёт новый обработчик подписок.
func NewHandler(service *Service, wallets *ledger.Service) *Handler {
	return &Handler{service: service, wallets: wallets}
}

// ListPlans — GET /subscriptions.
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.service.Plans(c.Request.Context())
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": plans})
}

// Purchase — POST /subscriptions/:id/purchase.
func (h *Handler) Purchase(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id плана"})
		return
	}

	userID := c.GetInt64("userID")
	sub, err := h.service.Purchase(c.Request.Context(), userID, planID)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// MySubscriptions — GET /subscriptions/mine.
// Побочный эффект: лениво начисляет созревшие бонусы.
func (h *Handler) MySubscriptions(c *gin.Context) {
	userID := c.GetInt64("userID")
	subs, err := h.service.UserSubscriptions(c.Request.Context(), userID)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// withdrawalRequest — тело POST /subscriptions/withdrawals.
type withdrawalRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description"`
}

// RequestWithdrawal — POST /subscriptions/withdrawals.
// Проверяет право на вывод по подписке и создаёт pending-заявку
// на вывод средств с кошелька.
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	userID := c.GetInt64("userID")

	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	if err := h.service.AuthorizeWithdrawal(c.Request.Context(), userID, req.Amount); err != nil {
		common.AbortWithError(c, err)
		return
	}

	txn, err := h.wallets.RequestTransaction(c.Request.Context(), userID, req.Amount, ledger.TxTypeWithdrawal, req.Description)
	if err != nil {
		// Заявка не создана (например, не хватило доступного баланса) —
		// возвращаем лимит, зарезервированный авторизацией
		if relErr := h.service.ReleaseWithdrawal(c.Request.Context(), userID, req.Amount); relErr != nil {
			log.WithError(relErr).WithField("user_id", userID).Error("Не удалось вернуть лимит вывода")
		}
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// updatePlanRequest — тело PUT /subscriptions/:id (только админ).
type updatePlanRequest struct {
	Name               string `json:"name" binding:"required"`
	Price              int64  `json:"price" binding:"required,gt=0"`
	DailyReward        int64  `json:"daily_reward" binding:"required,gt=0"`
	TotalReward        int64  `json:"total_reward" binding:"required,gt=0"`
	DurationDays       int    `json:"duration_days" binding:"required,gt=0"`
	Level              int    `json:"level" binding:"required,gt=0"`
	WithdrawalWaitDays int    `json:"withdrawal_wait_days" binding:"gte=0"`
	IsActive           bool   `json:"is_active"`
}

// UpdatePlan — PUT /subscriptions/:id. Обновляет план подписки.
func (h *Handler) UpdatePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id плана"})
		return
	}

	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	plan := &Subscription{
		ID:                 planID,
		Name:               req.Name,
		Price:              req.Price,
		DailyReward:        req.DailyReward,
		TotalReward:        req.TotalReward,
		DurationDays:       req.DurationDays,
		Level:              req.Level,
		WithdrawalWaitDays: req.WithdrawalWaitDays,
		IsActive:           req.IsActive,
	}
	if err := h.service.UpdatePlan(c.Request.Context(), plan); err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// RunDailyRewards — GET /cron/daily-rewards (только админ).
// Точка входа планировщика; идемпотентна в пределах окна начисления.
func (h *Handler) RunDailyRewards(c *gin.Context) {
	report := h.service.AccrueAllDue(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
