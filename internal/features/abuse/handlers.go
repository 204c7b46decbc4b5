package abuse

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"betting-service/internal/common"
)

// Handler обрабатывает HTTP-запросы журнала безопасности (только админ).
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик журнала безопасности.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListAlerts — GET /alerts?user_id=&limit=.
func (h *Handler) ListAlerts(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	alerts, err := h.service.Alerts(c.Request.Context(), userID, limit)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// ResolveAlert — PATCH /alerts/:id/resolve.
func (h *Handler) ResolveAlert(c *gin.Context) {
	alertID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id алерта"})
		return
	}
	if err := h.service.Resolve(c.Request.Context(), alertID); err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
