package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betting-service/internal/common"
)

// Handler обрабатывает HTTP-запросы регистрации и входа.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик аутентификации.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// Register — POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login — POST /auth/login. При серии неудачных попыток возвращает 429
// ещё до проверки пароля.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	token, user, err := h.service.Login(
		c.Request.Context(),
		req.Username, req.Password,
		c.ClientIP(), c.Request.UserAgent(),
	)
	if err != nil {
		common.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
