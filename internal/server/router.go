package server

import (
	"github.com/gin-gonic/gin"

	"betting-service/internal/config"
	"betting-service/internal/features/abuse"
	"betting-service/internal/features/auth"
	"betting-service/internal/features/ledger"
	"betting-service/internal/features/rewards"
	"betting-service/internal/features/rounds"
	"betting-service/internal/notify"
)

// Handlers — все HTTP-обработчики сервиса.
type Handlers struct {
	Auth    *auth.Handler
	Ledger  *ledger.Handler
	Rounds  *rounds.Handler
	Rewards *rewards.Handler
	Abuse   *abuse.Handler
}

// NewRouter собирает маршруты сервиса.
// Зоны rate-limit'а: auth (строгая, по IP), wallet (денежные операции),
// api (всё остальное).
func NewRouter(cfg *config.Config, handlers *Handlers, authService *auth.Service, detector *abuse.Service, registry notify.Registry) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestID(), RequestLogger(), Recovery())

	// --- Публичные маршруты ---
	public := r.Group("/")
	public.Use(RateLimit(detector, "auth", cfg.RateLimitAuthMax, cfg.RateLimitAuthWin))
	{
		public.POST("/auth/register", handlers.Auth.Register)
		public.POST("/auth/login", handlers.Auth.Login)
	}

	// --- Маршруты под токеном ---
	api := r.Group("/")
	api.Use(Auth(authService))
	api.Use(RateLimit(detector, "api", cfg.RateLimitMax, cfg.RateLimitWindow))
	{
		// Кошелёк: отдельная, более строгая зона лимита
		wallet := api.Group("/")
		wallet.Use(RateLimit(detector, "wallet", cfg.RateLimitWalletMax, cfg.RateLimitWalletWin))
		{
			wallet.GET("/wallet", handlers.Ledger.GetWallet)
			wallet.GET("/wallet/transactions", handlers.Ledger.ListTransactions)
			wallet.POST("/wallet/transactions", handlers.Ledger.CreateTransaction)
			wallet.POST("/subscriptions/withdrawals", handlers.Rewards.RequestWithdrawal)
		}

		api.GET("/subscriptions", handlers.Rewards.ListPlans)
		api.POST("/subscriptions/:id/purchase", handlers.Rewards.Purchase)
		api.GET("/subscriptions/mine", handlers.Rewards.MySubscriptions)

		api.GET("/games", handlers.Rounds.ListGames)
		api.GET("/games/:id/round", handlers.Rounds.GetOpenRound)
		api.POST("/rounds/:id/bets", handlers.Rounds.PlaceBet)

		api.GET("/ws", notify.WSHandler(registry))
	}

	// --- Админские маршруты ---
	admin := r.Group("/")
	admin.Use(Auth(authService), AdminOnly())
	{
		admin.POST("/rounds", handlers.Rounds.OpenRound)
		admin.POST("/rounds/:id/complete", handlers.Rounds.CompleteRound)
		admin.PATCH("/transactions/:id", handlers.Ledger.SettleTransaction)
		admin.PUT("/subscriptions/:id", handlers.Rewards.UpdatePlan)
		admin.GET("/alerts", handlers.Abuse.ListAlerts)
		admin.PATCH("/alerts/:id/resolve", handlers.Abuse.ResolveAlert)
		admin.GET("/cron/daily-rewards", handlers.Rewards.RunDailyRewards)
	}

	return r
}
