// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, Redis, репозитории, сервисы,
// обработчики и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"betting-service/internal/config"
	"betting-service/internal/db/postgres"
	"betting-service/internal/features/abuse"
	"betting-service/internal/features/auth"
	"betting-service/internal/features/ledger"
	"betting-service/internal/features/rewards"
	"betting-service/internal/features/rounds"
	"betting-service/internal/jobs"
	"betting-service/internal/notify"
	"betting-service/internal/server"
)

// App содержит все компоненты приложения.
type App struct {
	Router    *gin.Engine
	Scheduler *jobs.Scheduler
	Hub       *notify.Hub
	DB        *pgxpool.Pool
	Redis     *redis.Client
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Redis (счётчики rate-limit'а) ===
	var redisClient *redis.Client
	var counters abuse.CounterStore
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis недоступен: %w", err)
		}
		counters = abuse.NewRedisCounters(redisClient)
		log.Info("Подключение к Redis установлено")
	} else {
		counters = abuse.NewMemoryCounters()
		log.Warn("REDIS_ADDR не задан, счётчики rate-limit живут в памяти процесса")
	}

	// === 3. Хаб уведомлений ===
	hub := notify.NewHub(cfg.HubClientBuffer)

	// === 4. Репозитории ===
	ledgerRepo := ledger.NewRepository(pool)
	roundRepo := rounds.NewRepository(pool)
	rewardRepo := rewards.NewRepository(pool)
	abuseRepo := abuse.NewRepository(pool)
	authRepo := auth.NewRepository(pool)

	// === 5. Сервисы ===
	// Сервис подписок создаётся до кошельков: отклонение вывода
	// должно возвращать зарезервированный лимит подписки
	abuseService := abuse.NewService(abuseRepo, counters, cfg)
	rewardService := rewards.NewService(rewardRepo, hub, cfg)
	ledgerService := ledger.NewService(ledgerRepo, hub, abuseService, rewardService)
	roundService := rounds.NewService(roundRepo, hub, abuseService, cfg)
	authService := auth.NewService(authRepo, ledgerService, abuseService, cfg)

	// === 6. Обработчики ===
	handlers := &server.Handlers{
		Auth:    auth.NewHandler(authService),
		Ledger:  ledger.NewHandler(ledgerService),
		Rounds:  rounds.NewHandler(roundService),
		Rewards: rewards.NewHandler(rewardService, ledgerService),
		Abuse:   abuse.NewHandler(abuseService),
	}

	// === 7. Маршрутизатор ===
	router := server.NewRouter(cfg, handlers, authService, abuseService, hub)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(rewardService)

	return &App{
		Router:    router,
		Scheduler: scheduler,
		Hub:       hub,
		DB:        pool,
		Redis:     redisClient,
	}, nil
}

// HTTPServer собирает http.Server с маршрутизатором приложения.
func (a *App) HTTPServer(cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: a.Router,
	}
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.DB.Close()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия Redis")
		}
	}
}
