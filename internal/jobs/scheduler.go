// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежедневное начисление бонусов
// по подпискам и ежечасная досылка пропущенных начислений.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"betting-service/internal/features/rewards"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron          *cron.Cron
	rewardService *rewards.Service
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(rewardService *rewards.Service) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:          c,
		rewardService: rewardService,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ежедневное начисление в 00:05 по Москве
	s.cron.AddFunc("5 0 * * *", func() {
		log.Info("[CRON] Ежедневное начисление бонусов")
		report := s.rewardService.AccrueAllDue(ctx)
		log.WithFields(log.Fields{
			"processed": report.Processed,
			"errors":    report.Errors,
			"expired":   report.Expired,
		}).Info("[CRON] Начисление завершено")
	})

	// Досылка пропущенных начислений каждый час.
	// Начисление идемпотентно, дубль невозможен.
	s.cron.AddFunc("0 * * * *", func() {
		log.Debug("[CRON] Досылка пропущенных начислений")
		report := s.rewardService.AccrueAllDue(ctx)
		if report.Errors > 0 {
			log.WithField("errors", report.Errors).Error("[CRON] Ошибки при досылке начислений")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
