// Package rewards — service.go содержит бизнес-логику подписок:
// покупка с правилом обязательного апгрейда, идемпотентные ежедневные
// начисления и авторизация выводов.
package rewards

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"betting-service/internal/common"
	"betting-service/internal/config"
	"betting-service/internal/notify"
)

// Store — операции хранилища, которые нужны сервису подписок.
// Продакшен-реализация — Repository (PostgreSQL); тесты используют
// in-memory подделку.
type Store interface {
	ListPlans(ctx context.Context) ([]*Subscription, error)
	GetPlan(ctx context.Context, planID int64) (*Subscription, error)
	UpdatePlan(ctx context.Context, p *Subscription) error
	GetActiveSubscription(ctx context.Context, userID int64) (*UserSubscription, error)
	ListUserSubscriptions(ctx context.Context, userID int64) ([]*UserSubscription, error)
	SumWinnings(ctx context.Context, userID int64) (int64, error)
	Purchase(ctx context.Context, userID int64, plan *Subscription, winnings int64) (*UserSubscription, error)
	AccrueIfDue(ctx context.Context, sub *UserSubscription, plan *Subscription, cutoff time.Time) (bool, error)
	DueSubscriptions(ctx context.Context, cutoff time.Time) ([]*DueAccrual, error)
	ExpireLapsed(ctx context.Context) (int, error)
	AuthorizeWithdrawal(ctx context.Context, subID, amount, totalRewardCap int64) error
	ReleaseWithdrawal(ctx context.Context, userID, amount int64) error
}

// Service управляет подписками и начислениями.
type Service struct {
	store    Store
	registry notify.Registry
	cfg      *config.Config
}

// NewService создаёт сервис подписок.
func NewService(store Store, registry notify.Registry, cfg *config.Config) *Service {
	return &Service{store: store, registry: registry, cfg: cfg}
}

// Plans возвращает каталог активных планов.
func (s *Service) Plans(ctx context.Context) ([]*Subscription, error) {
	return s.store.ListPlans(ctx)
}

// UpdatePlan обновляет план подписки (админ) и оповещает клиентов.
func (s *Service) UpdatePlan(ctx context.Context, p *Subscription) error {
	if err := s.store.UpdatePlan(ctx, p); err != nil {
		return err
	}
	s.registry.Broadcast(notify.NewSettingUpdated(p.ID, p.Name))
	log.WithField("plan_id", p.ID).Info("План подписки обновлён")
	return nil
}

// Purchase оформляет покупку подписки.
//
// Правило обязательного апгрейда: пользователь с суммарными игровыми
// выигрышами от MandatoryUpgradeWinnings может покупать только планы
// уровня MandatoryUpgradeLevel и выше.
func (s *Service) Purchase(ctx context.Context, userID, planID int64) (*UserSubscription, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, common.ErrSubscriptionNotFound
	}

	winnings, err := s.store.SumWinnings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if winnings >= s.cfg.MandatoryUpgradeWinnings && plan.Level < s.cfg.MandatoryUpgradeLevel {
		return nil, common.ErrMandatoryUpgrade
	}

	sub, err := s.store.Purchase(ctx, userID, plan, winnings)
	if err != nil {
		return nil, err
	}

	// Первый бонус выдан при покупке — уведомляем
	s.registry.SendTo(userID, notify.NewDailyReward(sub.ID, plan.DailyReward))

	log.WithFields(log.Fields{
		"user_id": userID,
		"plan_id": planID,
		"sub_id":  sub.ID,
	}).Info("Подписка куплена")
	return sub, nil
}

// AccrueIfDue начисляет ежедневный бонус, если прошло не меньше
// RewardInterval с прошлого начисления. Не ошибка, если бонус не созрел
// или его уже начислил конкурентный вызов — тогда credited = false.
func (s *Service) AccrueIfDue(ctx context.Context, sub *UserSubscription) AccrualResult {
	plan, err := s.store.GetPlan(ctx, sub.SubscriptionID)
	if err != nil {
		log.WithError(err).WithField("sub_id", sub.ID).Error("Ошибка получения плана для начисления")
		return AccrualResult{}
	}

	cutoff := time.Now().UTC().Add(-s.cfg.RewardInterval)
	credited, err := s.store.AccrueIfDue(ctx, sub, plan, cutoff)
	if err != nil {
		log.WithError(err).WithField("sub_id", sub.ID).Error("Ошибка начисления бонуса")
		return AccrualResult{}
	}
	if !credited {
		return AccrualResult{}
	}

	s.registry.SendTo(sub.UserID, notify.NewDailyReward(sub.ID, plan.DailyReward))
	log.WithFields(log.Fields{
		"user_id": sub.UserID,
		"sub_id":  sub.ID,
		"amount":  plan.DailyReward,
	}).Debug("Ежедневный бонус начислен")
	return AccrualResult{Credited: true, Amount: plan.DailyReward}
}

// UserSubscriptions возвращает подписки пользователя.
// Побочный эффект: по пути лениво начисляет созревшие бонусы.
func (s *Service) UserSubscriptions(ctx context.Context, userID int64) ([]*UserSubscription, error) {
	subs, err := s.store.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.IsActive {
			s.AccrueIfDue(ctx, sub)
		}
	}
	// Перечитываем после возможных начислений
	return s.store.ListUserSubscriptions(ctx, userID)
}

// AccrueAllDue — плановый обход: деактивирует истёкшие подписки
// и начисляет все созревшие бонусы. Идемпотентен: повторный запуск
// в том же окне ничего не начислит повторно.
func (s *Service) AccrueAllDue(ctx context.Context) *SweepReport {
	report := &SweepReport{}

	expired, err := s.store.ExpireLapsed(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка деактивации истёкших подписок")
		report.Errors++
	}
	report.Expired = expired

	cutoff := time.Now().UTC().Add(-s.cfg.RewardInterval)
	due, err := s.store.DueSubscriptions(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Ошибка выборки подписок для начисления")
		report.Errors++
		return report
	}

	for _, d := range due {
		credited, err := s.store.AccrueIfDue(ctx, d.Sub, d.Plan, cutoff)
		if err != nil {
			report.Errors++
			log.WithError(err).WithField("sub_id", d.Sub.ID).Error("Ошибка начисления бонуса")
			continue
		}
		if credited {
			report.Processed++
			s.registry.SendTo(d.Sub.UserID, notify.NewDailyReward(d.Sub.ID, d.Plan.DailyReward))
		}
	}

	log.WithFields(log.Fields{
		"processed": report.Processed,
		"errors":    report.Errors,
		"expired":   report.Expired,
	}).Info("Обход начислений завершён")
	return report
}

// AuthorizeWithdrawal проверяет право пользователя на вывод
// и увеличивает счётчик выведенного. Соответствующее списание
// с кошелька оформляет вызывающая сторона.
func (s *Service) AuthorizeWithdrawal(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if err != nil {
		return err
	}
	plan, err := s.store.GetPlan(ctx, sub.SubscriptionID)
	if err != nil {
		return err
	}

	return s.store.AuthorizeWithdrawal(ctx, sub.ID, amount, plan.TotalReward)
}

// ReleaseWithdrawal возвращает лимит вывода, зарезервированный
// AuthorizeWithdrawal. Вызывается, когда заявка на вывод не была
// создана или была отклонена админом: лимит должен вернуться
// пользователю, иначе несостоявшийся вывод съедает его навсегда.
func (s *Service) ReleaseWithdrawal(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.store.ReleaseWithdrawal(ctx, userID, amount); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
	}).Info("Лимит вывода возвращён")
	return nil
}
