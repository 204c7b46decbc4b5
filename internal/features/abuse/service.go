package abuse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"betting-service/internal/common"
	"betting-service/internal/config"
)

// Store — хранилище данных детектора злоупотреблений.
type Store interface {
	InsertAlert(ctx context.Context, alert *SecurityAlert) error
	HasAlertSince(ctx context.Context, userID int64, alertType string, since time.Time) (bool, error)
	LogLoginAttempt(ctx context.Context, username, ip string, success bool) error
	CountRecentFailures(ctx context.Context, username string, since time.Time) (int, error)
	LogSession(ctx context.Context, userID int64, ip, userAgent string) error
	PreviousSessionIP(ctx context.Context, userID int64) (string, error)
	AvgCompletedAmount(ctx context.Context, userID int64, txType string) (float64, error)
	RecentBetTimes(ctx context.Context, userID int64, limit int) ([]time.Time, error)
	ListAlerts(ctx context.Context, userID int64, limit int) ([]*SecurityAlert, error)
	ResolveAlert(ctx context.Context, alertID int64) error
}

// Service — детектор злоупотреблений. Блокирует только rate-limit и
// вход после серии неудач; остальные детекторы пишут алерты и не
// мешают бизнес-операциям. Сбой самого детектора никогда не валит
// операцию — он логируется и проглатывается.
type Service struct {
	store    Store
	counters CounterStore
	cfg      *config.Config
}

// NewService создаёт новый сервис детектора злоупотреблений.
func NewService(store Store, counters CounterStore, cfg *config.Config) *Service {
	return &Service{store: store, counters: counters, cfg: cfg}
}

// CheckRateLimit проверяет лимит запросов субъекта (пользователь или IP)
// в заданной зоне. При первом превышении за окно пишется ровно один алерт.
func (s *Service) CheckRateLimit(ctx context.Context, userID int64, subject, scope string, max int, window time.Duration) Decision {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, subject)
	count, err := s.counters.Incr(ctx, key, window)
	if err != nil {
		// Недоступный счётчик не должен класть API — пропускаем запрос
		logrus.WithError(err).Warn("Счётчик rate-limit недоступен, запрос пропущен")
		return Decision{Allowed: true}
	}

	if count <= int64(max) {
		return Decision{Allowed: true}
	}

	// Алерт — только один раз за окно превышения
	first, err := s.counters.MarkBreach(ctx, key+":breach", window)
	if err != nil {
		logrus.WithError(err).Warn("Не удалось пометить превышение лимита")
	} else if first {
		s.raise(ctx, &SecurityAlert{
			UserID:      userID,
			Type:        AlertRateLimitExceeded,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Превышен лимит запросов: %d за %s в зоне %s", count, window, scope),
			Metadata: map[string]string{
				"scope":   scope,
				"subject": subject,
				"count":   fmt.Sprintf("%d", count),
			},
		})
	}

	return Decision{Allowed: false, RetryAfter: window}
}

// RecordLoginAttempt фиксирует попытку входа и при достижении порога
// неудач пишет алерт (один на окно).
func (s *Service) RecordLoginAttempt(ctx context.Context, userID int64, username, ip string, success bool) {
	if err := s.store.LogLoginAttempt(ctx, username, ip, success); err != nil {
		logrus.WithError(err).WithField("username", username).Error("Не удалось записать попытку входа")
		return
	}
	if success {
		return
	}

	since := time.Now().Add(-s.cfg.LoginFailureWindow)
	failures, err := s.store.CountRecentFailures(ctx, username, since)
	if err != nil {
		logrus.WithError(err).Error("Не удалось посчитать неудачные попытки входа")
		return
	}
	if failures < s.cfg.LoginFailureThreshold {
		return
	}

	already, err := s.store.HasAlertSince(ctx, userID, AlertExcessiveLoginAttempts, since)
	if err != nil {
		logrus.WithError(err).Error("Не удалось проверить прошлые алерты")
		return
	}
	if already {
		return
	}

	s.raise(ctx, &SecurityAlert{
		UserID:      userID,
		Type:        AlertExcessiveLoginAttempts,
		Severity:    SeverityHigh,
		Description: fmt.Sprintf("Серия неудачных входов: %d за %s", failures, s.cfg.LoginFailureWindow),
		Metadata:    map[string]string{"username": username, "ip": ip},
	})
}

// TooManyRecentFailures — предварительная проверка перед проверкой пароля.
// true — пользователю следует отказать во входе до истечения окна.
func (s *Service) TooManyRecentFailures(ctx context.Context, username string) bool {
	since := time.Now().Add(-s.cfg.LoginFailureWindow)
	failures, err := s.store.CountRecentFailures(ctx, username, since)
	if err != nil {
		logrus.WithError(err).Error("Не удалось посчитать неудачные попытки входа")
		return false
	}
	return failures >= s.cfg.LoginFailureThreshold
}

// RecordSession фиксирует сессию и сравнивает IP с предыдущей.
// Вход с нового адреса — алерт, но не блокировка.
func (s *Service) RecordSession(ctx context.Context, userID int64, ip, userAgent string) {
	prevIP, err := s.store.PreviousSessionIP(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Не удалось получить прошлую сессию")
		prevIP = ""
	}

	if err := s.store.LogSession(ctx, userID, ip, userAgent); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Не удалось записать сессию")
	}

	if prevIP != "" && prevIP != ip {
		s.raise(ctx, &SecurityAlert{
			UserID:      userID,
			Type:        AlertNewLoginLocation,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Вход с нового адреса: %s (ранее %s)", ip, prevIP),
			Metadata:    map[string]string{"ip": ip, "previous_ip": prevIP},
		})
	}
}

// CheckTransactionAnomaly проверяет транзакцию двумя независимыми
// детекторами: фиксированный порог «крупной» суммы по типу и превышение
// исторического среднего в PatternMultiplier раз. Каждый детектор может
// дать свой алерт за одну и ту же транзакцию.
func (s *Service) CheckTransactionAnomaly(ctx context.Context, userID, amount int64, txType string) {
	abs := amount
	if abs < 0 {
		abs = -abs
	}

	// Порог строгий: алерт только при превышении, не при равенстве
	if abs > s.largeThreshold(txType) {
		s.raise(ctx, &SecurityAlert{
			UserID:      userID,
			Type:        AlertLargeTransaction,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Крупная транзакция %s на сумму %s", txType, common.FormatAmount(abs)),
			Metadata: map[string]string{
				"transaction_type": txType,
				"amount":           fmt.Sprintf("%d", abs),
			},
		})
	}

	avg, err := s.store.AvgCompletedAmount(ctx, userID, txType)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Не удалось посчитать средний размер транзакции")
		return
	}
	if avg > 0 && float64(abs) > avg*s.cfg.PatternMultiplier {
		s.raise(ctx, &SecurityAlert{
			UserID:      userID,
			Type:        AlertUnusualPattern,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Сумма %s превышает средний размер %.0f более чем в %.0f раз", common.FormatAmount(abs), avg, s.cfg.PatternMultiplier),
			Metadata: map[string]string{
				"transaction_type": txType,
				"amount":           fmt.Sprintf("%d", abs),
				"average":          fmt.Sprintf("%.2f", avg),
			},
		})
	}
}

// largeThreshold возвращает фиксированный порог крупной суммы для типа.
func (s *Service) largeThreshold(txType string) int64 {
	switch txType {
	case "withdrawal":
		return s.cfg.LargeWithdrawal
	case "deposit":
		return s.cfg.LargeDeposit
	case "game_bet":
		return s.cfg.LargeBet
	default:
		return s.cfg.LargeDefault
	}
}

// CheckAutomatedBetting анализирует интервалы между последними ставками.
// Слишком ровный (низкое отклонение) И слишком быстрый (низкое среднее)
// ритм — признак бота.
func (s *Service) CheckAutomatedBetting(ctx context.Context, userID int64) {
	times, err := s.store.RecentBetTimes(ctx, userID, s.cfg.BetSampleSize)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Не удалось получить времена ставок")
		return
	}
	if len(times) < s.cfg.BetSampleMin {
		return
	}

	mean, stddev := intervalStats(times)
	if stddev >= s.cfg.BetStddevCeiling || mean >= s.cfg.BetMeanCeiling {
		return
	}

	s.raise(ctx, &SecurityAlert{
		UserID:      userID,
		Type:        AlertAutomatedBetting,
		Severity:    SeverityHigh,
		Description: fmt.Sprintf("Подозрение на автоматические ставки: средний интервал %s, отклонение %s по %d ставкам", mean, stddev, len(times)),
		Metadata: map[string]string{
			"mean_interval":   mean.String(),
			"stddev_interval": stddev.String(),
			"sample_size":     fmt.Sprintf("%d", len(times)),
		},
	})
}

// intervalStats считает среднее и стандартное отклонение интервалов
// между соседними отметками времени. times отсортирован по возрастанию.
func intervalStats(times []time.Time) (mean, stddev time.Duration) {
	n := len(times) - 1
	if n < 1 {
		return 0, 0
	}

	intervals := make([]float64, 0, n)
	var sum float64
	for i := 1; i < len(times); i++ {
		d := float64(times[i].Sub(times[i-1]))
		intervals = append(intervals, d)
		sum += d
	}
	m := sum / float64(n)

	var variance float64
	for _, d := range intervals {
		variance += (d - m) * (d - m)
	}
	variance /= float64(n)

	return time.Duration(m), time.Duration(math.Sqrt(variance))
}

// Alerts возвращает последние алерты. userID = 0 — по всем пользователям.
func (s *Service) Alerts(ctx context.Context, userID int64, limit int) ([]*SecurityAlert, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListAlerts(ctx, userID, limit)
}

// Resolve помечает алерт обработанным.
func (s *Service) Resolve(ctx context.Context, alertID int64) error {
	return s.store.ResolveAlert(ctx, alertID)
}

// raise пишет алерт в журнал безопасности и в лог. Сбой записи
// не прерывает вызывающую операцию.
func (s *Service) raise(ctx context.Context, alert *SecurityAlert) {
	logrus.WithFields(logrus.Fields{
		"user_id":  alert.UserID,
		"type":     alert.Type,
		"severity": alert.Severity,
	}).Warn(alert.Description)

	if err := s.store.InsertAlert(ctx, alert); err != nil {
		logrus.WithError(err).Error("Не удалось записать алерт безопасности")
	}
}
