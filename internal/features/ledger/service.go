// Package ledger — service.go содержит бизнес-логику кошельков.
// Валидация сумм, заявки на депозит/вывод, одобрение транзакций,
// уведомления и побочный вызов детектора злоупотреблений.
package ledger

import (
	"context"

	log "github.com/sirupsen/logrus"

	"betting-service/internal/common"
	"betting-service/internal/notify"
)

// Store — операции хранилища, которые нужны сервису кошельков.
// Продакшен-реализация — Repository (PostgreSQL); тесты используют
// in-memory подделку.
type Store interface {
	CreateWallet(ctx context.Context, userID int64) error
	GetWallet(ctx context.Context, userID int64) (*Wallet, error)
	Credit(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error)
	Debit(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error)
	CreatePending(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error)
	Settle(ctx context.Context, txID int64, status string) (*Transaction, error)
	Transactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error)
}

// AnomalyChecker — сторонний детектор аномалий. Вызывается как побочный
// канал на каждой денежной операции; сам детектор никогда не возвращает
// ошибку и не блокирует основную операцию.
type AnomalyChecker interface {
	CheckTransactionAnomaly(ctx context.Context, userID, amount int64, txType string)
}

// WithdrawalReverser возвращает пользователю лимит вывода по подписке.
// Вызывается при отклонении заявки на вывод: лимит был зарезервирован
// при создании заявки и без возврата терялся бы навсегда.
type WithdrawalReverser interface {
	ReleaseWithdrawal(ctx context.Context, userID, amount int64) error
}

// Service управляет кошельками и журналом транзакций.
type Service struct {
	store    Store
	registry notify.Registry
	anomaly  AnomalyChecker
	reverser WithdrawalReverser
}

// NewService создаёт сервис кошельков.
func NewService(store Store, registry notify.Registry, anomaly AnomalyChecker, reverser WithdrawalReverser) *Service {
	return &Service{store: store, registry: registry, anomaly: anomaly, reverser: reverser}
}

// CreateWallet заводит пустой кошелёк для нового пользователя.
func (s *Service) CreateWallet(ctx context.Context, userID int64) error {
	return s.store.CreateWallet(ctx, userID)
}

// GetWallet возвращает кошелёк пользователя.
func (s *Service) GetWallet(ctx context.Context, userID int64) (*Wallet, error) {
	return s.store.GetWallet(ctx, userID)
}

// Credit зачисляет средства на счёт.
// Используется раундами (выигрыши) и подписками (бонусы).
func (s *Service) Credit(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	txn, err := s.store.Credit(ctx, userID, amount, txType, description)
	if err != nil {
		return nil, err
	}
	s.checkAnomaly(ctx, userID, amount, txType)
	return txn, nil
}

// Debit списывает средства со счёта.
func (s *Service) Debit(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	txn, err := s.store.Debit(ctx, userID, amount, txType, description)
	if err != nil {
		return nil, err
	}
	s.checkAnomaly(ctx, userID, amount, txType)
	return txn, nil
}

// RequestTransaction создаёт заявку на депозит или вывод (pending).
// Баланс при этом не меняется; вывод резервирует сумму в held.
func (s *Service) RequestTransaction(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if txType != TxTypeDeposit && txType != TxTypeWithdrawal {
		return nil, common.ErrInvalidAmount
	}

	// В журнале вывод хранится со знаком минус
	signed := amount
	if txType == TxTypeWithdrawal {
		signed = -amount
	}

	txn, err := s.store.CreatePending(ctx, userID, signed, txType, description)
	if err != nil {
		return nil, err
	}

	s.registry.SendTo(userID, notify.NewTransactionCreated(txn.ID, txType, amount))
	s.checkAnomaly(ctx, userID, amount, txType)

	log.WithFields(log.Fields{
		"user_id": userID,
		"tx_id":   txn.ID,
		"type":    txType,
		"amount":  amount,
	}).Info("Создана заявка на транзакцию")
	return txn, nil
}

// SettleTransaction одобряет или отклоняет pending-заявку.
// Повторная обработка уже решённой заявки возвращает
// common.ErrTransactionNotPending.
func (s *Service) SettleTransaction(ctx context.Context, txID int64, status string) (*Transaction, error) {
	if status != StatusCompleted && status != StatusRejected {
		return nil, common.ErrInvalidAmount
	}

	txn, err := s.store.Settle(ctx, txID, status)
	if err != nil {
		return nil, err
	}

	if status == StatusCompleted {
		if txn.Type == TxTypeWithdrawal {
			s.registry.SendTo(txn.UserID, notify.NewWithdrawalApproved(txn.ID, -txn.Amount))
		} else {
			s.registry.SendTo(txn.UserID, notify.NewTransactionApproved(txn.ID, txn.Type, txn.Amount))
		}
	}

	// Отклонённый вывод возвращает зарезервированный лимит подписки
	if status == StatusRejected && txn.Type == TxTypeWithdrawal && s.reverser != nil {
		if err := s.reverser.ReleaseWithdrawal(ctx, txn.UserID, -txn.Amount); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"user_id": txn.UserID,
				"tx_id":   txn.ID,
			}).Error("Не удалось вернуть лимит вывода")
		}
	}

	log.WithFields(log.Fields{
		"tx_id":  txn.ID,
		"status": status,
		"type":   txn.Type,
	}).Info("Заявка обработана")
	return txn, nil
}

// Transactions возвращает историю транзакций пользователя.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Transactions(ctx, userID, limit)
}

// checkAnomaly дёргает детектор злоупотреблений, если тот подключён.
// Любые проблемы детектора — его забота: он логирует их сам.
func (s *Service) checkAnomaly(ctx context.Context, userID, amount int64, txType string) {
	if s.anomaly == nil {
		return
	}
	s.anomaly.CheckTransactionAnomaly(ctx, userID, amount, txType)
}
