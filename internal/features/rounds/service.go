// Package rounds — service.go координирует приём ставок и расчёт раундов.
package rounds

import (
	"context"

	log "github.com/sirupsen/logrus"

	"betting-service/internal/common"
	"betting-service/internal/config"
	"betting-service/internal/notify"
)

// Store — операции хранилища, которые нужны движку раундов.
// Продакшен-реализация — Repository (PostgreSQL); тесты используют
// in-memory подделку.
type Store interface {
	ListGames(ctx context.Context) ([]*Game, error)
	GetGame(ctx context.Context, gameID int64) (*Game, error)
	OpenRound(ctx context.Context, gameID int64) (*Round, error)
	GetRound(ctx context.Context, roundID int64) (*Round, error)
	GetOpenRound(ctx context.Context, gameID int64) (*Round, error)
	PlaceBet(ctx context.Context, userID, roundID int64, choice string, amount int64) (*Bet, error)
	CloseRound(ctx context.Context, roundID int64, winner string) (*Round, bool, error)
	UnsettledBets(ctx context.Context, roundID int64) ([]*Bet, error)
	SettleBet(ctx context.Context, bet *Bet, isWin bool, winAmount int64) (bool, error)
}

// BetWatcher — побочный детектор автоматических ставок.
// Вызывается после каждой принятой ставки и никогда не мешает ей.
type BetWatcher interface {
	CheckAutomatedBetting(ctx context.Context, userID int64)
}

// Service управляет раундами и ставками.
type Service struct {
	store    Store
	registry notify.Registry
	watcher  BetWatcher
	cfg      *config.Config
}

// NewService создаёт движок раундов.
func NewService(store Store, registry notify.Registry, watcher BetWatcher, cfg *config.Config) *Service {
	return &Service{store: store, registry: registry, watcher: watcher, cfg: cfg}
}

// ListGames возвращает активные игры каталога.
func (s *Service) ListGames(ctx context.Context) ([]*Game, error) {
	return s.store.ListGames(ctx)
}

// OpenRound открывает новый раунд для игры.
// По соглашению на игру открыт не более одного раунда; за соблюдение
// отвечает вызывающая сторона (админ или планировщик раундов).
func (s *Service) OpenRound(ctx context.Context, gameID int64) (*Round, error) {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.IsActive {
		return nil, common.ErrGameNotFound
	}

	round, err := s.store.OpenRound(ctx, gameID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"game_id":  gameID,
		"round_id": round.ID,
	}).Info("Раунд открыт")
	return round, nil
}

// GetOpenRound возвращает текущий открытый раунд игры.
func (s *Service) GetOpenRound(ctx context.Context, gameID int64) (*Round, error) {
	return s.store.GetOpenRound(ctx, gameID)
}

// PlaceBet принимает ставку в открытом раунде.
// Списание и запись ставки атомарны: при нехватке средств или
// закрытом раунде ставка не создаётся.
func (s *Service) PlaceBet(ctx context.Context, userID, roundID int64, choice string, amount int64) (*Bet, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if choice == "" {
		return nil, common.ErrInvalidAmount
	}

	// Проверяем минимальную ставку игры
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	game, err := s.store.GetGame(ctx, round.GameID)
	if err != nil {
		return nil, err
	}
	if amount < game.MinBet {
		return nil, common.ErrBetBelowMinimum
	}

	bet, err := s.store.PlaceBet(ctx, userID, roundID, choice, amount)
	if err != nil {
		return nil, err
	}

	// Побочный канал: детектор ставочных ботов
	if s.watcher != nil {
		s.watcher.CheckAutomatedBetting(ctx, userID)
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"round_id": roundID,
		"amount":   amount,
		"choice":   choice,
	}).Info("Ставка принята")
	return bet, nil
}

// CompleteRound закрывает раунд и рассчитывает все его ставки.
//
// Идемпотентность: повторный вызов для уже рассчитанного раунда —
// no-op, возвращается текущее состояние без повторных выплат.
//
// Частичные сбои: ошибка расчёта одной ставки не прерывает расчёт
// остальных — она логируется и попадает в отчёт; повторный вызов
// дорассчитает только ставки с is_win IS NULL.
func (s *Service) CompleteRound(ctx context.Context, roundID int64, winner string) (*Round, *SettlementReport, error) {
	round, closed, err := s.store.CloseRound(ctx, roundID, winner)
	if err != nil {
		return nil, nil, err
	}
	if !closed && round.IsCompleted {
		// Раунд уже был закрыт. Дорасчитываем возможный «хвост»
		// после сбоя, но победителя не переопределяем.
		if round.Winner != nil {
			winner = *round.Winner
		}
		report, err := s.settleBets(ctx, round, winner)
		if err != nil {
			return nil, nil, err
		}
		return round, report, nil
	}

	report, err := s.settleBets(ctx, round, winner)
	if err != nil {
		return nil, nil, err
	}

	// Публичное объявление итога раунда
	s.registry.Broadcast(notify.NewRoundCompleted(round.ID, winner))

	log.WithFields(log.Fields{
		"round_id": round.ID,
		"winner":   winner,
		"settled":  report.Settled,
		"winners":  report.Winners,
		"failures": report.Failures,
	}).Info("Раунд рассчитан")
	return round, report, nil
}

// settleBets рассчитывает все нерассчитанные ставки раунда.
func (s *Service) settleBets(ctx context.Context, round *Round, winner string) (*SettlementReport, error) {
	bets, err := s.store.UnsettledBets(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	report := &SettlementReport{RoundID: round.ID}
	for _, bet := range bets {
		isWin := bet.Choice == winner
		var winAmount int64
		if isWin {
			winAmount = bet.Amount * s.cfg.RoundPayoutMultiplier
		}

		settled, err := s.store.SettleBet(ctx, bet, isWin, winAmount)
		if err != nil {
			// Не прерываем расчёт остальных ставок: ошибка попадает
			// в отчёт, ставка останется с is_win IS NULL до повтора
			report.Failures++
			log.WithError(err).WithFields(log.Fields{
				"round_id": round.ID,
				"bet_id":   bet.ID,
				"user_id":  bet.UserID,
			}).Error("Ошибка расчёта ставки")
			continue
		}
		if !settled {
			continue
		}

		report.Settled++
		if isWin {
			report.Winners++
			// Личный результат победителю и публичное объявление
			s.registry.SendTo(bet.UserID, notify.NewGameResult(round.ID, "win", winAmount))
			s.registry.Broadcast(notify.NewUserWin(bet.UserID, round.ID, winAmount))
		} else {
			s.registry.SendTo(bet.UserID, notify.NewGameResult(round.ID, "lose", 0))
		}
	}

	return report, nil
}
