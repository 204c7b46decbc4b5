// Package rounds — repository.go выполняет операции с таблицами games,
// game_rounds и game_bets. Все денежные эффекты проходят через хелперы
// модуля ledger внутри той же транзакции БД: списание ставки и её запись,
// равно как отметка выигрыша и его зачисление — атомарные единицы.
package rounds

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"betting-service/internal/common"
	"betting-service/internal/features/ledger"
)

// Repository работает с таблицами игр, раундов и ставок.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий раундов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListGames возвращает активные игры каталога.
func (r *Repository) ListGames(ctx context.Context) ([]*Game, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, min_bet, is_active, created_at
		FROM games WHERE is_active ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения игр: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Name, &g.MinBet, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования игры: %w", err)
		}
		games = append(games, &g)
	}
	return games, rows.Err()
}

// GetGame возвращает игру по id.
func (r *Repository) GetGame(ctx context.Context, gameID int64) (*Game, error) {
	var g Game
	err := r.db.QueryRow(ctx, `
		SELECT id, name, min_bet, is_active, created_at
		FROM games WHERE id = $1
	`, gameID).Scan(&g.ID, &g.Name, &g.MinBet, &g.IsActive, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения игры: %w", err)
	}
	return &g, nil
}

// OpenRound создаёт новый раунд для игры.
func (r *Repository) OpenRound(ctx context.Context, gameID int64) (*Round, error) {
	round := Round{GameID: gameID}
	err := r.db.QueryRow(ctx, `
		INSERT INTO game_rounds (game_id, start_time, is_completed)
		VALUES ($1, NOW(), FALSE)
		RETURNING id, start_time, is_completed
	`, gameID).Scan(&round.ID, &round.StartTime, &round.IsCompleted)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания раунда: %w", err)
	}
	return &round, nil
}

// GetRound возвращает раунд по id.
func (r *Repository) GetRound(ctx context.Context, roundID int64) (*Round, error) {
	var round Round
	err := r.db.QueryRow(ctx, `
		SELECT id, game_id, start_time, end_time, winner, is_completed
		FROM game_rounds WHERE id = $1
	`, roundID).Scan(&round.ID, &round.GameID, &round.StartTime, &round.EndTime, &round.Winner, &round.IsCompleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения раунда: %w", err)
	}
	return &round, nil
}

// GetOpenRound возвращает текущий открытый раунд игры.
func (r *Repository) GetOpenRound(ctx context.Context, gameID int64) (*Round, error) {
	var round Round
	err := r.db.QueryRow(ctx, `
		SELECT id, game_id, start_time, end_time, winner, is_completed
		FROM game_rounds
		WHERE game_id = $1 AND NOT is_completed
		ORDER BY start_time DESC
		LIMIT 1
	`, gameID).Scan(&round.ID, &round.GameID, &round.StartTime, &round.EndTime, &round.Winner, &round.IsCompleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения открытого раунда: %w", err)
	}
	return &round, nil
}

// PlaceBet списывает ставку и записывает её одной транзакцией БД.
// Статус раунда проверяется внутри той же транзакции: ставка в уже
// рассчитанный раунд невозможна. При нехватке средств ставка не создаётся.
func (r *Repository) PlaceBet(ctx context.Context, userID, roundID int64, choice string, amount int64) (*Bet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Проверяем, что раунд ещё открыт. FOR SHARE не пускает CloseRound
	// между проверкой и фиксацией ставки: ставка либо успевает до
	// закрытия, либо видит раунд уже рассчитанным.
	var completed bool
	err = tx.QueryRow(ctx, `
		SELECT is_completed FROM game_rounds WHERE id = $1 FOR SHARE
	`, roundID).Scan(&completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки раунда: %w", err)
	}
	if completed {
		return nil, common.ErrRoundNotOpen
	}

	// Списываем ставку через модуль кошельков
	description := fmt.Sprintf("Ставка в раунде %d", roundID)
	if _, err := ledger.ApplyDebit(ctx, tx, userID, amount, ledger.TxTypeGameBet, description); err != nil {
		return nil, err
	}

	bet := Bet{UserID: userID, RoundID: roundID, Amount: amount, Choice: choice}
	err = tx.QueryRow(ctx, `
		INSERT INTO game_bets (user_id, game_round_id, bet_amount, bet_choice, win_amount)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id, created_at
	`, userID, roundID, amount, choice).Scan(&bet.ID, &bet.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи ставки: %w", err)
	}

	return &bet, tx.Commit(ctx)
}

// CloseRound переводит раунд в рассчитанное состояние.
// Однострочный UPDATE с условием NOT is_completed гарантирует, что закрыть
// раунд удастся ровно один раз: повторный вызов возвращает closed = false
// и текущее состояние раунда.
func (r *Repository) CloseRound(ctx context.Context, roundID int64, winner string) (*Round, bool, error) {
	var round Round
	err := r.db.QueryRow(ctx, `
		UPDATE game_rounds
		SET is_completed = TRUE, winner = $2, end_time = NOW()
		WHERE id = $1 AND NOT is_completed
		RETURNING id, game_id, start_time, end_time, winner, is_completed
	`, roundID, winner).Scan(&round.ID, &round.GameID, &round.StartTime, &round.EndTime, &round.Winner, &round.IsCompleted)
	if errors.Is(err, pgx.ErrNoRows) {
		// Раунд уже закрыт (или не существует) — отдаём текущее состояние
		current, err := r.GetRound(ctx, roundID)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка закрытия раунда: %w", err)
	}
	return &round, true, nil
}

// UnsettledBets возвращает нерассчитанные ставки раунда.
// После сбоя посреди расчёта повторный вызов вернёт только «хвост».
func (r *Repository) UnsettledBets(ctx context.Context, roundID int64) ([]*Bet, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, game_round_id, bet_amount, bet_choice, is_win, win_amount, created_at
		FROM game_bets
		WHERE game_round_id = $1 AND is_win IS NULL
		ORDER BY id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ставок: %w", err)
	}
	defer rows.Close()

	var bets []*Bet
	for rows.Next() {
		var b Bet
		err := rows.Scan(&b.ID, &b.UserID, &b.RoundID, &b.Amount, &b.Choice, &b.IsWin, &b.WinAmount, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ставки: %w", err)
		}
		bets = append(bets, &b)
	}
	return bets, rows.Err()
}

// SettleBet рассчитывает одну ставку: отметка результата и зачисление
// выигрыша — одна транзакция БД. Условие is_win IS NULL исключает
// повторную выплату по уже рассчитанной ставке; в этом случае
// возвращается settled = false.
func (r *Repository) SettleBet(ctx context.Context, bet *Bet, isWin bool, winAmount int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE game_bets
		SET is_win = $2, win_amount = $3
		WHERE id = $1 AND is_win IS NULL
	`, bet.ID, isWin, winAmount)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки результата: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Ставка уже рассчитана конкурентным вызовом
		return false, nil
	}

	if isWin && winAmount > 0 {
		description := fmt.Sprintf("Выигрыш в раунде %d", bet.RoundID)
		if _, err := ledger.ApplyCredit(ctx, tx, bet.UserID, winAmount, ledger.TxTypeGameWin, description); err != nil {
			return false, err
		}
	}

	return true, tx.Commit(ctx)
}
