// Package rounds реализует жизненный цикл игровых раундов:
// приём ставок в открытом раунде и разовый расчёт по итогу.
// models.go описывает структуры игр, раундов и ставок.
package rounds

import "time"

// Game — запись каталога игр. Справочник, меняется только админом.
type Game struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	MinBet    int64     `db:"min_bet" json:"min_bet"`     // Минимальная ставка
	IsActive  bool      `db:"is_active" json:"is_active"` // Отключённая игра не открывает раунды
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Round — один игровой раунд.
// Жизненный цикл: открыт (is_completed = false, принимает ставки) →
// рассчитан (is_completed = true, winner заполнен). Окно приёма ставок
// контролирует вызывающая сторона: раунд закрывается вызовом CompleteRound.
type Round struct {
	ID          int64      `db:"id" json:"id"`
	GameID      int64      `db:"game_id" json:"game_id"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     *time.Time `db:"end_time" json:"end_time"`
	Winner      *string    `db:"winner" json:"winner"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
}

// Bet — одна ставка в раунде.
// IsWin равен nil, пока ставка не рассчитана; заполняется ровно один раз.
type Bet struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	RoundID   int64     `db:"game_round_id" json:"game_round_id"`
	Amount    int64     `db:"bet_amount" json:"bet_amount"`
	Choice    string    `db:"bet_choice" json:"bet_choice"`
	IsWin     *bool     `db:"is_win" json:"is_win"`
	WinAmount int64     `db:"win_amount" json:"win_amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Settled сообщает, рассчитана ли ставка.
func (b *Bet) Settled() bool {
	return b.IsWin != nil
}

// SettlementReport — итог расчёта раунда.
// Failures > 0 означает, что часть ставок не удалось рассчитать;
// повторный вызов расчёта дорассчитает только их.
type SettlementReport struct {
	RoundID  int64 `json:"round_id"`
	Settled  int   `json:"settled"`  // Рассчитано ставок за этот вызов
	Winners  int   `json:"winners"`  // Из них выигрышных
	Failures int   `json:"failures"` // Не удалось рассчитать
}
