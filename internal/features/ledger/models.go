// Package ledger владеет балансами кошельков и журналом транзакций.
// models.go описывает структуры кошелька и транзакции.
package ledger

import "time"

// Wallet представляет кошелёк пользователя.
// Каждый участник имеет ровно одну запись в таблице wallets.
//
// Инвариант: balance всегда равен сумме всех completed-транзакций
// пользователя. Заявка на вывод не трогает balance, а резервирует
// сумму в held; доступный остаток = balance - held.
type Wallet struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"` // Подтверждённый баланс
	Held      int64     `db:"held" json:"held"`       // Зарезервировано под pending-выводы
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Available возвращает сумму, доступную для трат.
func (w *Wallet) Available() int64 {
	return w.Balance - w.Held
}

// Transaction представляет одну операцию с деньгами.
// Записи append-only: completed-транзакция никогда не изменяется,
// pending переходит в completed или rejected ровно один раз.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"` // Со знаком: списания отрицательные
	Type        string    `db:"transaction_type" json:"type"`
	Status      string    `db:"status" json:"status"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Допустимые типы транзакций
const (
	TxTypeDeposit      = "deposit"      // Пополнение счёта
	TxTypeWithdrawal   = "withdrawal"   // Вывод средств
	TxTypeGameBet      = "game_bet"     // Ставка в раунде
	TxTypeGameWin      = "game_win"     // Выигрыш в раунде
	TxTypeReward       = "reward"       // Ежедневное начисление подписки
	TxTypeSubscription = "subscription" // Покупка подписки
	TxTypeCommission   = "commission"   // Комиссия сервиса
)

// Статусы транзакций
const (
	StatusPending   = "pending"   // Ожидает одобрения админом
	StatusCompleted = "completed" // Применена к балансу
	StatusRejected  = "rejected"  // Отклонена
)
