// Package rewards управляет подписками и их ежедневными начислениями.
// models.go описывает план подписки (справочник) и подписку пользователя.
package rewards

import "time"

// Subscription — план подписки из каталога. Меняется только админом.
type Subscription struct {
	ID                 int64     `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Price              int64     `db:"price" json:"price"`               // Стоимость покупки
	DailyReward        int64     `db:"daily_reward" json:"daily_reward"` // Ежедневное начисление
	TotalReward        int64     `db:"total_reward" json:"total_reward"` // Потолок вывода за срок подписки
	DurationDays       int       `db:"duration_days" json:"duration_days"`
	Level              int       `db:"level" json:"level"` // Уровень плана (для обязательного апгрейда)
	WithdrawalWaitDays int       `db:"withdrawal_wait_days" json:"withdrawal_wait_days"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// UserSubscription — подписка конкретного пользователя.
// Создаётся при покупке; после истечения end_date деактивируется
// и никогда не активируется заново. У пользователя ожидается не более
// одной активной подписки.
type UserSubscription struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	SubscriptionID int64      `db:"subscription_id" json:"subscription_id"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        time.Time  `db:"end_date" json:"end_date"`
	// LastRewardDate — отметка последнего начисления. Сравнение и запись
	// выполняются одним UPDATE (compare-and-set): два конкурентных
	// триггера не могут начислить бонус дважды за одно окно.
	LastRewardDate     *time.Time `db:"last_reward_date" json:"last_reward_date"`
	NextWithdrawalDate time.Time  `db:"next_withdrawal_date" json:"next_withdrawal_date"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	TotalEarned        int64      `db:"total_earned" json:"total_earned"`
	TotalWithdrawn     int64      `db:"total_withdrawn" json:"total_withdrawn"`
	// AccumulatedWinnings — снимок суммарных игровых выигрышей
	// пользователя на момент покупки
	AccumulatedWinnings int64     `db:"accumulated_winnings" json:"accumulated_winnings"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// DueAccrual — пара «подписка + её план» для начисления.
type DueAccrual struct {
	Sub  *UserSubscription
	Plan *Subscription
}

// AccrualResult — итог проверки начисления.
type AccrualResult struct {
	Credited bool  `json:"credited"`
	Amount   int64 `json:"amount"`
}

// SweepReport — итог планового обхода всех подписок.
type SweepReport struct {
	Processed int `json:"processed"` // Начислено бонусов
	Errors    int `json:"errors"`    // Ошибок при начислении
	Expired   int `json:"expired"`   // Деактивировано истёкших подписок
}
