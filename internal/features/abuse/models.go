// Package abuse — детектор злоупотреблений: лимиты запросов,
// попытки входа, смена IP сессии, аномальные транзакции и
// автоматические ставки. Все проверки пишут алерты, а не блокируют
// бизнес-операции (кроме rate-limit'а и блокировки входа).
package abuse

import (
	"time"
)

// Типы алертов безопасности.
const (
	AlertRateLimitExceeded      = "rate_limit_exceeded"
	AlertExcessiveLoginAttempts = "excessive_login_attempts"
	AlertNewLoginLocation       = "new_login_location"
	AlertLargeTransaction       = "large_transaction"
	AlertUnusualPattern         = "unusual_transaction_pattern"
	AlertAutomatedBetting       = "automated_betting"
)

// Уровни серьёзности алертов.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityAlert — запись в журнале безопасности.
type SecurityAlert struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        string            `json:"type"`
	Severity    string            `json:"severity"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Resolved    bool              `json:"resolved"`
	CreatedAt   time.Time         `json:"created_at"`
}

// LoginAttempt — попытка входа (успешная или нет).
type LoginAttempt struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IP        string    `json:"ip"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSession — зафиксированная сессия пользователя.
type UserSession struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision — результат проверки лимита запросов.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}
