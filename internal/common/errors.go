// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и возвращать клиенту корректный HTTP-статус и понятное сообщение.
package common

import "errors"

// Ошибки кошелька и транзакций
var (
	// ErrWalletNotFound — у пользователя нет кошелька
	ErrWalletNotFound = errors.New("кошелёк не найден")
	// ErrInsufficientBalance — недостаточно средств на счёте
	ErrInsufficientBalance = errors.New("недостаточно средств на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrTransactionNotFound — транзакция не найдена
	ErrTransactionNotFound = errors.New("транзакция не найдена")
	// ErrTransactionNotPending — транзакция уже обработана,
	// повторный перевод статуса запрещён
	ErrTransactionNotPending = errors.New("транзакция уже обработана")
)

// Ошибки раундов и ставок
var (
	// ErrRoundNotFound — раунд не найден
	ErrRoundNotFound = errors.New("раунд не найден")
	// ErrRoundNotOpen — раунд завершён, ставки не принимаются
	ErrRoundNotOpen = errors.New("раунд завершён, ставки не принимаются")
	// ErrGameNotFound — игра не найдена или отключена
	ErrGameNotFound = errors.New("игра не найдена")
	// ErrBetBelowMinimum — ставка меньше минимальной для этой игры
	ErrBetBelowMinimum = errors.New("ставка меньше минимальной")
)

// Ошибки подписок и начислений
var (
	// ErrSubscriptionNotFound — план подписки не найден или не активен
	ErrSubscriptionNotFound = errors.New("план подписки не найден")
	// ErrMandatoryUpgrade — при крупных выигрышах доступны только старшие планы
	ErrMandatoryUpgrade = errors.New("требуется подписка более высокого уровня")
	// ErrWithdrawalNotEligible — дата разрешённого вывода ещё не наступила
	ErrWithdrawalNotEligible = errors.New("вывод средств пока недоступен")
	// ErrWithdrawalCapExceeded — превышен лимит вывода по плану подписки
	ErrWithdrawalCapExceeded = errors.New("превышен лимит вывода по подписке")
	// ErrNoActiveSubscription — у пользователя нет активной подписки
	ErrNoActiveSubscription = errors.New("нет активной подписки")
)

// Ошибки аутентификации и защиты
var (
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrUserExists — имя пользователя уже занято
	ErrUserExists = errors.New("имя пользователя уже занято")
	// ErrWeakCredentials — имя или пароль не проходят минимальные требования
	ErrWeakCredentials = errors.New("имя от 3 символов, пароль от 6")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток входа, подождите")
	// ErrRateLimited — превышен лимит запросов
	ErrRateLimited = errors.New("превышен лимит запросов")
)
