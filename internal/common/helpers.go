// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм, русская плюрализация, работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
)

// FormatAmount форматирует денежную сумму в читабельную строку.
// Пример: FormatAmount(150) → "150 ₽"
func FormatAmount(amount int64) string {
	return fmt.Sprintf("%d ₽", amount)
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "день" (1, 21, 31, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "дня" (2, 3, 4, 22, ...)
//   - Остальные случаи → "дней" (0, 5-20, 25-30, ...)
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// TruncateToDay возвращает дату без времени в UTC.
// Используется для расчёта дат вывода и окончания подписок.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04")
}
