package abuse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository хранит алерты, попытки входа и сессии в PostgreSQL.
// Исторические данные для детекторов (средние суммы, интервалы ставок)
// читаются из журналов транзакций и ставок других модулей.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий детектора злоупотреблений.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InsertAlert записывает алерт безопасности.
func (r *Repository) InsertAlert(ctx context.Context, alert *SecurityAlert) error {
	meta, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO security_alerts (user_id, alert_type, severity, description, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, alert.UserID, alert.Type, alert.Severity, alert.Description, meta).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи алерта: %w", err)
	}
	return nil
}

// HasAlertSince проверяет, был ли уже алерт такого типа у пользователя
// после указанного момента. Нужен для правила «один алерт на окно».
func (r *Repository) HasAlertSince(ctx context.Context, userID int64, alertType string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM security_alerts
			WHERE user_id = $1 AND alert_type = $2 AND created_at > $3
		)
	`, userID, alertType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки алертов: %w", err)
	}
	return exists, nil
}

// LogLoginAttempt фиксирует попытку входа.
func (r *Repository) LogLoginAttempt(ctx context.Context, username, ip string, success bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_attempts (username, ip, success)
		VALUES ($1, $2, $3)
	`, username, ip, success)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки входа: %w", err)
	}
	return nil
}

// CountRecentFailures считает неудачные попытки входа за окно.
func (r *Repository) CountRecentFailures(ctx context.Context, username string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE username = $1 AND NOT success AND created_at > $2
	`, username, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}

// LogSession фиксирует новую сессию пользователя.
func (r *Repository) LogSession(ctx context.Context, userID int64, ip, userAgent string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_sessions (user_id, ip, user_agent)
		VALUES ($1, $2, $3)
	`, userID, ip, userAgent)
	if err != nil {
		return fmt.Errorf("ошибка записи сессии: %w", err)
	}
	return nil
}

// PreviousSessionIP возвращает IP предыдущей сессии пользователя.
// Пустая строка — сессий ещё не было.
func (r *Repository) PreviousSessionIP(ctx context.Context, userID int64) (string, error) {
	var ip string
	err := r.db.QueryRow(ctx, `
		SELECT ip FROM user_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&ip)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return ip, nil
}

// AvgCompletedAmount возвращает средний модуль суммы завершённых
// транзакций данного типа у пользователя. Ноль — истории нет.
func (r *Repository) AvgCompletedAmount(ctx context.Context, userID int64, txType string) (float64, error) {
	var avg float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(ABS(amount)), 0)
		FROM transactions
		WHERE user_id = $1 AND transaction_type = $2 AND status = 'completed'
	`, userID, txType).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("ошибка расчёта среднего: %w", err)
	}
	return avg, nil
}

// RecentBetTimes возвращает времена последних N ставок пользователя
// в хронологическом порядке (от старых к новым).
func (r *Repository) RecentBetTimes(ctx context.Context, userID int64, limit int) ([]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT created_at FROM (
			SELECT created_at FROM game_bets
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения времён ставок: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("ошибка сканирования времени ставки: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// ListAlerts возвращает последние алерты (для админа).
// userID = 0 — алерты всех пользователей.
func (r *Repository) ListAlerts(ctx context.Context, userID int64, limit int) ([]*SecurityAlert, error) {
	query := `
		SELECT id, user_id, alert_type, severity, description, metadata, resolved, created_at
		FROM security_alerts
		WHERE ($1 = 0 OR user_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения алертов: %w", err)
	}
	defer rows.Close()

	var alerts []*SecurityAlert
	for rows.Next() {
		var a SecurityAlert
		var meta []byte
		err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Severity, &a.Description, &meta, &a.Resolved, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования алерта: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("ошибка разбора метаданных: %w", err)
			}
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// ResolveAlert помечает алерт как обработанный.
func (r *Repository) ResolveAlert(ctx context.Context, alertID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE security_alerts SET resolved = TRUE WHERE id = $1
	`, alertID)
	if err != nil {
		return fmt.Errorf("ошибка обновления алерта: %w", err)
	}
	return nil
}
