// Package rewards — repository.go выполняет операции с таблицами
// subscriptions и user_subscriptions. Покупка и начисление бонуса
// проходят через хелперы модуля ledger внутри одной транзакции БД.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"betting-service/internal/common"
	"betting-service/internal/features/ledger"
)

// Repository работает с таблицами подписок.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий подписок.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const planColumns = `id, name, price, daily_reward, total_reward, duration_days,
	level, withdrawal_wait_days, is_active, created_at`

func scanPlan(row pgx.Row) (*Subscription, error) {
	var p Subscription
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.DailyReward, &p.TotalReward,
		&p.DurationDays, &p.Level, &p.WithdrawalWaitDays, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlans возвращает активные планы подписки.
func (r *Repository) ListPlans(ctx context.Context) ([]*Subscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+planColumns+` FROM subscriptions WHERE is_active ORDER BY level, price
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения планов: %w", err)
	}
	defer rows.Close()

	var plans []*Subscription
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования плана: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlan возвращает план подписки по id.
func (r *Repository) GetPlan(ctx context.Context, planID int64) (*Subscription, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `
		SELECT `+planColumns+` FROM subscriptions WHERE id = $1
	`, planID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения плана: %w", err)
	}
	return p, nil
}

// UpdatePlan обновляет план подписки (админ).
func (r *Repository) UpdatePlan(ctx context.Context, p *Subscription) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE subscriptions
		SET name = $2, price = $3, daily_reward = $4, total_reward = $5,
		    duration_days = $6, level = $7, withdrawal_wait_days = $8, is_active = $9
		WHERE id = $1
	`, p.ID, p.Name, p.Price, p.DailyReward, p.TotalReward,
		p.DurationDays, p.Level, p.WithdrawalWaitDays, p.IsActive)
	if err != nil {
		return fmt.Errorf("ошибка обновления плана: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrSubscriptionNotFound
	}
	return nil
}

const subColumns = `id, user_id, subscription_id, start_date, end_date,
	last_reward_date, next_withdrawal_date, is_active, total_earned,
	total_withdrawn, accumulated_winnings, created_at`

func scanSub(row pgx.Row) (*UserSubscription, error) {
	var s UserSubscription
	err := row.Scan(&s.ID, &s.UserID, &s.SubscriptionID, &s.StartDate, &s.EndDate,
		&s.LastRewardDate, &s.NextWithdrawalDate, &s.IsActive, &s.TotalEarned,
		&s.TotalWithdrawn, &s.AccumulatedWinnings, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveSubscription возвращает активную подписку пользователя.
func (r *Repository) GetActiveSubscription(ctx context.Context, userID int64) (*UserSubscription, error) {
	s, err := scanSub(r.db.QueryRow(ctx, `
		SELECT `+subColumns+` FROM user_subscriptions
		WHERE user_id = $1 AND is_active
		ORDER BY start_date DESC LIMIT 1
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подписки: %w", err)
	}
	return s, nil
}

// ListUserSubscriptions возвращает все подписки пользователя.
func (r *Repository) ListUserSubscriptions(ctx context.Context, userID int64) ([]*UserSubscription, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+subColumns+` FROM user_subscriptions
		WHERE user_id = $1 ORDER BY start_date DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подписок: %w", err)
	}
	defer rows.Close()

	var subs []*UserSubscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования подписки: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// SumWinnings возвращает суммарные игровые выигрыши пользователя.
// Читает журнал ставок (только чтение — записями владеет модуль rounds);
// используется правилом обязательного апгрейда.
func (r *Repository) SumWinnings(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(win_amount), 0) FROM game_bets WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта выигрышей: %w", err)
	}
	return sum, nil
}

// Purchase оформляет покупку подписки одной транзакцией БД:
// списание цены, создание подписки и первое начисление бонуса
// (первый бонус выдаётся сразу при покупке, а не через сутки).
func (r *Repository) Purchase(ctx context.Context, userID int64, plan *Subscription, winnings int64) (*UserSubscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	description := fmt.Sprintf("Покупка подписки «%s» на %d %s",
		plan.Name, plan.DurationDays, common.PluralizeDays(plan.DurationDays))
	if _, err := ledger.ApplyDebit(ctx, tx, userID, plan.Price, ledger.TxTypeSubscription, description); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	// Срок и дата вывода считаются по календарным дням, а не по часам
	day := common.TruncateToDay(now)
	sub := UserSubscription{
		UserID:              userID,
		SubscriptionID:      plan.ID,
		StartDate:           now,
		EndDate:             day.AddDate(0, 0, plan.DurationDays),
		NextWithdrawalDate:  day.AddDate(0, 0, plan.WithdrawalWaitDays),
		IsActive:            true,
		TotalEarned:         plan.DailyReward,
		AccumulatedWinnings: winnings,
	}
	lastReward := now
	sub.LastRewardDate = &lastReward

	err = tx.QueryRow(ctx, `
		INSERT INTO user_subscriptions
			(user_id, subscription_id, start_date, end_date, last_reward_date,
			 next_withdrawal_date, is_active, total_earned, total_withdrawn,
			 accumulated_winnings)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, 0, $8)
		RETURNING id, created_at
	`, userID, plan.ID, sub.StartDate, sub.EndDate, lastReward,
		sub.NextWithdrawalDate, plan.DailyReward, winnings).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания подписки: %w", err)
	}

	// Первое начисление — в той же транзакции, что и покупка
	rewardDesc := fmt.Sprintf("Ежедневный бонус подписки «%s»", plan.Name)
	if _, err := ledger.ApplyCredit(ctx, tx, userID, plan.DailyReward, ledger.TxTypeReward, rewardDesc); err != nil {
		return nil, err
	}

	return &sub, tx.Commit(ctx)
}

// AccrueIfDue начисляет ежедневный бонус, если он созрел.
//
// Compare-and-set: условие на last_reward_date входит в сам UPDATE,
// поэтому из двух конкурентных вызовов (ленивый GET и планировщик)
// начислит ровно один. Отметка времени и зачисление — одна транзакция БД.
func (r *Repository) AccrueIfDue(ctx context.Context, sub *UserSubscription, plan *Subscription, cutoff time.Time) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// end_date входит в условие: подписка с истёкшим сроком не получает
	// бонус, даже если обход деактивации до неё ещё не дошёл
	tag, err := tx.Exec(ctx, `
		UPDATE user_subscriptions
		SET last_reward_date = NOW(), total_earned = total_earned + $2
		WHERE id = $1 AND is_active AND end_date > NOW()
		  AND (last_reward_date IS NULL OR last_reward_date <= $3)
	`, sub.ID, plan.DailyReward, cutoff)
	if err != nil {
		return false, fmt.Errorf("ошибка отметки начисления: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Бонус ещё не созрел или уже начислен конкурентным вызовом
		return false, nil
	}

	description := fmt.Sprintf("Ежедневный бонус подписки «%s»", plan.Name)
	if _, err := ledger.ApplyCredit(ctx, tx, sub.UserID, plan.DailyReward, ledger.TxTypeReward, description); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// DueSubscriptions возвращает активные подписки, созревшие для начисления.
func (r *Repository) DueSubscriptions(ctx context.Context, cutoff time.Time) ([]*DueAccrual, error) {
	rows, err := r.db.Query(ctx, `
		SELECT us.id, us.user_id, us.subscription_id, us.start_date, us.end_date,
		       us.last_reward_date, us.next_withdrawal_date, us.is_active,
		       us.total_earned, us.total_withdrawn, us.accumulated_winnings, us.created_at,
		       s.id, s.name, s.price, s.daily_reward, s.total_reward, s.duration_days,
		       s.level, s.withdrawal_wait_days, s.is_active, s.created_at
		FROM user_subscriptions us
		JOIN subscriptions s ON s.id = us.subscription_id
		WHERE us.is_active
		  AND (us.last_reward_date IS NULL OR us.last_reward_date <= $1)
		ORDER BY us.id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки подписок: %w", err)
	}
	defer rows.Close()

	var due []*DueAccrual
	for rows.Next() {
		var s UserSubscription
		var p Subscription
		err := rows.Scan(&s.ID, &s.UserID, &s.SubscriptionID, &s.StartDate, &s.EndDate,
			&s.LastRewardDate, &s.NextWithdrawalDate, &s.IsActive,
			&s.TotalEarned, &s.TotalWithdrawn, &s.AccumulatedWinnings, &s.CreatedAt,
			&p.ID, &p.Name, &p.Price, &p.DailyReward, &p.TotalReward, &p.DurationDays,
			&p.Level, &p.WithdrawalWaitDays, &p.IsActive, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования подписки: %w", err)
		}
		due = append(due, &DueAccrual{Sub: &s, Plan: &p})
	}
	return due, rows.Err()
}

// ExpireLapsed деактивирует подписки с истёкшим сроком.
// Обратного пути нет: is_active никогда не возвращается в true.
func (r *Repository) ExpireLapsed(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_subscriptions
		SET is_active = FALSE
		WHERE is_active AND end_date < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("ошибка деактивации подписок: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// AuthorizeWithdrawal проверяет право на вывод и резервирует лимит.
// Строка подписки блокируется FOR UPDATE: два конкурентных запроса
// не могут вдвоём пройти проверку потолка.
func (r *Repository) AuthorizeWithdrawal(ctx context.Context, subID, amount, totalRewardCap int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var totalWithdrawn int64
	var nextWithdrawal time.Time
	err = tx.QueryRow(ctx, `
		SELECT total_withdrawn, next_withdrawal_date
		FROM user_subscriptions WHERE id = $1 FOR UPDATE
	`, subID).Scan(&totalWithdrawn, &nextWithdrawal)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNoActiveSubscription
	}
	if err != nil {
		return fmt.Errorf("ошибка получения подписки: %w", err)
	}

	if time.Now().Before(nextWithdrawal) {
		return fmt.Errorf("%w (доступен с %s)",
			common.ErrWithdrawalNotEligible, common.FormatDateTime(nextWithdrawal))
	}
	if totalWithdrawn+amount > totalRewardCap {
		return common.ErrWithdrawalCapExceeded
	}

	if _, err := tx.Exec(ctx, `
		UPDATE user_subscriptions
		SET total_withdrawn = total_withdrawn + $2
		WHERE id = $1
	`, subID, amount); err != nil {
		return fmt.Errorf("ошибка обновления лимита: %w", err)
	}

	return tx.Commit(ctx)
}

// ReleaseWithdrawal возвращает лимит, зарезервированный AuthorizeWithdrawal,
// если заявка на вывод не состоялась или была отклонена. GREATEST страхует
// от ухода счётчика в минус; без активной подписки возвращать нечего.
func (r *Repository) ReleaseWithdrawal(ctx context.Context, userID, amount int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_subscriptions
		SET total_withdrawn = GREATEST(total_withdrawn - $2, 0)
		WHERE user_id = $1 AND is_active
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка возврата лимита вывода: %w", err)
	}
	return nil
}
