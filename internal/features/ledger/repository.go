// Package ledger — repository.go выполняет все операции с таблицами wallets
// и transactions. Изменение баланса и запись в журнал всегда выполняются
// в одной транзакции БД: частичный сбой не может оставить баланс без
// соответствующей записи журнала и наоборот.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"betting-service/internal/common"
)

// Repository предоставляет методы для работы с кошельками и транзакциями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий кошельков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateWallet создаёт пустой кошелёк для нового пользователя.
func (r *Repository) CreateWallet(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO wallets (user_id, balance, held)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания кошелька: %w", err)
	}
	return nil
}

// GetWallet возвращает кошелёк пользователя.
func (r *Repository) GetWallet(ctx context.Context, userID int64) (*Wallet, error) {
	query := `
		SELECT id, user_id, balance, held, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`
	var w Wallet
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&w.ID, &w.UserID, &w.Balance, &w.Held, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения кошелька: %w", err)
	}
	return &w, nil
}

// Credit зачисляет средства на счёт пользователя.
// Баланс и журнал обновляются атомарно.
func (r *Repository) Credit(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	txn, err := ApplyCredit(ctx, tx, userID, amount, txType, description)
	if err != nil {
		return nil, err
	}

	return txn, tx.Commit(ctx)
}

// Debit списывает средства со счёта пользователя.
// Проверяет доступный остаток (balance - held) под блокировкой строки.
func (r *Repository) Debit(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	txn, err := ApplyDebit(ctx, tx, userID, amount, txType, description)
	if err != nil {
		return nil, err
	}

	return txn, tx.Commit(ctx)
}

// ApplyCredit зачисляет средства в рамках УЖЕ открытой транзакции БД.
// Через этот хелпер другие модули (раунды, подписки) проводят свои
// зачисления, сохраняя собственную атомарную единицу работы.
func ApplyCredit(ctx context.Context, tx pgx.Tx, userID, amount int64, txType, description string) (*Transaction, error) {
	// Однострочный UPDATE сериализует конкурентные изменения баланса
	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("ошибка зачисления: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, common.ErrWalletNotFound
	}

	return insertCompleted(ctx, tx, userID, amount, txType, description)
}

// ApplyDebit списывает средства в рамках УЖЕ открытой транзакции БД.
// Возвращает common.ErrInsufficientBalance, если доступного остатка не хватает.
func ApplyDebit(ctx context.Context, tx pgx.Tx, userID, amount int64, txType, description string) (*Transaction, error) {
	// Блокируем строку кошелька и проверяем доступный остаток
	var balance, held int64
	err := tx.QueryRow(ctx, `
		SELECT balance, held FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&balance, &held)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	if balance-held < amount {
		return nil, common.ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("ошибка списания: %w", err)
	}

	// В журнале списание хранится со знаком минус
	return insertCompleted(ctx, tx, userID, -amount, txType, description)
}

// insertCompleted записывает completed-транзакцию в журнал.
func insertCompleted(ctx context.Context, tx pgx.Tx, userID, amount int64, txType, description string) (*Transaction, error) {
	txn := Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Status:      StatusCompleted,
		Description: description,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, transaction_type, status, description)
		VALUES ($1, $2, $3, 'completed', $4)
		RETURNING id, created_at
	`, userID, amount, txType, description).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return &txn, nil
}

// CreatePending создаёт заявку на депозит или вывод без изменения баланса.
// Для вывода (amount < 0) сумма резервируется в held, чтобы pending-заявка
// не могла быть потрачена дважды; сам баланс меняется только при одобрении.
func (r *Repository) CreatePending(ctx context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if amount < 0 {
		// Заявка на вывод: проверяем доступный остаток и ставим холд
		var balance, held int64
		err := tx.QueryRow(ctx, `
			SELECT balance, held FROM wallets WHERE user_id = $1 FOR UPDATE
		`, userID).Scan(&balance, &held)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrWalletNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка получения баланса: %w", err)
		}
		if balance-held < -amount {
			return nil, common.ErrInsufficientBalance
		}
		_, err = tx.Exec(ctx, `
			UPDATE wallets SET held = held + $2, updated_at = NOW()
			WHERE user_id = $1
		`, userID, -amount)
		if err != nil {
			return nil, fmt.Errorf("ошибка резервирования: %w", err)
		}
	}

	txn := Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Status:      StatusPending,
		Description: description,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, transaction_type, status, description)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING id, created_at
	`, userID, amount, txType, description).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи заявки: %w", err)
	}

	return &txn, tx.Commit(ctx)
}

// Settle переводит pending-транзакцию в completed или rejected.
// Одобренный депозит зачисляется на баланс; одобренный вывод списывается
// с баланса и снимает холд; отклонённый вывод просто снимает холд.
// Статус pending проверяется под блокировкой строки — повторное
// одобрение той же заявки невозможно.
func (r *Repository) Settle(ctx context.Context, txID int64, status string) (*Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var txn Transaction
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, amount, transaction_type, status, description, created_at
		FROM transactions WHERE id = $1 FOR UPDATE
	`, txID).Scan(&txn.ID, &txn.UserID, &txn.Amount, &txn.Type, &txn.Status, &txn.Description, &txn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакции: %w", err)
	}

	if txn.Status != StatusPending {
		return nil, common.ErrTransactionNotPending
	}

	if _, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2 WHERE id = $1
	`, txID, status); err != nil {
		return nil, fmt.Errorf("ошибка смены статуса: %w", err)
	}

	switch {
	case status == StatusCompleted && txn.Amount > 0:
		// Одобренный депозит: зачисляем на баланс
		_, err = tx.Exec(ctx, `
			UPDATE wallets SET balance = balance + $2, updated_at = NOW()
			WHERE user_id = $1
		`, txn.UserID, txn.Amount)
	case status == StatusCompleted && txn.Amount < 0:
		// Одобренный вывод: списываем и снимаем холд
		_, err = tx.Exec(ctx, `
			UPDATE wallets SET balance = balance + $2, held = held - $3, updated_at = NOW()
			WHERE user_id = $1
		`, txn.UserID, txn.Amount, -txn.Amount)
	case status == StatusRejected && txn.Amount < 0:
		// Отклонённый вывод: освобождаем резерв
		_, err = tx.Exec(ctx, `
			UPDATE wallets SET held = held - $2, updated_at = NOW()
			WHERE user_id = $1
		`, txn.UserID, -txn.Amount)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка применения к балансу: %w", err)
	}

	txn.Status = status
	return &txn, tx.Commit(ctx)
}

// Transactions возвращает последние N транзакций пользователя.
func (r *Repository) Transactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, user_id, amount, transaction_type, status, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Status, &t.Description, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}
