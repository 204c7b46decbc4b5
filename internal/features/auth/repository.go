package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"betting-service/internal/common"
)

// Repository предоставляет методы для работы с пользователями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий пользователей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser создаёт пользователя. Возвращает common.ErrUserExists,
// если имя уже занято.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error) {
	u := User{Username: username, PasswordHash: passwordHash, Role: role}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, created_at
	`, username, passwordHash, role).Scan(&u.ID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return &u, nil
}

// GetByUsername возвращает пользователя по имени.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &u, nil
}

// GetByID возвращает пользователя по id.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return &u, nil
}
