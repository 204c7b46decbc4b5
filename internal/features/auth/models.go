// Package auth — регистрация, вход и выдача JWT-токенов.
// Пароли хранятся как Argon2id-хеши; перед проверкой пароля
// учитывается блокировка после серии неудачных входов.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User — учётная запись пользователя.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims — полезная нагрузка JWT-токена.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
