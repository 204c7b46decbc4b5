package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"betting-service/internal/common"
	"betting-service/internal/config"
)

// Store — хранилище пользователей.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, userID int64) (*User, error)
}

// WalletCreator заводит кошелёк новому пользователю.
type WalletCreator interface {
	CreateWallet(ctx context.Context, userID int64) error
}

// LoginGuard — проверки детектора злоупотреблений вокруг входа.
type LoginGuard interface {
	TooManyRecentFailures(ctx context.Context, username string) bool
	RecordLoginAttempt(ctx context.Context, userID int64, username, ip string, success bool)
	RecordSession(ctx context.Context, userID int64, ip, userAgent string)
}

// Service — регистрация, вход и выдача токенов.
type Service struct {
	store   Store
	wallets WalletCreator
	guard   LoginGuard
	cfg     *config.Config
}

// NewService создаёт новый сервис аутентификации.
func NewService(store Store, wallets WalletCreator, guard LoginGuard, cfg *config.Config) *Service {
	return &Service{store: store, wallets: wallets, guard: guard, cfg: cfg}
}

// Register создаёт пользователя и его кошелёк.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(password) < 6 {
		return nil, common.ErrWeakCredentials
	}

	hash, err := hashArgon2id(password)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hash, RoleUser)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.CreateWallet(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("ошибка создания кошелька: %w", err)
	}

	log.WithFields(log.Fields{"user_id": user.ID, "username": username}).Info("Зарегистрирован новый пользователь")
	return user, nil
}

// Login проверяет учётные данные и выдаёт JWT.
// Порядок важен: блокировка по серии неудач проверяется ДО пароля,
// чтобы перебор не продолжался даже с верным паролем.
func (s *Service) Login(ctx context.Context, username, password, ip, userAgent string) (string, *User, error) {
	if s.guard.TooManyRecentFailures(ctx, username) {
		return "", nil, common.ErrTooManyAttempts
	}

	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		// Запись неудачи и для несуществующих имён: окно общее
		s.guard.RecordLoginAttempt(ctx, 0, username, ip, false)
		return "", nil, common.ErrWrongPassword
	}

	if !verifyArgon2id(password, user.PasswordHash) {
		s.guard.RecordLoginAttempt(ctx, user.ID, username, ip, false)
		return "", nil, common.ErrWrongPassword
	}

	s.guard.RecordLoginAttempt(ctx, user.ID, username, ip, true)
	s.guard.RecordSession(ctx, user.ID, ip, userAgent)

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка выдачи токена: %w", err)
	}
	return token, user, nil
}

// issueToken подписывает JWT с данными пользователя.
func (s *Service) issueToken(user *User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ParseToken проверяет подпись и срок действия JWT.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, common.ErrWrongPassword
	}
	return &claims, nil
}

// Параметры Argon2id
const (
	argonMemory      uint32 = 65536 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
)

// hashArgon2id хеширует пароль в стандартном формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>.
func hashArgon2id(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id проверяет пароль против хеша в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
