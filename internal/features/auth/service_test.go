package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"betting-service/internal/common"
	"betting-service/internal/config"
)

// memStore — in-memory хранилище пользователей.
type memStore struct {
	users  map[string]*User
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*User)}
}

func (m *memStore) CreateUser(_ context.Context, username, passwordHash, role string) (*User, error) {
	if _, ok := m.users[username]; ok {
		return nil, common.ErrUserExists
	}
	m.nextID++
	u := &User{ID: m.nextID, Username: username, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	m.users[username] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, userID int64) (*User, error) {
	for _, u := range m.users {
		if u.ID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrUserNotFound
}

// fakeWallets фиксирует, для кого заведён кошелёк.
type fakeWallets struct {
	created []int64
}

func (f *fakeWallets) CreateWallet(_ context.Context, userID int64) error {
	f.created = append(f.created, userID)
	return nil
}

// fakeGuard — управляемый детектор вокруг входа.
type fakeGuard struct {
	locked   bool
	attempts []bool
	sessions int
}

func (f *fakeGuard) TooManyRecentFailures(_ context.Context, _ string) bool { return f.locked }

func (f *fakeGuard) RecordLoginAttempt(_ context.Context, _ int64, _, _ string, success bool) {
	f.attempts = append(f.attempts, success)
}

func (f *fakeGuard) RecordSession(_ context.Context, _ int64, _, _ string) { f.sessions++ }

func setupAuth(t *testing.T) (*Service, *memStore, *fakeWallets, *fakeGuard) {
	t.Helper()
	store := newMemStore()
	wallets := &fakeWallets{}
	guard := &fakeGuard{}
	cfg := &config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour}
	return NewService(store, wallets, guard, cfg), store, wallets, guard
}

func TestRegisterCreatesWallet(t *testing.T) {
	svc, _, wallets, _ := setupAuth(t)

	user, err := svc.Register(context.Background(), "alice", "secret123")
	if err != nil {
		t.Fatalf("регистрация: %v", err)
	}
	if user.Role != RoleUser {
		t.Errorf("роль = %q, ожидалась %q", user.Role, RoleUser)
	}
	if len(wallets.created) != 1 || wallets.created[0] != user.ID {
		t.Errorf("кошелёк не заведён для нового пользователя: %v", wallets.created)
	}

	// Пароль не хранится в открытом виде
	if user.PasswordHash == "secret123" || user.PasswordHash == "" {
		t.Error("пароль сохранён в открытом виде")
	}

	// Имя занято
	if _, err := svc.Register(context.Background(), "alice", "secret123"); !errors.Is(err, common.ErrUserExists) {
		t.Errorf("повторная регистрация: ожидалась ErrUserExists, получено %v", err)
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, _, _, guard := setupAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("регистрация: %v", err)
	}

	token, got, err := svc.Login(ctx, "alice", "secret123", "10.0.0.1", "curl")
	if err != nil {
		t.Fatalf("вход: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("вошёл пользователь %d, ожидался %d", got.ID, user.ID)
	}
	if guard.sessions != 1 {
		t.Errorf("сессий записано %d, ожидалась 1", guard.sessions)
	}
	if len(guard.attempts) != 1 || !guard.attempts[0] {
		t.Errorf("попытки входа: %v, ожидалась одна успешная", guard.attempts)
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("разбор токена: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "alice" || claims.Role != RoleUser {
		t.Errorf("клеймы токена: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, guard := setupAuth(t)
	ctx := context.Background()

	svc.Register(ctx, "alice", "secret123")

	_, _, err := svc.Login(ctx, "alice", "другой", "10.0.0.1", "curl")
	if !errors.Is(err, common.ErrWrongPassword) {
		t.Fatalf("ожидалась ErrWrongPassword, получено %v", err)
	}
	if len(guard.attempts) != 1 || guard.attempts[0] {
		t.Errorf("попытки входа: %v, ожидалась одна неудачная", guard.attempts)
	}

	// Несуществующее имя — та же ошибка, без раскрытия
	if _, _, err := svc.Login(ctx, "nobody", "secret123", "10.0.0.1", "curl"); !errors.Is(err, common.ErrWrongPassword) {
		t.Errorf("несуществующее имя: ожидалась ErrWrongPassword, получено %v", err)
	}
}

func TestLoginLockedBeforePasswordCheck(t *testing.T) {
	svc, _, _, guard := setupAuth(t)
	ctx := context.Background()

	svc.Register(ctx, "alice", "secret123")
	guard.locked = true

	// Блокировка срабатывает до проверки пароля: даже верный пароль не впускает
	_, _, err := svc.Login(ctx, "alice", "secret123", "10.0.0.1", "curl")
	if !errors.Is(err, common.ErrTooManyAttempts) {
		t.Fatalf("ожидалась ErrTooManyAttempts, получено %v", err)
	}
	if len(guard.attempts) != 0 {
		t.Error("заблокированный вход записан как попытка")
	}
	if guard.sessions != 0 {
		t.Error("заблокированный вход создал сессию")
	}
}

func TestParseTokenRejectsForged(t *testing.T) {
	svc, _, _, _ := setupAuth(t)
	ctx := context.Background()

	svc.Register(ctx, "alice", "secret123")
	token, _, err := svc.Login(ctx, "alice", "secret123", "10.0.0.1", "curl")
	if err != nil {
		t.Fatalf("вход: %v", err)
	}

	if _, err := svc.ParseToken(token + "x"); err == nil {
		t.Error("искажённый токен принят")
	}
	if _, err := svc.ParseToken("мусор"); err == nil {
		t.Error("мусорная строка принята как токен")
	}
}

func TestArgon2idRoundtrip(t *testing.T) {
	hash, err := hashArgon2id("пароль123")
	if err != nil {
		t.Fatalf("хеширование: %v", err)
	}
	if !verifyArgon2id("пароль123", hash) {
		t.Error("верный пароль не прошёл проверку")
	}
	if verifyArgon2id("другой", hash) {
		t.Error("неверный пароль прошёл проверку")
	}
	if verifyArgon2id("пароль123", "некорректный-хеш") {
		t.Error("некорректный формат хеша прошёл проверку")
	}

	// Одинаковые пароли дают разные хеши (случайная соль)
	hash2, _ := hashArgon2id("пароль123")
	if hash == hash2 {
		t.Error("повторное хеширование дало тот же хеш")
	}
}
