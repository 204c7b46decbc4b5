package abuse

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore — счётчики запросов для rate-limit'а.
// Продакшен живёт на Redis (атомарный INCR переживает рестарты и
// несколько инстансов), локальная разработка и тесты — в памяти.
type CounterStore interface {
	// Incr увеличивает счётчик и возвращает новое значение.
	// При первом инкременте счётчику выставляется TTL = window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// MarkBreach ставит флаг «алерт за это окно уже был».
	// Возвращает true, если флаг поставлен впервые.
	MarkBreach(ctx context.Context, key string, window time.Duration) (bool, error)
}

// --- Redis ---

// RedisCounters — счётчики на Redis.
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters создаёт хранилище счётчиков на Redis.
func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

func (s *RedisCounters) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ошибка инкремента счётчика: %w", err)
	}
	if count == 1 {
		// TTL ставим только новому счётчику, иначе окно ползёт
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("ошибка установки TTL: %w", err)
		}
	}
	return count, nil
}

func (s *RedisCounters) MarkBreach(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка установки флага: %w", err)
	}
	return ok, nil
}

// --- In-memory ---

type memEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounters — счётчики в памяти процесса. Подходит для одного
// инстанса; при рестарте окна обнуляются.
type MemoryCounters struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemoryCounters создаёт хранилище счётчиков в памяти.
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		entries: make(map[string]*memEntry),
		now:     time.Now,
	}
}

func (s *MemoryCounters) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memEntry{expiresAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++

	// Изредка выметаем протухшие ключи, чтобы карта не росла вечно
	if rand.Intn(50) == 0 {
		s.sweepLocked(now)
	}
	return e.count, nil
}

func (s *MemoryCounters) MarkBreach(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if ok && !now.After(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = &memEntry{count: 1, expiresAt: now.Add(window)}
	return true, nil
}

func (s *MemoryCounters) sweepLocked(now time.Time) {
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
