package abuse

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCountersWindowExpiry(t *testing.T) {
	counters := NewMemoryCounters()
	now := time.Now()
	counters.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := counters.Incr(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("инкремент: %v", err)
		}
		if got != want {
			t.Fatalf("счётчик = %d, ожидалось %d", got, want)
		}
	}

	// Окно истекло — счётчик начинается заново
	now = now.Add(61 * time.Second)
	got, err := counters.Incr(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("инкремент после окна: %v", err)
	}
	if got != 1 {
		t.Errorf("счётчик после окна = %d, ожидалось 1", got)
	}
}

func TestMemoryCountersMarkBreach(t *testing.T) {
	counters := NewMemoryCounters()
	now := time.Now()
	counters.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := counters.MarkBreach(ctx, "b", time.Minute)
	if err != nil || !first {
		t.Fatalf("первый флаг: first=%v err=%v", first, err)
	}

	// Повторная пометка в том же окне — не первая
	if again, _ := counters.MarkBreach(ctx, "b", time.Minute); again {
		t.Error("повторный флаг в том же окне помечен как первый")
	}

	// Новое окно — снова первая
	now = now.Add(2 * time.Minute)
	if first, _ := counters.MarkBreach(ctx, "b", time.Minute); !first {
		t.Error("флаг в новом окне не помечен как первый")
	}
}

func TestMemoryCountersIndependentKeys(t *testing.T) {
	counters := NewMemoryCounters()
	ctx := context.Background()

	counters.Incr(ctx, "a", time.Minute)
	counters.Incr(ctx, "a", time.Minute)
	got, _ := counters.Incr(ctx, "b", time.Minute)
	if got != 1 {
		t.Errorf("счётчик другого ключа = %d, ожидалось 1", got)
	}
}
