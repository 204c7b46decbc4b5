package abuse

import (
	"context"
	"testing"
	"time"

	"betting-service/internal/config"
)

// memStore — in-memory реализация Store детектора.
type memStore struct {
	alerts   []*SecurityAlert
	attempts []*LoginAttempt
	sessions []*UserSession
	avgs     map[string]float64
	betTimes map[int64][]time.Time
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		avgs:     make(map[string]float64),
		betTimes: make(map[int64][]time.Time),
	}
}

func (m *memStore) InsertAlert(_ context.Context, alert *SecurityAlert) error {
	m.nextID++
	alert.ID = m.nextID
	alert.CreatedAt = time.Now()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *memStore) HasAlertSince(_ context.Context, userID int64, alertType string, since time.Time) (bool, error) {
	for _, a := range m.alerts {
		if a.UserID == userID && a.Type == alertType && a.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) LogLoginAttempt(_ context.Context, username, ip string, success bool) error {
	m.attempts = append(m.attempts, &LoginAttempt{
		Username: username, IP: ip, Success: success, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memStore) CountRecentFailures(_ context.Context, username string, since time.Time) (int, error) {
	count := 0
	for _, a := range m.attempts {
		if a.Username == username && !a.Success && a.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) LogSession(_ context.Context, userID int64, ip, userAgent string) error {
	m.sessions = append(m.sessions, &UserSession{
		UserID: userID, IP: ip, UserAgent: userAgent, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memStore) PreviousSessionIP(_ context.Context, userID int64) (string, error) {
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].UserID == userID {
			return m.sessions[i].IP, nil
		}
	}
	return "", nil
}

func (m *memStore) AvgCompletedAmount(_ context.Context, userID int64, txType string) (float64, error) {
	return m.avgs[txType], nil
}

func (m *memStore) RecentBetTimes(_ context.Context, userID int64, limit int) ([]time.Time, error) {
	times := m.betTimes[userID]
	if len(times) > limit {
		times = times[len(times)-limit:]
	}
	return times, nil
}

func (m *memStore) ListAlerts(_ context.Context, userID int64, limit int) ([]*SecurityAlert, error) {
	var out []*SecurityAlert
	for i := len(m.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if userID == 0 || m.alerts[i].UserID == userID {
			out = append(out, m.alerts[i])
		}
	}
	return out, nil
}

func (m *memStore) ResolveAlert(_ context.Context, alertID int64) error {
	for _, a := range m.alerts {
		if a.ID == alertID {
			a.Resolved = true
			return nil
		}
	}
	return nil
}

// countAlerts считает алерты данного типа.
func (m *memStore) countAlerts(alertType string) int {
	count := 0
	for _, a := range m.alerts {
		if a.Type == alertType {
			count++
		}
	}
	return count
}

func testConfig() *config.Config {
	return &config.Config{
		LoginFailureWindow:    15 * time.Minute,
		LoginFailureThreshold: 5,
		LargeWithdrawal:       1000,
		LargeDeposit:          3000,
		LargeBet:              500,
		LargeDefault:          2000,
		PatternMultiplier:     5,
		BetSampleSize:         10,
		BetSampleMin:          5,
		BetStddevCeiling:      500 * time.Millisecond,
		BetMeanCeiling:        5 * time.Second,
	}
}

func setupDetector(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewService(store, NewMemoryCounters(), testConfig()), store
}

func TestRateLimitWindow(t *testing.T) {
	svc, _ := setupDetector(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if d := svc.CheckRateLimit(ctx, 1, "u1", "api", 5, time.Minute); !d.Allowed {
			t.Fatalf("запрос %d отклонён в пределах лимита", i+1)
		}
	}

	d := svc.CheckRateLimit(ctx, 1, "u1", "api", 5, time.Minute)
	if d.Allowed {
		t.Fatal("шестой запрос пропущен сверх лимита")
	}
	if d.RetryAfter <= 0 {
		t.Error("отказ без retry_after")
	}
}

func TestRateLimitSingleAlertPerWindow(t *testing.T) {
	svc, store := setupDetector(t)
	ctx := context.Background()

	// Десять запросов при лимите 3: семь отказов, но алерт — один
	for i := 0; i < 10; i++ {
		svc.CheckRateLimit(ctx, 1, "u1", "api", 3, time.Minute)
	}
	if got := store.countAlerts(AlertRateLimitExceeded); got != 1 {
		t.Errorf("алертов = %d, ожидался ровно 1 на окно", got)
	}
}

func TestRateLimitScopesIndependent(t *testing.T) {
	svc, _ := setupDetector(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.CheckRateLimit(ctx, 1, "u1", "wallet", 3, time.Minute)
	}
	if d := svc.CheckRateLimit(ctx, 1, "u1", "wallet", 3, time.Minute); d.Allowed {
		t.Error("зона wallet: запрос сверх лимита пропущен")
	}
	// Лимит зоны wallet не задевает зону api
	if d := svc.CheckRateLimit(ctx, 1, "u1", "api", 3, time.Minute); !d.Allowed {
		t.Error("зона api отклонила первый запрос")
	}
}

func TestLoginFailureLockout(t *testing.T) {
	svc, store := setupDetector(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.RecordLoginAttempt(ctx, 1, "alice", "10.0.0.1", false)
	}
	if svc.TooManyRecentFailures(ctx, "alice") {
		t.Fatal("блокировка сработала до порога")
	}

	svc.RecordLoginAttempt(ctx, 1, "alice", "10.0.0.1", false)
	if !svc.TooManyRecentFailures(ctx, "alice") {
		t.Fatal("пять неудач за окно не привели к блокировке")
	}
	if got := store.countAlerts(AlertExcessiveLoginAttempts); got != 1 {
		t.Errorf("алертов = %d, ожидался 1", got)
	}

	// Дальнейшие неудачи в том же окне не плодят алерты
	svc.RecordLoginAttempt(ctx, 1, "alice", "10.0.0.1", false)
	if got := store.countAlerts(AlertExcessiveLoginAttempts); got != 1 {
		t.Errorf("алертов = %d после повторной неудачи, ожидался 1", got)
	}

	// Другой пользователь не задет
	if svc.TooManyRecentFailures(ctx, "bob") {
		t.Error("блокировка задела другого пользователя")
	}
}

func TestSessionIPChange(t *testing.T) {
	svc, store := setupDetector(t)
	ctx := context.Background()

	// Первая сессия: истории нет, алерта нет
	svc.RecordSession(ctx, 1, "10.0.0.1", "curl")
	if got := store.countAlerts(AlertNewLoginLocation); got != 0 {
		t.Errorf("алерт по первой сессии: %d", got)
	}

	// Тот же адрес — тишина
	svc.RecordSession(ctx, 1, "10.0.0.1", "curl")
	if got := store.countAlerts(AlertNewLoginLocation); got != 0 {
		t.Errorf("алерт по повторному адресу: %d", got)
	}

	// Новый адрес — алерт, но вход не блокируется
	svc.RecordSession(ctx, 1, "172.16.0.9", "curl")
	if got := store.countAlerts(AlertNewLoginLocation); got != 1 {
		t.Errorf("алертов = %d по смене адреса, ожидался 1", got)
	}
}

func TestLargeTransactionThresholds(t *testing.T) {
	tests := []struct {
		txType string
		amount int64
		alert  bool
	}{
		// Порог строгий: сумма, равная порогу, алерта не даёт
		{"withdrawal", 1000, false},
		{"withdrawal", 1001, true},
		{"deposit", 3000, false},
		{"deposit", 3001, true},
		{"game_bet", 500, false},
		{"game_bet", 501, true},
		{"reward", 2000, false},
		{"reward", 2001, true},
	}
	for _, tt := range tests {
		svc, store := setupDetector(t)
		svc.CheckTransactionAnomaly(context.Background(), 1, tt.amount, tt.txType)
		got := store.countAlerts(AlertLargeTransaction) == 1
		if got != tt.alert {
			t.Errorf("%s %d: алерт = %v, ожидалось %v", tt.txType, tt.amount, got, tt.alert)
		}
	}
}

func TestUnusualPatternIndependentOfThreshold(t *testing.T) {
	svc, store := setupDetector(t)
	ctx := context.Background()

	// Средний депозит 100: сумма 600 в 6 раз больше среднего,
	// но ниже фиксированного порога 3000 — срабатывает только паттерн
	store.avgs["deposit"] = 100
	svc.CheckTransactionAnomaly(ctx, 1, 600, "deposit")
	if got := store.countAlerts(AlertUnusualPattern); got != 1 {
		t.Errorf("паттерн-алертов = %d, ожидался 1", got)
	}
	if got := store.countAlerts(AlertLargeTransaction); got != 0 {
		t.Errorf("порог-алертов = %d, ожидалось 0", got)
	}

	// Сумма 5000: срабатывают оба детектора независимо
	svc.CheckTransactionAnomaly(ctx, 1, 5000, "deposit")
	if got := store.countAlerts(AlertUnusualPattern); got != 2 {
		t.Errorf("паттерн-алертов = %d, ожидалось 2", got)
	}
	if got := store.countAlerts(AlertLargeTransaction); got != 1 {
		t.Errorf("порог-алертов = %d, ожидался 1", got)
	}
}

func TestPatternSkippedWithoutHistory(t *testing.T) {
	svc, store := setupDetector(t)

	// Нет истории — нет среднего, паттерн молчит
	svc.CheckTransactionAnomaly(context.Background(), 1, 100, "deposit")
	if got := store.countAlerts(AlertUnusualPattern); got != 0 {
		t.Errorf("паттерн-алертов без истории = %d", got)
	}
}

func betTimesEvery(n int, step time.Duration) []time.Time {
	base := time.Now().Add(-time.Hour)
	times := make([]time.Time, n)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * step)
	}
	return times
}

func TestAutomatedBettingDetection(t *testing.T) {
	svc, store := setupDetector(t)
	ctx := context.Background()

	// Десять ставок ровно раз в секунду: отклонение 0, среднее 1с — бот
	store.betTimes[1] = betTimesEvery(10, time.Second)
	svc.CheckAutomatedBetting(ctx, 1)
	if got := store.countAlerts(AlertAutomatedBetting); got != 1 {
		t.Fatalf("алертов = %d, ожидался 1", got)
	}
}

func TestAutomatedBettingHumanRhythm(t *testing.T) {
	svc, store := setupDetector(t)
	ctx := context.Background()

	// Ровный, но неторопливый ритм: среднее 10с выше потолка
	store.betTimes[1] = betTimesEvery(10, 10*time.Second)
	svc.CheckAutomatedBetting(ctx, 1)
	if got := store.countAlerts(AlertAutomatedBetting); got != 0 {
		t.Errorf("медленный ритм дал %d алертов", got)
	}

	// Быстрый, но рваный ритм: высокое отклонение
	base := time.Now().Add(-time.Hour)
	times := []time.Time{base}
	for i, gap := range []time.Duration{
		time.Second, 4 * time.Second, 500 * time.Millisecond,
		3 * time.Second, 2 * time.Second, 100 * time.Millisecond,
		4 * time.Second, time.Second, 3 * time.Second,
	} {
		times = append(times, times[i].Add(gap))
	}
	store.betTimes[2] = times
	svc.CheckAutomatedBetting(ctx, 2)
	if got := store.countAlerts(AlertAutomatedBetting); got != 0 {
		t.Errorf("рваный ритм дал %d алертов", got)
	}
}

func TestAutomatedBettingTooFewBets(t *testing.T) {
	svc, store := setupDetector(t)

	// Меньше минимума выборки — анализ не проводится
	store.betTimes[1] = betTimesEvery(4, time.Second)
	svc.CheckAutomatedBetting(context.Background(), 1)
	if got := store.countAlerts(AlertAutomatedBetting); got != 0 {
		t.Errorf("короткая выборка дала %d алертов", got)
	}
}

func TestIntervalStats(t *testing.T) {
	base := time.Unix(0, 0)

	// Равномерные интервалы: среднее = шаг, отклонение = 0
	mean, stddev := intervalStats([]time.Time{
		base, base.Add(2 * time.Second), base.Add(4 * time.Second), base.Add(6 * time.Second),
	})
	if mean != 2*time.Second {
		t.Errorf("среднее = %s, ожидалось 2s", mean)
	}
	if stddev != 0 {
		t.Errorf("отклонение = %s, ожидалось 0", stddev)
	}

	// Интервалы 1с и 3с: среднее 2с, отклонение 1с
	mean, stddev = intervalStats([]time.Time{
		base, base.Add(time.Second), base.Add(4 * time.Second),
	})
	if mean != 2*time.Second {
		t.Errorf("среднее = %s, ожидалось 2s", mean)
	}
	if stddev != time.Second {
		t.Errorf("отклонение = %s, ожидалось 1s", stddev)
	}

	// Вырожденные выборки
	if mean, stddev = intervalStats([]time.Time{base}); mean != 0 || stddev != 0 {
		t.Error("одна отметка должна давать нулевую статистику")
	}
	if mean, stddev = intervalStats(nil); mean != 0 || stddev != 0 {
		t.Error("пустая выборка должна давать нулевую статистику")
	}
}
