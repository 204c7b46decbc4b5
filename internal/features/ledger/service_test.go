package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"betting-service/internal/common"
	"betting-service/internal/notify"
)

// memStore — in-memory реализация Store с той же семантикой холдов
// и статусов, что у PostgreSQL-репозитория.
type memStore struct {
	wallets map[int64]*Wallet
	txs     []*Transaction
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{wallets: make(map[int64]*Wallet)}
}

func (m *memStore) CreateWallet(_ context.Context, userID int64) error {
	if _, ok := m.wallets[userID]; ok {
		return nil
	}
	m.nextID++
	m.wallets[userID] = &Wallet{ID: m.nextID, UserID: userID}
	return nil
}

func (m *memStore) GetWallet(_ context.Context, userID int64) (*Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, common.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memStore) append(userID, amount int64, txType, status, description string) *Transaction {
	m.nextID++
	t := &Transaction{
		ID: m.nextID, UserID: userID, Amount: amount,
		Type: txType, Status: status, Description: description,
		CreatedAt: time.Now(),
	}
	m.txs = append(m.txs, t)
	cp := *t
	return &cp
}

func (m *memStore) Credit(_ context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, common.ErrWalletNotFound
	}
	w.Balance += amount
	return m.append(userID, amount, txType, StatusCompleted, description), nil
}

func (m *memStore) Debit(_ context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, common.ErrWalletNotFound
	}
	if w.Balance-w.Held < amount {
		return nil, common.ErrInsufficientBalance
	}
	w.Balance -= amount
	return m.append(userID, -amount, txType, StatusCompleted, description), nil
}

func (m *memStore) CreatePending(_ context.Context, userID, amount int64, txType, description string) (*Transaction, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, common.ErrWalletNotFound
	}
	if amount < 0 {
		if w.Balance-w.Held < -amount {
			return nil, common.ErrInsufficientBalance
		}
		w.Held += -amount
	}
	return m.append(userID, amount, txType, StatusPending, description), nil
}

func (m *memStore) Settle(_ context.Context, txID int64, status string) (*Transaction, error) {
	for _, t := range m.txs {
		if t.ID != txID {
			continue
		}
		if t.Status != StatusPending {
			return nil, common.ErrTransactionNotPending
		}
		t.Status = status
		w := m.wallets[t.UserID]
		switch {
		case status == StatusCompleted && t.Amount > 0:
			w.Balance += t.Amount
		case status == StatusCompleted && t.Amount < 0:
			w.Balance += t.Amount
			w.Held -= -t.Amount
		case status == StatusRejected && t.Amount < 0:
			w.Held -= -t.Amount
		}
		cp := *t
		return &cp, nil
	}
	return nil, common.ErrTransactionNotFound
}

func (m *memStore) Transactions(_ context.Context, userID int64, limit int) ([]*Transaction, error) {
	var out []*Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].UserID == userID {
			cp := *m.txs[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// completedSum — сумма всех completed-транзакций пользователя.
func (m *memStore) completedSum(userID int64) int64 {
	var sum int64
	for _, t := range m.txs {
		if t.UserID == userID && t.Status == StatusCompleted {
			sum += t.Amount
		}
	}
	return sum
}

// fakeReverser фиксирует возвраты лимита вывода по подписке.
type fakeReverser struct {
	calls []struct {
		userID int64
		amount int64
	}
}

func (f *fakeReverser) ReleaseWithdrawal(_ context.Context, userID, amount int64) error {
	f.calls = append(f.calls, struct {
		userID int64
		amount int64
	}{userID, amount})
	return nil
}

func setupLedger(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := NewService(store, notify.NewHub(8), nil, nil)
	if err := svc.CreateWallet(context.Background(), 1); err != nil {
		t.Fatalf("создание кошелька: %v", err)
	}
	return svc, store
}

func TestBalanceEqualsCompletedSum(t *testing.T) {
	svc, store := setupLedger(t)
	ctx := context.Background()

	ops := []struct {
		credit bool
		amount int64
	}{
		{true, 1000}, {false, 300}, {true, 250}, {false, 150}, {true, 5},
	}
	for _, op := range ops {
		var err error
		if op.credit {
			_, err = svc.Credit(ctx, 1, op.amount, TxTypeDeposit, "тест")
		} else {
			_, err = svc.Debit(ctx, 1, op.amount, TxTypeGameBet, "тест")
		}
		if err != nil {
			t.Fatalf("операция %+v: %v", op, err)
		}
	}

	w, err := svc.GetWallet(ctx, 1)
	if err != nil {
		t.Fatalf("получение кошелька: %v", err)
	}
	if w.Balance != 805 {
		t.Errorf("баланс = %d, ожидалось 805", w.Balance)
	}
	if sum := store.completedSum(1); w.Balance != sum {
		t.Errorf("баланс %d не равен сумме completed-транзакций %d", w.Balance, sum)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	svc, store := setupLedger(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, 1, 100, TxTypeDeposit, "тест"); err != nil {
		t.Fatalf("пополнение: %v", err)
	}
	before := len(store.txs)

	_, err := svc.Debit(ctx, 1, 101, TxTypeGameBet, "тест")
	if !errors.Is(err, common.ErrInsufficientBalance) {
		t.Fatalf("ожидалась ErrInsufficientBalance, получено %v", err)
	}

	// Отказ не оставляет следа ни в балансе, ни в журнале
	if len(store.txs) != before {
		t.Error("неуспешное списание записало транзакцию")
	}
	w, _ := svc.GetWallet(ctx, 1)
	if w.Balance != 100 {
		t.Errorf("баланс = %d, ожидалось 100", w.Balance)
	}
}

func TestInvalidAmounts(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		if _, err := svc.Credit(ctx, 1, amount, TxTypeDeposit, ""); !errors.Is(err, common.ErrInvalidAmount) {
			t.Errorf("Credit(%d): ожидалась ErrInvalidAmount, получено %v", amount, err)
		}
		if _, err := svc.Debit(ctx, 1, amount, TxTypeGameBet, ""); !errors.Is(err, common.ErrInvalidAmount) {
			t.Errorf("Debit(%d): ожидалась ErrInvalidAmount, получено %v", amount, err)
		}
	}
}

func TestWithdrawalHoldLifecycle(t *testing.T) {
	svc, store := setupLedger(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, 1, 1000, TxTypeDeposit, "тест"); err != nil {
		t.Fatalf("пополнение: %v", err)
	}

	txn, err := svc.RequestTransaction(ctx, 1, 400, TxTypeWithdrawal, "вывод")
	if err != nil {
		t.Fatalf("заявка на вывод: %v", err)
	}
	if txn.Amount != -400 {
		t.Errorf("сумма заявки = %d, в журнале вывод должен быть отрицательным", txn.Amount)
	}

	// Заявка не трогает баланс, но резервирует сумму
	w, _ := svc.GetWallet(ctx, 1)
	if w.Balance != 1000 || w.Held != 400 {
		t.Errorf("после заявки: balance=%d held=%d, ожидалось 1000/400", w.Balance, w.Held)
	}
	if w.Available() != 600 {
		t.Errorf("доступно %d, ожидалось 600", w.Available())
	}

	// Зарезервированное нельзя потратить второй заявкой
	if _, err := svc.RequestTransaction(ctx, 1, 700, TxTypeWithdrawal, "ещё"); !errors.Is(err, common.ErrInsufficientBalance) {
		t.Fatalf("ожидалась ErrInsufficientBalance, получено %v", err)
	}

	// Одобрение: списание и снятие холда
	if _, err := svc.SettleTransaction(ctx, txn.ID, StatusCompleted); err != nil {
		t.Fatalf("одобрение: %v", err)
	}
	w, _ = svc.GetWallet(ctx, 1)
	if w.Balance != 600 || w.Held != 0 {
		t.Errorf("после одобрения: balance=%d held=%d, ожидалось 600/0", w.Balance, w.Held)
	}
	if sum := store.completedSum(1); w.Balance != sum {
		t.Errorf("баланс %d не равен сумме completed-транзакций %d", w.Balance, sum)
	}

	// Повторное одобрение той же заявки — конфликт, баланс не меняется
	if _, err := svc.SettleTransaction(ctx, txn.ID, StatusCompleted); !errors.Is(err, common.ErrTransactionNotPending) {
		t.Fatalf("ожидалась ErrTransactionNotPending, получено %v", err)
	}
	w, _ = svc.GetWallet(ctx, 1)
	if w.Balance != 600 {
		t.Errorf("повторное одобрение изменило баланс: %d", w.Balance)
	}
}

func TestWithdrawalRejectionReleasesHold(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()

	svc.Credit(ctx, 1, 500, TxTypeDeposit, "тест")
	txn, err := svc.RequestTransaction(ctx, 1, 200, TxTypeWithdrawal, "вывод")
	if err != nil {
		t.Fatalf("заявка: %v", err)
	}

	if _, err := svc.SettleTransaction(ctx, txn.ID, StatusRejected); err != nil {
		t.Fatalf("отклонение: %v", err)
	}

	w, _ := svc.GetWallet(ctx, 1)
	if w.Balance != 500 || w.Held != 0 {
		t.Errorf("после отклонения: balance=%d held=%d, ожидалось 500/0", w.Balance, w.Held)
	}
}

func TestWithdrawalRejectionRestoresAllowance(t *testing.T) {
	store := newMemStore()
	reverser := &fakeReverser{}
	svc := NewService(store, notify.NewHub(8), nil, reverser)
	ctx := context.Background()

	if err := svc.CreateWallet(ctx, 1); err != nil {
		t.Fatalf("создание кошелька: %v", err)
	}
	svc.Credit(ctx, 1, 500, TxTypeDeposit, "тест")

	txn, err := svc.RequestTransaction(ctx, 1, 200, TxTypeWithdrawal, "вывод")
	if err != nil {
		t.Fatalf("заявка: %v", err)
	}

	// Отклонение возвращает зарезервированный лимит подписки
	if _, err := svc.SettleTransaction(ctx, txn.ID, StatusRejected); err != nil {
		t.Fatalf("отклонение: %v", err)
	}
	if len(reverser.calls) != 1 {
		t.Fatalf("возвратов лимита %d, ожидался один", len(reverser.calls))
	}
	if c := reverser.calls[0]; c.userID != 1 || c.amount != 200 {
		t.Errorf("возврат лимита user=%d amount=%d, ожидалось 1/200", c.userID, c.amount)
	}

	// Одобренный вывод лимит не возвращает
	txn2, err := svc.RequestTransaction(ctx, 1, 100, TxTypeWithdrawal, "вывод")
	if err != nil {
		t.Fatalf("вторая заявка: %v", err)
	}
	if _, err := svc.SettleTransaction(ctx, txn2.ID, StatusCompleted); err != nil {
		t.Fatalf("одобрение: %v", err)
	}
	if len(reverser.calls) != 1 {
		t.Errorf("одобренный вывод вернул лимит: %d возвратов", len(reverser.calls))
	}
}

func TestDepositAppliesOnApproval(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()

	txn, err := svc.RequestTransaction(ctx, 1, 300, TxTypeDeposit, "депозит")
	if err != nil {
		t.Fatalf("заявка: %v", err)
	}

	// До одобрения депозит не виден в балансе
	w, _ := svc.GetWallet(ctx, 1)
	if w.Balance != 0 || w.Held != 0 {
		t.Errorf("до одобрения: balance=%d held=%d, ожидалось 0/0", w.Balance, w.Held)
	}

	if _, err := svc.SettleTransaction(ctx, txn.ID, StatusCompleted); err != nil {
		t.Fatalf("одобрение: %v", err)
	}
	w, _ = svc.GetWallet(ctx, 1)
	if w.Balance != 300 {
		t.Errorf("после одобрения баланс = %d, ожидалось 300", w.Balance)
	}
}

func TestRequestTransactionValidation(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()

	if _, err := svc.RequestTransaction(ctx, 1, 0, TxTypeDeposit, ""); !errors.Is(err, common.ErrInvalidAmount) {
		t.Errorf("нулевая сумма: ожидалась ErrInvalidAmount, получено %v", err)
	}
	if _, err := svc.RequestTransaction(ctx, 1, 100, TxTypeGameBet, ""); !errors.Is(err, common.ErrInvalidAmount) {
		t.Errorf("недопустимый тип заявки: ожидалась ErrInvalidAmount, получено %v", err)
	}
}
