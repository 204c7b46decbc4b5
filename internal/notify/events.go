// Package notify — events.go описывает закрытый набор событий,
// которые сервис отправляет подключённым клиентам.
// Каждому имени события соответствует своя структура полезной нагрузки
// и свой конструктор — обработчики не собирают события из «голых» map.
package notify

import "time"

// Типы событий. Новые события добавляются сюда, а не в виде строк по месту.
const (
	EventChat                = "chat"                 // Сообщение чата
	EventGameResult          = "game_result"          // Личный результат раунда
	EventRoundCompleted      = "round_completed"      // Раунд завершён (всем)
	EventUserWin             = "user_win"             // Публичное объявление выигрыша
	EventDailyReward         = "daily_reward"         // Ежедневное начисление
	EventNewTransaction      = "new_transaction"      // Создана заявка на депозит/вывод
	EventTransactionApproved = "transaction_approved" // Депозит одобрен
	EventWithdrawalApproved  = "withdrawal_approved"  // Вывод одобрен
	EventSettingUpdated      = "setting_updated"      // Админ изменил план подписки
	EventSystem              = "system"               // Системное сообщение
)

// Event — одно событие для доставки клиенту.
// Payload всегда одна из структур ниже, соответствующая Type.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ChatPayload — сообщение общего чата.
type ChatPayload struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// GameResultPayload — личный результат пользователя в раунде.
type GameResultPayload struct {
	RoundID int64  `json:"round_id"`
	Result  string `json:"result"` // "win" или "lose"
	Amount  int64  `json:"amount"` // Сумма выигрыша (0 при проигрыше)
}

// RoundCompletedPayload — раунд завершён, объявлен победивший исход.
type RoundCompletedPayload struct {
	RoundID int64  `json:"round_id"`
	Winner  string `json:"winner"`
}

// UserWinPayload — публичное объявление о выигрыше.
type UserWinPayload struct {
	UserID  int64 `json:"user_id"`
	RoundID int64 `json:"round_id"`
	Amount  int64 `json:"amount"`
}

// DailyRewardPayload — начислен ежедневный бонус подписки.
type DailyRewardPayload struct {
	SubscriptionID int64 `json:"subscription_id"`
	Amount         int64 `json:"amount"`
}

// TransactionPayload — данные транзакции для событий new_transaction,
// transaction_approved и withdrawal_approved.
type TransactionPayload struct {
	TransactionID int64  `json:"transaction_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
}

// SettingUpdatedPayload — админ изменил каталог планов подписки.
type SettingUpdatedPayload struct {
	SubscriptionID int64  `json:"subscription_id"`
	Name           string `json:"name"`
}

// SystemPayload — произвольное системное сообщение.
type SystemPayload struct {
	Message string `json:"message"`
}

// NewChat создаёт событие сообщения чата.
func NewChat(userID int64, username, text string) Event {
	return Event{Type: EventChat, Payload: ChatPayload{
		UserID: userID, Username: username, Text: text, SentAt: time.Now().UTC(),
	}}
}

// NewGameResult создаёт личное событие результата раунда.
func NewGameResult(roundID int64, result string, amount int64) Event {
	return Event{Type: EventGameResult, Payload: GameResultPayload{
		RoundID: roundID, Result: result, Amount: amount,
	}}
}

// NewRoundCompleted создаёт широковещательное событие завершения раунда.
func NewRoundCompleted(roundID int64, winner string) Event {
	return Event{Type: EventRoundCompleted, Payload: RoundCompletedPayload{
		RoundID: roundID, Winner: winner,
	}}
}

// NewUserWin создаёт публичное объявление о выигрыше.
func NewUserWin(userID, roundID, amount int64) Event {
	return Event{Type: EventUserWin, Payload: UserWinPayload{
		UserID: userID, RoundID: roundID, Amount: amount,
	}}
}

// NewDailyReward создаёт событие ежедневного начисления.
func NewDailyReward(subscriptionID, amount int64) Event {
	return Event{Type: EventDailyReward, Payload: DailyRewardPayload{
		SubscriptionID: subscriptionID, Amount: amount,
	}}
}

// NewTransactionCreated создаёт событие о новой заявке (pending).
func NewTransactionCreated(txID int64, txType string, amount int64) Event {
	return Event{Type: EventNewTransaction, Payload: TransactionPayload{
		TransactionID: txID, Type: txType, Status: "pending", Amount: amount,
	}}
}

// NewTransactionApproved создаёт событие об одобренном депозите.
func NewTransactionApproved(txID int64, txType string, amount int64) Event {
	return Event{Type: EventTransactionApproved, Payload: TransactionPayload{
		TransactionID: txID, Type: txType, Status: "completed", Amount: amount,
	}}
}

// NewWithdrawalApproved создаёт событие об одобренном выводе.
func NewWithdrawalApproved(txID int64, amount int64) Event {
	return Event{Type: EventWithdrawalApproved, Payload: TransactionPayload{
		TransactionID: txID, Type: "withdrawal", Status: "completed", Amount: amount,
	}}
}

// NewSettingUpdated создаёт событие об изменении плана подписки.
func NewSettingUpdated(subscriptionID int64, name string) Event {
	return Event{Type: EventSettingUpdated, Payload: SettingUpdatedPayload{
		SubscriptionID: subscriptionID, Name: name,
	}}
}

// NewSystem создаёт системное сообщение.
func NewSystem(message string) Event {
	return Event{Type: EventSystem, Payload: SystemPayload{Message: message}}
}
