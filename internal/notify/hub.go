// Package notify — hub.go реализует реестр подключений и fan-out событий.
// Реестр абстрагирован интерфейсом Registry: в одном инстансе он живёт
// в памяти, при горизонтальном масштабировании его можно заменить
// брокером pub/sub без изменения вызывающего кода.
package notify

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Registry — реестр подключённых клиентов.
// Отправка всегда best-effort: медленный или отключившийся клиент
// не должен тормозить начисления и расчёт раундов.
type Registry interface {
	// Register регистрирует нового клиента для пользователя.
	// Один пользователь может держать несколько подключений (вкладок).
	Register(userID int64) *Client
	// Unregister снимает клиента с учёта и закрывает его канал.
	Unregister(c *Client)
	// SendTo доставляет событие всем подключениям одного пользователя.
	SendTo(userID int64, event Event)
	// Broadcast доставляет событие всем подключённым клиентам.
	Broadcast(event Event)
}

// Client — одно подключение (одна WebSocket-сессия).
type Client struct {
	ID     uuid.UUID   // Уникальный ID подключения
	UserID int64       // Владелец подключения
	Events chan Event  // Буферизованный канал исходящих событий
}

// Hub — реестр подключений в памяти процесса.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[uuid.UUID]*Client // userID → подключения
	buffer  int                             // Размер буфера канала клиента
}

// NewHub создаёт реестр с заданным размером буфера на клиента.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		clients: make(map[int64]map[uuid.UUID]*Client),
		buffer:  buffer,
	}
}

// Register регистрирует нового клиента.
func (h *Hub) Register(userID int64) *Client {
	c := &Client{
		ID:     uuid.New(),
		UserID: userID,
		Events: make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[uuid.UUID]*Client)
	}
	h.clients[userID][c.ID] = c

	log.WithFields(log.Fields{
		"user_id":   userID,
		"client_id": c.ID,
	}).Debug("Клиент подключён")
	return c
}

// Unregister снимает клиента с учёта и закрывает его канал.
// Повторный вызов для уже снятого клиента безопасен.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := conns[c.ID]; !ok {
		return
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.Events)

	log.WithFields(log.Fields{
		"user_id":   c.UserID,
		"client_id": c.ID,
	}).Debug("Клиент отключён")
}

// SendTo доставляет событие всем подключениям одного пользователя.
// Если у пользователя нет подключений — событие молча теряется.
func (h *Hub) SendTo(userID int64, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients[userID] {
		h.deliver(c, event)
	}
}

// Broadcast доставляет событие всем подключённым клиентам.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.clients {
		for _, c := range conns {
			h.deliver(c, event)
		}
	}
}

// deliver кладёт событие в канал клиента без блокировки.
// Переполненный буфер означает медленного клиента — событие отбрасывается.
func (h *Hub) deliver(c *Client, event Event) {
	select {
	case c.Events <- event:
	default:
		log.WithFields(log.Fields{
			"user_id":   c.UserID,
			"client_id": c.ID,
			"event":     event.Type,
		}).Warn("Буфер клиента переполнен, событие отброшено")
	}
}
