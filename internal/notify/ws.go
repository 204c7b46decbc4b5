// Package notify — ws.go связывает реестр подключений с WebSocket-транспортом.
// Каждое подключение держит две горутины: writePump гонит события из канала
// клиента в сокет, readPump принимает текстовые сообщения чата.
package notify

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Период ping-сообщений для поддержания соединения
	pingPeriod = 50 * time.Second
	// Дедлайн ожидания pong от клиента
	pongWait = 60 * time.Second
	// Дедлайн записи одного сообщения
	writeWait = 10 * time.Second
	// Максимальная длина входящего сообщения чата
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Проверку Origin выполняет внешний reverse-proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler апгрейдит HTTP-запрос до WebSocket и регистрирует клиента в хабе.
// Идентификация берётся из контекста gin (её кладёт JWT-middleware).
func WSHandler(registry Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64("userID")
		username := c.GetString("username")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("Не удалось установить WebSocket-соединение")
			return
		}

		client := registry.Register(userID)

		go writePump(conn, client, registry)
		go readPump(conn, client, registry, username)
	}
}

// writePump отправляет события из канала клиента в сокет.
// Завершается при закрытии канала (Unregister) или ошибке записи.
func writePump(conn *websocket.Conn, client *Client, registry Registry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				// Канал закрыт — клиент снят с учёта
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				registry.Unregister(client)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				registry.Unregister(client)
				return
			}
		}
	}
}

// readPump принимает текстовые сообщения и транслирует их в чат.
// При любой ошибке чтения подключение закрывается.
func readPump(conn *websocket.Conn, client *Client, registry Registry, username string) {
	defer func() {
		registry.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}
		registry.Broadcast(NewChat(client.UserID, username, string(data)))
	}
}
