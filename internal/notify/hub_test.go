package notify

import (
	"testing"
	"time"
)

func drain(c *Client) []Event {
	var events []Event
	for {
		select {
		case e := <-c.Events:
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestSendToFanOut(t *testing.T) {
	hub := NewHub(8)

	// Два подключения одного пользователя (две вкладки)
	c1 := hub.Register(7)
	c2 := hub.Register(7)
	other := hub.Register(8)

	hub.SendTo(7, NewDailyReward(1, 100))

	if got := drain(c1); len(got) != 1 || got[0].Type != EventDailyReward {
		t.Errorf("первое подключение: получено %d событий, ожидалось 1", len(got))
	}
	if got := drain(c2); len(got) != 1 {
		t.Errorf("второе подключение: получено %d событий, ожидалось 1", len(got))
	}
	if got := drain(other); len(got) != 0 {
		t.Errorf("чужое подключение получило %d событий, ожидалось 0", len(got))
	}
}

func TestSendToWithoutConnections(t *testing.T) {
	hub := NewHub(8)
	// Не должно паниковать и блокироваться
	hub.SendTo(42, NewSystem("тест"))
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(8)
	c1 := hub.Register(1)
	c2 := hub.Register(2)

	hub.Broadcast(NewRoundCompleted(5, "red"))

	for i, c := range []*Client{c1, c2} {
		got := drain(c)
		if len(got) != 1 || got[0].Type != EventRoundCompleted {
			t.Errorf("клиент %d: получено %d событий, ожидалось 1", i, len(got))
		}
	}
}

func TestSlowClientDropsEvents(t *testing.T) {
	hub := NewHub(1)
	c := hub.Register(1)

	done := make(chan struct{})
	go func() {
		// Буфер на одно событие: второе должно быть отброшено,
		// отправитель не блокируется
		hub.SendTo(1, NewSystem("первое"))
		hub.SendTo(1, NewSystem("второе"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("отправка заблокировалась на медленном клиенте")
	}

	if got := drain(c); len(got) != 1 {
		t.Errorf("получено %d событий, ожидалось 1 (второе отброшено)", len(got))
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewHub(8)
	c := hub.Register(1)

	hub.Unregister(c)

	if _, open := <-c.Events; open {
		t.Error("канал клиента не закрыт после Unregister")
	}

	// Повторный Unregister безопасен
	hub.Unregister(c)

	// Отправка после отключения — событие молча теряется
	hub.SendTo(1, NewSystem("после отключения"))
}
