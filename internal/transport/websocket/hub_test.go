package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"medbook/internal/domain"
	"medbook/pkg/auth"
)

type fakeTokens struct{}

func (fakeTokens) Parse(token string) (*auth.Claims, error) {
	if token != "valid" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: 42, Role: string(domain.UserRolePatient)}, nil
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(fakeTokens{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws/notifications", hub.HandleWebSocket)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications" + query
}

func waitConnected(t *testing.T, hub *Hub, userID int64, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.IsUserConnected(userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("IsUserConnected(%d) != %v", userID, want)
}

func TestHub_Unauthorized(t *testing.T) {
	_, srv := newTestServer(t)

	for _, query := range []string{"", "?token=bad"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
		if err == nil {
			t.Fatalf("подключение %q должно быть отклонено", query)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("ожидался 401 для %q, получено %v", query, resp)
		}
	}
}

func TestHub_PushNotification(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=valid"), nil)
	if err != nil {
		t.Fatalf("ошибка подключения: %v", err)
	}
	defer conn.Close()

	waitConnected(t, hub, 42, true)

	hub.PushNotification(domain.Notification{ID: 1, UserID: 7, Title: "чужое"})
	hub.PushNotification(domain.Notification{ID: 2, UserID: 42, Title: "Запись подтверждена"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	var msg struct {
		Type string              `json:"type"`
		Data domain.Notification `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	if msg.Type != MessageNotification || msg.Data.ID != 2 {
		t.Errorf("получено %+v, ожидалось уведомление 2", msg)
	}
}

func TestHub_PingPong(t *testing.T) {
	hub, srv := newTestServer(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer valid")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	if err != nil {
		t.Fatalf("ошибка подключения: %v", err)
	}

	waitConnected(t, hub, 42, true)

	if err := conn.WriteJSON(Message{Type: MessagePing}); err != nil {
		t.Fatalf("ошибка отправки: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if reply.Type != MessagePong {
		t.Errorf("ожидался pong, получено %q", reply.Type)
	}

	conn.Close()
	waitConnected(t, hub, 42, false)
}
