package stream_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"idol-server/internal/middleware"
	"idol-server/internal/models"
	"idol-server/internal/stream"
)

func startServer(t *testing.T, manager *stream.ConnectionManager) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if key := c.Query("player"); key != "" {
			c.Set(middleware.PlayerKeyGinKey, key)
		}
		c.Next()
	}, stream.NewWebSocketHandler(manager, nil, zap.NewNop()).ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?player=" + player
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func runManager(t *testing.T) *stream.ConnectionManager {
	t.Helper()
	manager := stream.NewConnectionManager(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Run(ctx)
	return manager
}

func TestWebSocketStream(t *testing.T) {
	t.Run("Обновление доходит до подключенного игрока", func(t *testing.T) {
		manager := runManager(t)
		srv := startServer(t, manager)
		conn := dial(t, srv, "player-1")
		require.Eventually(t, func() bool { return manager.Online() == 1 }, 2*time.Second, 10*time.Millisecond)

		update := models.SessionUpdate{
			Type:      models.SessionUpdateArtifact,
			PlayerKey: "player-1",
			SessionID: uuid.New(),
			Artifact:  "<p>готово</p>",
		}
		body, err := json.Marshal(update)
		require.NoError(t, err)

		forwarder := stream.NewUpdateForwarder(manager, zap.NewNop())
		require.NoError(t, forwarder.Handle(context.Background(), body))

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got models.SessionUpdate
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, update.SessionID, got.SessionID)
		assert.Equal(t, update.Artifact, got.Artifact)
	})

	t.Run("Без идентификатора игрока апгрейд отклоняется", func(t *testing.T) {
		manager := runManager(t)
		srv := startServer(t, manager)
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("Повторное подключение вытесняет старое", func(t *testing.T) {
		manager := runManager(t)
		srv := startServer(t, manager)
		first := dial(t, srv, "player-2")
		require.Eventually(t, func() bool { return manager.Online() == 1 }, 2*time.Second, 10*time.Millisecond)
		second := dial(t, srv, "player-2")

		// старое соединение закрывается сервером
		_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := first.ReadMessage()
		require.Error(t, err)

		assert.True(t, manager.SendToPlayer("player-2", []byte(`{"type":"reply"}`)))
		_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := second.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"reply"}`, string(data))
		assert.Equal(t, 1, manager.Online())
	})
}

func TestUpdateForwarder(t *testing.T) {
	manager := stream.NewConnectionManager(zap.NewNop())
	forwarder := stream.NewUpdateForwarder(manager, zap.NewNop())

	t.Run("Офлайн игрок - сообщение подтверждается", func(t *testing.T) {
		body := `{"type":"reply","player_key":"nobody","session_id":"` + uuid.NewString() + `"}`
		assert.NoError(t, forwarder.Handle(context.Background(), []byte(body)))
	})

	t.Run("Битый JSON", func(t *testing.T) {
		assert.Error(t, forwarder.Handle(context.Background(), []byte("{")))
	})

	t.Run("Нет player_key", func(t *testing.T) {
		body := `{"type":"reply","session_id":"` + uuid.NewString() + `"}`
		assert.Error(t, forwarder.Handle(context.Background(), []byte(body)))
	})
}
