package stream

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"idol-server/internal/middleware"
	"idol-server/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketHandler поднимает websocket для аутентифицированного игрока.
// Проверка токена выполняется middleware.GinAuth до апгрейда.
type WebSocketHandler struct {
	manager  *ConnectionManager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler создает обработчик. Пустой allowedOrigins разрешает любой Origin.
func NewWebSocketHandler(manager *ConnectionManager, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
		logger: logger.Named("WebSocketHandler"),
	}
}

// ServeWS godoc
// @Summary Поток обновлений сессий
// @Tags stream
// @Param token query string true "JWT игрока"
// @Router /api/v1/ws [get]
func (h *WebSocketHandler) ServeWS(c *gin.Context) {
	playerKey := middleware.PlayerKey(c)
	if playerKey == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже записал ответ
		h.logger.Warn("Failed to upgrade connection", zap.String("playerKey", playerKey), zap.Error(err))
		return
	}
	h.logger.Info("WebSocket connection established", zap.String("playerKey", playerKey))

	client := NewClient(playerKey, conn)
	if !h.manager.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	log := h.logger.With(zap.String("playerKey", playerKey))
	go client.writePump(log)
	go client.readPump(h.manager, log)
}

// readPump читает только служебные кадры; сообщения от клиента игнорируются.
func (c *Client) readPump(manager *ConnectionManager, log *zap.Logger) {
	defer func() {
		manager.Unregister(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump отправляет обновления по одному JSON на кадр и пингует клиента.
func (c *Client) writePump(log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
