// Package stream доставляет обновления сессий подключенным игрокам по websocket.
package stream

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client - одно websocket-соединение игрока.
type Client struct {
	PlayerKey string
	Conn      *websocket.Conn
	send      chan []byte
}

const sendBufferSize = 64

// NewClient создает клиента с буферизованной очередью отправки.
func NewClient(playerKey string, conn *websocket.Conn) *Client {
	return &Client{PlayerKey: playerKey, Conn: conn, send: make(chan []byte, sendBufferSize)}
}

// ConnectionManager хранит по одному активному соединению на игрока.
// Новое соединение того же игрока вытесняет старое.
type ConnectionManager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("ConnectionManager"),
	}
}

// Run обрабатывает регистрацию клиентов до отмены ctx, затем закрывает все соединения.
func (m *ConnectionManager) Run(ctx context.Context) {
	m.logger.Info("ConnectionManager started")
	defer close(m.done)
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			if old, ok := m.clients[client.PlayerKey]; ok {
				m.logger.Debug("Replacing existing connection", zap.String("playerKey", client.PlayerKey))
				close(old.send)
				_ = old.Conn.Close()
			}
			m.clients[client.PlayerKey] = client
			m.mu.Unlock()

		case client := <-m.unregister:
			m.mu.Lock()
			// Клиент мог быть уже вытеснен новым соединением
			if current, ok := m.clients[client.PlayerKey]; ok && current == client {
				delete(m.clients, client.PlayerKey)
				close(client.send)
			}
			m.mu.Unlock()

		case <-ctx.Done():
			m.mu.Lock()
			for key, client := range m.clients {
				close(client.send)
				_ = client.Conn.Close()
				delete(m.clients, key)
			}
			m.mu.Unlock()
			m.logger.Info("ConnectionManager stopped")
			return
		}
	}
}

// Register возвращает false, если менеджер уже остановлен.
func (m *ConnectionManager) Register(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *ConnectionManager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// SendToPlayer ставит сообщение в очередь соединения игрока.
// false, если игрок не подключен или его очередь переполнена.
func (m *ConnectionManager) SendToPlayer(playerKey string, message []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[playerKey]
	if !ok {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		m.logger.Warn("Send queue is full, dropping update", zap.String("playerKey", playerKey))
		return false
	}
}

// Online - число подключенных игроков.
func (m *ConnectionManager) Online() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
