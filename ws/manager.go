package ws

import (
	"context"
	"sync"

	"disaster_backend/internal/logger"
)

// WebSocketManager - hub с подписками по топикам. Топик = имя события
// (new_flood, report_status_changed, ...).
type WebSocketManager struct {
	clients    map[*Client]struct{}
	topics     map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию клиентов до отмены ctx
func (manager *WebSocketManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(manager.done)
			manager.closeAll()
			return

		case client := <-manager.register:
			manager.mu.Lock()
			manager.clients[client] = struct{}{}
			total := len(manager.clients)
			manager.mu.Unlock()
			logger.Debug("WebSocket client registered", "client_id", client.ID, "actor_id", client.ActorID, "total", total)

		case client := <-manager.unregister:
			manager.remove(client)
		}
	}
}

func (manager *WebSocketManager) remove(client *Client) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if _, ok := manager.clients[client]; !ok {
		return
	}
	delete(manager.clients, client)
	for topic, subs := range manager.topics {
		delete(subs, client)
		if len(subs) == 0 {
			delete(manager.topics, topic)
		}
	}
	close(client.Send)
	logger.Debug("WebSocket client unregistered", "client_id", client.ID, "total", len(manager.clients))
}

// leave не блокируется после остановки hub
func (manager *WebSocketManager) leave(client *Client) {
	select {
	case manager.unregister <- client:
	case <-manager.done:
	}
}

// join возвращает false, если hub уже остановлен
func (manager *WebSocketManager) join(client *Client) bool {
	select {
	case manager.register <- client:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *WebSocketManager) closeAll() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for client := range manager.clients {
		close(client.Send)
	}
	manager.clients = make(map[*Client]struct{})
	manager.topics = make(map[string]map[*Client]struct{})
}

func (manager *WebSocketManager) Subscribe(client *Client, topics ...string) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if _, ok := manager.clients[client]; !ok {
		return
	}
	for _, topic := range topics {
		subs, ok := manager.topics[topic]
		if !ok {
			subs = make(map[*Client]struct{})
			manager.topics[topic] = subs
		}
		subs[client] = struct{}{}
	}
}

func (manager *WebSocketManager) Unsubscribe(client *Client, topics ...string) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for _, topic := range topics {
		if subs, ok := manager.topics[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(manager.topics, topic)
			}
		}
	}
}

// BroadcastToTopic отправляет сообщение подписчикам топика.
// Медленный клиент с полным буфером отключается.
func (manager *WebSocketManager) BroadcastToTopic(topic string, message any) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for client := range manager.topics[topic] {
		select {
		case client.Send <- message:
		default:
			logger.Warn("WebSocket client dropped, send buffer full", "client_id", client.ID)
			go manager.leave(client)
		}
	}
}

// GetClientCount возвращает количество подключенных клиентов
func (manager *WebSocketManager) GetClientCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.clients)
}

func (manager *WebSocketManager) SubscriberCount(topic string) int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.topics[topic])
}
