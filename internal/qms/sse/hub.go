package sse

import (
	"fmt"
	"log"
	"sync"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// GlobalHub is the singleton SSE Hub instance
var GlobalHub = NewHub()

// NewHub creates a new SSE Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// PublishWorkUpdate 配料作业级别更新（开工、完成、删除）
func PublishWorkUpdate(workID, batchLot, action string) {
	data := fmt.Sprintf(`{"work_id":"%s","batch_lot":"%s","action":"%s"}`, workID, batchLot, action)
	GlobalHub.Broadcast(Event{
		EventType: "work_update",
		Data:      data,
	})
	log.Printf("[SSE] Published work_update: work=%s batch=%s action=%s", workID, batchLot, action)
}

// PublishJudgment 一行粉末判定结果（车间大屏实时刷新）
func PublishJudgment(workID, powderName string, passed bool, progressPercent float64) {
	data := fmt.Sprintf(`{"work_id":"%s","powder_name":"%s","passed":%t,"progress":%.1f}`,
		workID, powderName, passed, progressPercent)
	GlobalHub.Broadcast(Event{
		EventType: "judgment",
		Data:      data,
	})
	log.Printf("[SSE] Published judgment: work=%s powder=%s passed=%t", workID, powderName, passed)
}
