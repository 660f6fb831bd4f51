package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/recipe-ai/internal/ingredients"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDocumentAdded is sent after an ingredient list is stored
	EventTypeDocumentAdded = EventType(ingredients.EventDocumentAdded)
	// EventTypeDocumentsDeleted is sent after a recipe's documents are removed
	EventTypeDocumentsDeleted = EventType(ingredients.EventDocumentsDeleted)
	// EventTypeCollectionCleared is sent after the collection is emptied
	EventTypeCollectionCleared = EventType(ingredients.EventCollectionCleared)
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string               `json:"type"`
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest limits the events a client receives. An empty list means all.
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// HubConfig contains configuration for the WebSocket hub
type HubConfig struct {
	Enabled              bool     `yaml:"enabled" mapstructure:"enabled"`
	MaxConnections       int      `yaml:"max_connections" mapstructure:"max_connections"`
	SendBuffer           int      `yaml:"send_buffer" mapstructure:"send_buffer"`
	AllowedOrigins       []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	BroadcastConnections bool     `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalMessages      int64     `json:"total_messages"`
	TotalBroadcasts    int64     `json:"total_broadcasts"`
	DroppedEvents      int64     `json:"dropped_events"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	IP          string
	UserAgent   string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan Event

	mu           sync.RWMutex
	subscription *SubscriptionRequest
}

func (c *Client) setSubscription(sub *SubscriptionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscription = sub
}

// wants reports whether the client's subscription includes eventType
func (c *Client) wants(eventType EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscription == nil || len(c.subscription.Events) == 0 {
		return true
	}
	for _, t := range c.subscription.Events {
		if t == eventType {
			return true
		}
	}
	return false
}
