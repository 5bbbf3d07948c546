package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/xtrntr/cryptopro/internal/models"
)

const (
	writeTimeout = 5 * time.Second
	outboxSize   = 256
)

// Message is the envelope sent to feed subscribers
type Message struct {
	Type   string         `json:"type"` // "prices" or "trade"
	Prices map[string]any `json:"prices,omitempty"`
	Trade  *Trade         `json:"trade,omitempty"`
}

// Trade is the public view of an executed trade
type Trade struct {
	ID         int     `json:"id"`
	TelegramID int64   `json:"telegram_id"`
	Type       string  `json:"type"`
	Crypto     string  `json:"crypto"`
	Amount     float64 `json:"amount"`
	Price      float64 `json:"price"`
	Total      float64 `json:"total"`
	Timestamp  string  `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans trades and price snapshots out to WebSocket clients
type Hub struct {
	upgrader websocket.Upgrader
	prices   models.PriceTable
	log      *logrus.Entry

	mu      sync.RWMutex
	clients map[*client]bool

	outbox chan Message // trades waiting for Run to fan out
}

// NewHub creates a hub that announces the given price table
func NewHub(prices models.PriceTable, log *logrus.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // The feed is public and read-only
			},
		},
		prices:  prices,
		log:     log.WithField("component", "feed"),
		clients: make(map[*client]bool),
		outbox:  make(chan Message, outboxSize),
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the peer
// goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	// Send initial price snapshot
	if data, err := h.pricesMessage(); err == nil {
		if err := c.write(data); err != nil {
			h.remove(c)
			return
		}
	}

	// Keep connection alive and handle disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		c.conn.Close()
	}
	h.mu.Unlock()
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			h.log.WithError(err).Debug("dropping feed client")
			h.remove(c)
		}
	}
	return nil
}

// TradeExecuted queues a committed trade for Run to announce. It never
// waits on clients; when the queue is full the trade is dropped from the feed.
func (h *Hub) TradeExecuted(ctx context.Context, acct models.Account, entry models.LedgerEntry) error {
	msg := Message{Type: "trade", Trade: &Trade{
		ID:         entry.ID,
		TelegramID: acct.TelegramID,
		Type:       string(entry.Type),
		Crypto:     string(entry.Asset),
		Amount:     entry.Amount.InexactFloat64(),
		Price:      entry.Price.InexactFloat64(),
		Total:      entry.Total.InexactFloat64(),
		Timestamp:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}}
	select {
	case h.outbox <- msg:
	default:
		h.log.WithField("entry_id", entry.ID).Warn("feed outbox full, dropping trade")
	}
	return nil
}

func (h *Hub) pricesMessage() ([]byte, error) {
	return json.Marshal(h.snapshot())
}

func (h *Hub) snapshot() Message {
	prices := make(map[string]any, len(h.prices))
	for a, info := range h.prices {
		prices[string(a)] = map[string]any{"name": info.Name, "price": info.Price.InexactFloat64()}
	}
	return Message{Type: "prices", Prices: prices}
}

// Run fans out queued trades and broadcasts the price table every interval
// until ctx is done
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.outbox:
			if err := h.broadcast(msg); err != nil {
				h.log.WithError(err).Warn("failed to broadcast trade")
			}
		case <-ticker.C:
			if err := h.broadcast(h.snapshot()); err != nil {
				h.log.WithError(err).Warn("failed to broadcast prices")
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}
