// Package websocket fans order events out to connected admin dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"label-platform/internal/models"
)

const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"
	EventOrderFailed  = "order.failed"
	EventOrderUpdated = "order.updated"
)

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int64
}

// OrderEvent is what an admin dashboard receives.
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       int64                `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Email         string               `json:"email"`
	Total         decimal.Decimal      `json:"total"`
	Currency      string               `json:"currency"`
	PaymentMethod string               `json:"payment_method"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	OrderStatus   models.OrderStatus   `json:"order_status"`
	At            time.Time            `json:"at"`
}

func NewOrderEvent(kind string, order models.Order) OrderEvent {
	return OrderEvent{
		Type:          kind,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Email:         order.Email,
		Total:         order.Total,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		At:            time.Now().UTC(),
	}
}

type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan OrderEvent

	done   chan struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan OrderEvent, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Publish queues an event without blocking the caller. Events are dropped
// when the hub is backed up.
func (h *Hub) Publish(event OrderEvent) {
	select {
	case h.Broadcast <- event:
	default:
		h.logger.Warn("Order event dropped, hub is busy",
			zap.String("type", event.Type), zap.String("order_number", event.OrderNumber))
	}
}

// Join registers the client. It returns false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters the client; it is a no-op after the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Run owns the client set until ctx is done, then closes every client.
// It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for client := range h.Clients {
			delete(h.Clients, client)
			close(client.Send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.Clients[client] = true
			h.logger.Info("WebSocket client registered", zap.Int64("user_id", client.UserID))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				h.logger.Info("WebSocket client unregistered", zap.Int64("user_id", client.UserID))
			}

		case event := <-h.Broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to marshal order event", zap.Error(err))
				continue
			}

			for client := range h.Clients {
				select {
				case client.Send <- data:
				default:
					// Slow consumer.
					close(client.Send)
					delete(h.Clients, client)
				}
			}
		}
	}
}
