package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

type OrderStore interface {
	List(ctx context.Context, q store.ListQuery) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (models.Order, error)
	UpdateFulfilment(ctx context.Context, id int64, fields map[string]any) (models.Order, error)
}

type OrderHandler struct {
	Orders OrderStore
	Events EventPublisher
	Logger *zap.Logger
}

func NewOrderHandler(orders OrderStore, events EventPublisher, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{Orders: orders, Events: events, Logger: logger}
}

// List is the admin order list, newest first.
func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.Orders.List(c.Request.Context(),
		listQuery(c, "payment_status", "order_status", "email", "payment_method"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type UpdateOrderRequest struct {
	OrderStatus    *string `json:"order_status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
	TrackingNumber *string `json:"tracking_number" binding:"omitempty,max=200"`
	Notes          *string `json:"notes" binding:"omitempty,max=2000"`
}

// Update edits fulfilment fields. Payment fields only move through the
// payment flows.
func (h *OrderHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := map[string]any{}
	set(fields, "order_status", req.OrderStatus)
	set(fields, "tracking_number", req.TrackingNumber)
	set(fields, "notes", req.Notes)

	order, err := h.Orders.UpdateFulfilment(c.Request.Context(), id, fields)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if h.Events != nil {
		h.Events.Publish(ws.NewOrderEvent(ws.EventOrderUpdated, order))
	}
	c.JSON(http.StatusOK, order)
}

type LookupQuery struct {
	OrderNumber string `form:"order_number" binding:"required"`
	Email       string `form:"email" binding:"required,email"`
}

// Lookup lets a guest find their order. A wrong email reads as not found.
func (h *OrderHandler) Lookup(c *gin.Context) {
	var q LookupQuery
	if !bindQuery(c, &q) {
		return
	}

	order, err := h.Orders.GetOrderByNumber(c.Request.Context(), strings.TrimSpace(q.OrderNumber))
	if err == nil && !strings.EqualFold(order.Email, strings.TrimSpace(q.Email)) {
		err = store.ErrNotFound
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// MyOrders lists the caller's own orders.
func (h *OrderHandler) MyOrders(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	q := listQuery(c, "payment_status", "order_status")
	q.Filters["user_id"] = strconv.FormatInt(*userID, 10)

	orders, err := h.Orders.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}
