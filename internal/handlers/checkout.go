package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/checkout"
	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (models.Order, error)
}

// EventPublisher is the admin live feed.
type EventPublisher interface {
	Publish(event ws.OrderEvent)
}

type CheckoutHandler struct {
	Placer OrderPlacer
	Events EventPublisher
	Logger *zap.Logger
}

func NewCheckoutHandler(placer OrderPlacer, events EventPublisher, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{Placer: placer, Events: events, Logger: logger}
}

// CheckoutRequest is the body of POST /api/checkout. Items wins over the
// stored cart named by session_id.
type CheckoutRequest struct {
	Items           []models.CartLine `json:"items" binding:"omitempty,max=100,dive"`
	SessionID       string            `json:"session_id" binding:"omitempty,max=100"`
	Email           string            `json:"email" binding:"required,email"`
	FirstName       string            `json:"first_name" binding:"required,max=100"`
	LastName        string            `json:"last_name" binding:"required,max=100"`
	Phone           string            `json:"phone" binding:"omitempty,max=40"`
	ShippingAddress models.Address    `json:"shipping_address" binding:"required"`
	BillingAddress  *models.Address   `json:"billing_address" binding:"omitempty"`
	PaymentMethod   string            `json:"payment_method" binding:"required,oneof=stripe paypal midtrans"`
	Notes           string            `json:"notes" binding:"omitempty,max=2000"`
}

func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	userID := middleware.UserID(c)
	order, err := h.Placer.PlaceOrder(c.Request.Context(), checkout.Request{
		Items:           req.Items,
		Cart:            store.CartKey{SessionID: req.SessionID, UserID: userID},
		UserID:          userID,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	if h.Events != nil {
		h.Events.Publish(ws.NewOrderEvent(ws.EventOrderCreated, order))
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}
