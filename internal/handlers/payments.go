package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/payments"
	"label-platform/internal/store"
)

// maxWebhookBytes bounds provider notification bodies.
const maxWebhookBytes = 64 << 10

type PaymentService interface {
	StartStripe(ctx context.Context, orderID int64) (payments.StripeCheckout, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
	StartPayPal(ctx context.Context, orderID int64) (payments.PayPalCheckout, error)
	CapturePayPal(ctx context.Context, orderID int64, paypalOrderID string) (models.Order, error)
	StartMidtrans(ctx context.Context, orderID int64) (payments.MidtransCheckout, error)
	HandleMidtransNotification(ctx context.Context, n payments.MidtransNotification) error
}

// OrderFinder loads the order a payment request names.
type OrderFinder interface {
	GetOrder(ctx context.Context, id int64) (models.Order, error)
}

type PaymentHandler struct {
	Payments PaymentService
	Orders   OrderFinder
	Logger   *zap.Logger
}

func NewPaymentHandler(svc PaymentService, orders OrderFinder, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: svc, Orders: orders, Logger: logger}
}

// StartPaymentRequest names the order to pay. Guests prove the order is
// theirs with its order number and email; signed-in owners and admins need
// only the id.
type StartPaymentRequest struct {
	OrderID     int64  `json:"order_id" binding:"required,gt=0"`
	OrderNumber string `json:"order_number" binding:"omitempty,max=64"`
	Email       string `json:"email" binding:"omitempty,max=255"`
}

type CapturePayPalRequest struct {
	OrderID       int64  `json:"order_id" binding:"required,gt=0"`
	PayPalOrderID string `json:"paypal_order_id" binding:"required"`
	OrderNumber   string `json:"order_number" binding:"omitempty,max=64"`
	Email         string `json:"email" binding:"omitempty,max=255"`
}

// payerOwns reports whether the caller may pay for order.
func payerOwns(c *gin.Context, order models.Order, number, email string) bool {
	if middleware.IsAdmin(c) {
		return true
	}
	if uid := middleware.UserID(c); uid != nil && order.UserID != nil && *uid == *order.UserID {
		return true
	}
	return number != "" &&
		strings.TrimSpace(number) == order.OrderNumber &&
		strings.EqualFold(strings.TrimSpace(email), order.Email)
}

// authorize answers 404 for orders the caller cannot prove are theirs, the
// same as for orders that do not exist.
func (h *PaymentHandler) authorize(c *gin.Context, orderID int64, number, email string) bool {
	order, err := h.Orders.GetOrder(c.Request.Context(), orderID)
	if err == nil && !payerOwns(c, order, number, email) {
		err = store.ErrNotFound
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return false
	}
	return true
}

func (h *PaymentHandler) StartStripe(c *gin.Context) {
	var req StartPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !h.authorize(c, req.OrderID, req.OrderNumber, req.Email) {
		return
	}

	session, err := h.Payments.StartStripe(c.Request.Context(), req.OrderID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// StripeWebhook handles incoming webhooks from Stripe. The raw body is
// needed for signature verification, so it is read before any binding.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Logger.Warn("Failed to read Stripe webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}

	if err := h.Payments.HandleStripeWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) StartPayPal(c *gin.Context) {
	var req StartPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !h.authorize(c, req.OrderID, req.OrderNumber, req.Email) {
		return
	}

	order, err := h.Payments.StartPayPal(c.Request.Context(), req.OrderID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *PaymentHandler) CapturePayPal(c *gin.Context) {
	var req CapturePayPalRequest
	if !bindJSON(c, &req) {
		return
	}
	if !h.authorize(c, req.OrderID, req.OrderNumber, req.Email) {
		return
	}

	order, err := h.Payments.CapturePayPal(c.Request.Context(), req.OrderID, req.PayPalOrderID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *PaymentHandler) StartMidtrans(c *gin.Context) {
	var req StartPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !h.authorize(c, req.OrderID, req.OrderNumber, req.Email) {
		return
	}

	tx, err := h.Payments.StartMidtrans(c.Request.Context(), req.OrderID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// MidtransWebhook applies a Midtrans HTTP notification. The status is
// re-read from the Core API, so the body only needs the order id.
func (h *PaymentHandler) MidtransWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)

	var n payments.MidtransNotification
	if !bindJSON(c, &n) {
		return
	}

	if err := h.Payments.HandleMidtransNotification(c.Request.Context(), n); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
