package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

type CartStore interface {
	GetCart(ctx context.Context, key store.CartKey) (models.CartSession, error)
	SaveCart(ctx context.Context, key store.CartKey, lines models.CartLines) (models.CartSession, error)
	DeleteCart(ctx context.Context, key store.CartKey) error
}

type CartHandler struct {
	Carts  CartStore
	Logger *zap.Logger
}

func NewCartHandler(carts CartStore, logger *zap.Logger) *CartHandler {
	return &CartHandler{Carts: carts, Logger: logger}
}

type SaveCartRequest struct {
	SessionID string            `json:"session_id" binding:"omitempty,max=100"`
	Items     []models.CartLine `json:"items" binding:"omitempty,max=100,dive"`
}

func cartKey(c *gin.Context, sessionID string) store.CartKey {
	return store.CartKey{SessionID: sessionID, UserID: middleware.UserID(c)}
}

// Get returns the caller's cart; a missing or expired cart reads as empty.
func (h *CartHandler) Get(c *gin.Context) {
	key := cartKey(c, c.Query("session_id"))
	if key.Empty() {
		c.JSON(http.StatusOK, models.CartSession{CartData: models.CartLines{}})
		return
	}

	cart, err := h.Carts.GetCart(c.Request.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		empty := models.CartSession{CartData: models.CartLines{}, UserID: key.UserID}
		if key.UserID == nil {
			empty.SessionID = &key.SessionID
		}
		c.JSON(http.StatusOK, empty)
		return
	}
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// Save replaces the cart lines. Anonymous callers without a session id get
// a fresh one back.
func (h *CartHandler) Save(c *gin.Context) {
	var req SaveCartRequest
	if !bindJSON(c, &req) {
		return
	}

	key := cartKey(c, req.SessionID)
	if key.Empty() {
		key.SessionID = uuid.NewString()
	}

	cart, err := h.Carts.SaveCart(c.Request.Context(), key, models.CartLines(req.Items))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) Clear(c *gin.Context) {
	key := cartKey(c, c.Query("session_id"))
	if key.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required."})
		return
	}

	if err := h.Carts.DeleteCart(c.Request.Context(), key); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
