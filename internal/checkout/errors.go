package checkout

import (
	"errors"
	"fmt"
	"strings"

	"label-platform/internal/store"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrInvalidLine          = errors.New("invalid cart line")
)

// LineError rejects one cart line.
type LineError struct {
	Line      int    `json:"line"`
	ProductID int64  `json:"product_id,omitempty"`
	Reason    string `json:"reason"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *LineError) Unwrap() error {
	return ErrInvalidLine
}

// Shortage is one product the cart wants more of than is in stock.
type Shortage struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"product_name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InventoryError lists every short product of a rejected checkout.
type InventoryError struct {
	Shortages []Shortage
}

func (e *InventoryError) Error() string {
	names := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		names[i] = fmt.Sprintf("%s (requested %d, available %d)", s.Name, s.Requested, s.Available)
	}
	return "insufficient inventory: " + strings.Join(names, ", ")
}

func (e *InventoryError) Unwrap() error {
	return store.ErrInsufficientInventory
}
