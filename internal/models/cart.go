package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CartTTL is how long a saved cart lives after its last save.
const CartTTL = 30 * 24 * time.Hour

// CartLine is what the storefront keeps per cart row.
type CartLine struct {
	ProductID    *int64          `json:"product_id" binding:"omitempty,gt=0"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity" binding:"required,gt=0,lte=100"`
	Variant      string          `json:"variant,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
}

// CartLines is stored as jsonb.
type CartLines []CartLine

func (l CartLines) Value() (driver.Value, error) {
	if l == nil {
		l = CartLines{}
	}
	return json.Marshal(l)
}

func (l *CartLines) Scan(src any) error {
	return scanJSON(src, l)
}

// CartSession is a server-side cart keyed by session id or user id.
type CartSession struct {
	ID        int64     `db:"id" json:"id"`
	SessionID *string   `db:"session_id" json:"session_id"`
	UserID    *int64    `db:"user_id" json:"user_id"`
	CartData  CartLines `db:"cart_data" json:"items"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (c CartSession) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
