package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"label-platform/internal/models"
)

var cartColumns = "id, session_id, user_id, cart_data, expires_at, created_at, updated_at"

// CartKey identifies a cart. A logged-in user's cart wins over the
// anonymous session cart.
type CartKey struct {
	SessionID string
	UserID    *int64
}

func (k CartKey) Empty() bool {
	return k.SessionID == "" && k.UserID == nil
}

func (k CartKey) column() (string, any) {
	if k.UserID != nil {
		return "user_id", *k.UserID
	}
	return "session_id", k.SessionID
}

var ErrNoCartKey = errors.New("cart needs a session id or a user")

type Carts struct {
	db  sqlx.ExtContext
	now func() time.Time
}

func NewCarts(db sqlx.ExtContext) *Carts {
	return &Carts{db: db, now: time.Now}
}

// GetCart returns the unexpired cart for key, or ErrNotFound.
func (c *Carts) GetCart(ctx context.Context, key CartKey) (models.CartSession, error) {
	var cart models.CartSession
	if key.Empty() {
		return cart, ErrNoCartKey
	}

	col, value := key.column()
	query := `SELECT ` + cartColumns + ` FROM cart_sessions WHERE ` + col + ` = $1 AND expires_at > $2`
	err := sqlx.GetContext(ctx, c.db, &cart, query, value, c.now())
	return cart, translate(err)
}

// SaveCart upserts the cart lines and pushes the expiry out to now + CartTTL.
func (c *Carts) SaveCart(ctx context.Context, key CartKey, lines models.CartLines) (models.CartSession, error) {
	var cart models.CartSession
	if key.Empty() {
		return cart, ErrNoCartKey
	}

	// A user's cart is keyed by user id alone so it never collides with the
	// anonymous cart of the session it was started in.
	var sessionID *string
	if key.UserID == nil {
		sessionID = &key.SessionID
	}
	col, _ := key.column()

	query := `
		INSERT INTO cart_sessions (session_id, user_id, cart_data, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (` + col + `) DO UPDATE
		SET cart_data = EXCLUDED.cart_data,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
		RETURNING ` + cartColumns

	err := sqlx.GetContext(ctx, c.db, &cart, query, sessionID, key.UserID, lines, c.now().Add(models.CartTTL))
	return cart, translate(err)
}

func (c *Carts) DeleteCart(ctx context.Context, key CartKey) error {
	if key.Empty() {
		return ErrNoCartKey
	}
	col, value := key.column()
	_, err := c.db.ExecContext(ctx, `DELETE FROM cart_sessions WHERE `+col+` = $1`, value)
	return translate(err)
}

// PurgeExpired deletes carts past their expiry.
func (c *Carts) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cart_sessions WHERE expires_at <= $1`, c.now())
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}
