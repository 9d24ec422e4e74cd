package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

const (
	PaymentMethodStripe   = "stripe"
	PaymentMethodPayPal   = "paypal"
	PaymentMethodMidtrans = "midtrans"
)

func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Address is stored as jsonb.
type Address struct {
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required,len=2"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	return scanJSON(src, a)
}

// Order is a purchase. PaymentStatus and OrderStatus move independently.
type Order struct {
	ID                    int64           `db:"id" json:"id"`
	OrderNumber           string          `db:"order_number" json:"order_number"`
	UserID                *int64          `db:"user_id" json:"user_id"`
	Email                 string          `db:"email" json:"email"`
	FirstName             string          `db:"first_name" json:"first_name"`
	LastName              string          `db:"last_name" json:"last_name"`
	Phone                 string          `db:"phone" json:"phone"`
	ShippingAddress       Address         `db:"shipping_address" json:"shipping_address"`
	BillingAddress        Address         `db:"billing_address" json:"billing_address"`
	Subtotal              decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost          decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	Tax                   decimal.Decimal `db:"tax" json:"tax"`
	Total                 decimal.Decimal `db:"total" json:"total"`
	Currency              string          `db:"currency" json:"currency"`
	PaymentMethod         string          `db:"payment_method" json:"payment_method"`
	PaymentStatus         PaymentStatus   `db:"payment_status" json:"payment_status"`
	OrderStatus           OrderStatus     `db:"order_status" json:"order_status"`
	StripeSessionID       *string         `db:"stripe_session_id" json:"-"`
	StripePaymentIntentID *string         `db:"stripe_payment_intent_id" json:"-"`
	PayPalOrderID         *string         `db:"paypal_order_id" json:"paypal_order_id,omitempty"`
	PayPalCaptureID       *string         `db:"paypal_capture_id" json:"-"`
	MidtransTransactionID *string         `db:"midtrans_transaction_id" json:"-"`
	TrackingNumber        string          `db:"tracking_number" json:"tracking_number"`
	Notes                 string          `db:"notes" json:"notes"`
	PaidAt                *time.Time      `db:"paid_at" json:"paid_at"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// CanStartPayment reports whether a provider payment may be created.
func (o Order) CanStartPayment() bool {
	return o.PaymentStatus != PaymentPaid && o.PaymentStatus != PaymentRefunded
}

// MarkPaid moves the order to paid. It returns false when the order was
// already paid, in which case nothing changes.
func (o *Order) MarkPaid(now time.Time) bool {
	if o.PaymentStatus == PaymentPaid {
		return false
	}
	o.PaymentStatus = PaymentPaid
	if o.OrderStatus == OrderPending || o.OrderStatus == "" {
		o.OrderStatus = OrderProcessing
	}
	o.PaidAt = &now
	return true
}

// MarkFailed never downgrades a paid or refunded order.
func (o *Order) MarkFailed() bool {
	switch o.PaymentStatus {
	case PaymentPaid, PaymentRefunded, PaymentFailed:
		return false
	}
	o.PaymentStatus = PaymentFailed
	return true
}

// OrderItem is the snapshot of a product line at purchase time.
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order_id"`
	ProductID    *int64          `db:"product_id" json:"product_id"`
	ProductName  string          `db:"product_name" json:"product_name"`
	ProductPrice decimal.Decimal `db:"product_price" json:"product_price"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Variant      string          `db:"variant" json:"variant"`
	ProductType  string          `db:"product_type" json:"product_type"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.ProductPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentEvent records a provider notification that has been applied.
type PaymentEvent struct {
	ID        int64     `db:"id" json:"id"`
	Provider  string    `db:"provider" json:"provider"`
	EventID   string    `db:"event_id" json:"event_id"`
	EventType string    `db:"event_type" json:"event_type"`
	OrderID   *int64    `db:"order_id" json:"order_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func scanJSON(src any, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported json column type")
	}
}

// OrderStats feeds the admin dashboard.
type OrderStats struct {
	Orders  int64           `db:"orders" json:"orders"`
	Paid    int64           `db:"paid" json:"paid"`
	Open    int64           `db:"open" json:"open"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}
