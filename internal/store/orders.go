package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"label-platform/internal/database"
	"label-platform/internal/models"
)

var OrderSpec = TableSpec{
	Name: "orders",
	Columns: []string{"id", "order_number", "user_id", "email", "first_name", "last_name", "phone",
		"shipping_address", "billing_address", "subtotal", "shipping_cost", "tax", "total",
		"currency", "payment_method", "payment_status", "order_status", "stripe_session_id",
		"stripe_payment_intent_id", "paypal_order_id", "paypal_capture_id",
		"midtrans_transaction_id", "tracking_number", "notes", "paid_at", "created_at", "updated_at"},
	// Only fulfilment fields are editable after checkout.
	Writable: []string{"order_status", "tracking_number", "notes"},
	Filters: map[string]FilterKind{"payment_status": FilterString, "order_status": FilterString,
		"email": FilterString, "user_id": FilterInt, "payment_method": FilterString},
	Search:  []string{"order_number", "email", "last_name"},
	OrderBy: "created_at DESC, id DESC",
	Touch:   true,
}

var orderItemColumns = []string{"id", "order_id", "product_id", "product_name", "product_price",
	"quantity", "variant", "product_type", "created_at"}

// OrderLookup names the column a payment notification identifies its order by.
type OrderLookup struct {
	Column string
	Value  any
}

var lookupColumns = map[string]bool{
	"id":                true,
	"order_number":      true,
	"stripe_session_id": true,
	"paypal_order_id":   true,
}

// Orders is never deleted from; rows move through payment and fulfilment
// status only.
type Orders struct {
	db    *database.DB
	table *Table[models.Order]
}

func NewOrders(db *database.DB) *Orders {
	return &Orders{db: db, table: NewTable[models.Order](db, OrderSpec)}
}

func (o *Orders) List(ctx context.Context, q ListQuery) ([]models.Order, error) {
	return o.table.List(ctx, q)
}

// GetOrder returns the order with its items.
func (o *Orders) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	order, err := o.table.Get(ctx, id)
	if err != nil {
		return order, err
	}
	order.Items, err = o.OrderItems(ctx, order.ID)
	return order, err
}

func (o *Orders) GetOrderByNumber(ctx context.Context, number string) (models.Order, error) {
	order, err := o.table.GetBy(ctx, "order_number", number)
	if err != nil {
		return order, err
	}
	order.Items, err = o.OrderItems(ctx, order.ID)
	return order, err
}

func (o *Orders) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	query := `SELECT ` + strings.Join(orderItemColumns, ", ") + `
	          FROM order_items WHERE order_id = $1 ORDER BY id`
	if err := o.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (o *Orders) GetOrderItem(ctx context.Context, itemID int64) (models.OrderItem, error) {
	var item models.OrderItem
	query := `SELECT ` + strings.Join(orderItemColumns, ", ") + ` FROM order_items WHERE id = $1`
	err := o.db.GetContext(ctx, &item, query, itemID)
	return item, translate(err)
}

// UpdateFulfilment edits the admin-owned fields of an order.
func (o *Orders) UpdateFulfilment(ctx context.Context, id int64, fields map[string]any) (models.Order, error) {
	order, err := o.table.Update(ctx, id, fields)
	if err != nil {
		return order, err
	}
	order.Items, err = o.OrderItems(ctx, order.ID)
	return order, err
}

// CreateOrder persists the order, its items and the stock decrements in one
// transaction. decrements maps product id to the quantity to take; a product
// without enough stock aborts the whole order with ErrInsufficientInventory.
// The order and its items get their ids and timestamps filled in.
func (o *Orders) CreateOrder(ctx context.Context, order *models.Order, decrements map[int64]int) error {
	return o.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ids := make([]int64, 0, len(decrements))
		for id := range decrements {
			ids = append(ids, id)
		}
		// Fixed lock order keeps concurrent checkouts from deadlocking.
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, productID := range ids {
			qty := decrements[productID]
			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET inventory_count = inventory_count - $1, updated_at = NOW()
				WHERE id = $2 AND inventory_count IS NOT NULL AND inventory_count >= $1`,
				qty, productID)
			if err != nil {
				return fmt.Errorf("decrement inventory %d: %w", productID, translate(err))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: product %d", ErrInsufficientInventory, productID)
			}
		}

		query := `
			INSERT INTO orders
			  (order_number, user_id, email, first_name, last_name, phone,
			   shipping_address, billing_address, subtotal, shipping_cost, tax, total,
			   currency, payment_method, payment_status, order_status, notes)
			VALUES
			  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRowxContext(ctx, query,
			order.OrderNumber, order.UserID, order.Email, order.FirstName, order.LastName, order.Phone,
			order.ShippingAddress, order.BillingAddress, order.Subtotal, order.ShippingCost, order.Tax, order.Total,
			order.Currency, order.PaymentMethod, order.PaymentStatus, order.OrderStatus, order.Notes,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", translate(err))
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			err := tx.QueryRowxContext(ctx, `
				INSERT INTO order_items
				  (order_id, product_id, product_name, product_price, quantity, variant, product_type)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id, created_at`,
				item.OrderID, item.ProductID, item.ProductName, item.ProductPrice,
				item.Quantity, item.Variant, item.ProductType,
			).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert order item %d: %w", i, translate(err))
			}
		}
		return nil
	})
}

// StartPayment stores the provider reference columns and moves the order to
// processing. It fails with ErrStaleState when the order is already paid or
// refunded.
func (o *Orders) StartPayment(ctx context.Context, orderID int64, refs map[string]any) (models.Order, error) {
	var order models.Order
	for col := range refs {
		if !paymentRefColumns[col] {
			return order, fmt.Errorf("%w: orders.%s", ErrUnknownColumn, col)
		}
	}

	query, args, err := psql.Update("orders").
		SetMap(refs).
		Set("payment_status", models.PaymentProcessing).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": orderID}).
		Where(sq.NotEq{"payment_status": []string{string(models.PaymentPaid), string(models.PaymentRefunded)}}).
		Suffix(o.table.returning()).
		ToSql()
	if err != nil {
		return order, err
	}

	err = o.db.GetContext(ctx, &order, query, args...)
	if err = translate(err); errors.Is(err, ErrNotFound) {
		if _, getErr := o.table.Get(ctx, orderID); getErr != nil {
			return order, getErr
		}
		return order, ErrStaleState
	}
	return order, err
}

var paymentRefColumns = map[string]bool{
	"payment_method":          true,
	"stripe_session_id":       true,
	"paypal_order_id":         true,
	"midtrans_transaction_id": true,
}

// ApplyPayment applies one provider notification to one order, atomically:
// the order row is locked, the event is recorded in payment_events (a repeat
// of the same provider event id fails with ErrDuplicateEvent and changes
// nothing), then apply mutates the order. The order is written back only when
// apply reports a change; returning an error rolls everything back.
func (o *Orders) ApplyPayment(
	ctx context.Context,
	event models.PaymentEvent,
	lookup OrderLookup,
	apply func(order *models.Order) (bool, error),
) (models.Order, bool, error) {
	var order models.Order
	var changed bool

	if !lookupColumns[lookup.Column] {
		return order, false, fmt.Errorf("%w: orders.%s", ErrUnknownColumn, lookup.Column)
	}

	err := o.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := psql.Select(OrderSpec.Columns...).
			From("orders").
			Where(sq.Eq{lookup.Column: lookup.Value}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &order, query, args...); err != nil {
			return translate(err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO payment_events (provider, event_id, event_type, order_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (provider, event_id) DO NOTHING`,
			event.Provider, event.EventID, event.EventType, order.ID)
		if err != nil {
			return fmt.Errorf("record payment event: %w", translate(err))
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrDuplicateEvent
		}

		changed, err = apply(&order)
		if err != nil || !changed {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET payment_status = $1, order_status = $2, paid_at = $3,
			    stripe_payment_intent_id = $4, paypal_capture_id = $5,
			    midtrans_transaction_id = $6, updated_at = NOW()
			WHERE id = $7`,
			order.PaymentStatus, order.OrderStatus, order.PaidAt,
			order.StripePaymentIntentID, order.PayPalCaptureID,
			order.MidtransTransactionID, order.ID)
		if err != nil {
			return fmt.Errorf("update order payment: %w", translate(err))
		}
		return nil
	})
	if err != nil {
		return order, false, err
	}
	return order, changed, nil
}

// Stats counts orders; revenue sums paid orders only.
func (o *Orders) Stats(ctx context.Context) (models.OrderStats, error) {
	var stats models.OrderStats
	query := `SELECT COUNT(*) AS orders,
	                 COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid,
	                 COUNT(*) FILTER (WHERE payment_status IN ('pending', 'processing')) AS open,
	                 COALESCE(SUM(total) FILTER (WHERE payment_status = 'paid'), 0) AS revenue
	          FROM orders`
	if err := o.db.GetContext(ctx, &stats, query); err != nil {
		return stats, fmt.Errorf("order stats: %w", translate(err))
	}
	return stats, nil
}
