package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"

	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

// memOrders mimics store.Orders: events are recorded with the order update
// and an apply error discards both.
type memOrders struct {
	mu     sync.Mutex
	orders map[int64]models.Order
	events map[string]bool
	starts []map[string]any
}

func newMemOrders(orders ...models.Order) *memOrders {
	m := &memOrders{orders: map[int64]models.Order{}, events: map[string]bool{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrders) get(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memOrders) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return o, store.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) StartPayment(ctx context.Context, id int64, refs map[string]any) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return o, store.ErrNotFound
	}
	if !o.CanStartPayment() {
		return o, store.ErrStaleState
	}
	m.starts = append(m.starts, refs)
	for k, v := range refs {
		s := v.(string)
		switch k {
		case "payment_method":
			o.PaymentMethod = s
		case "stripe_session_id":
			o.StripeSessionID = &s
		case "paypal_order_id":
			o.PayPalOrderID = &s
		}
	}
	o.PaymentStatus = models.PaymentProcessing
	m.orders[id] = o
	return o, nil
}

func (m *memOrders) find(lookup store.OrderLookup) (models.Order, bool) {
	for _, o := range m.orders {
		var match bool
		switch lookup.Column {
		case "id":
			match = o.ID == lookup.Value.(int64)
		case "order_number":
			match = o.OrderNumber == lookup.Value.(string)
		case "stripe_session_id":
			match = o.StripeSessionID != nil && *o.StripeSessionID == lookup.Value.(string)
		case "paypal_order_id":
			match = o.PayPalOrderID != nil && *o.PayPalOrderID == lookup.Value.(string)
		}
		if match {
			return o, true
		}
	}
	return models.Order{}, false
}

func (m *memOrders) ApplyPayment(
	ctx context.Context,
	event models.PaymentEvent,
	lookup store.OrderLookup,
	apply func(order *models.Order) (bool, error),
) (models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.find(lookup)
	if !ok {
		return order, false, store.ErrNotFound
	}
	key := event.Provider + "/" + event.EventID
	if m.events[key] {
		return order, false, store.ErrDuplicateEvent
	}

	working := order
	changed, err := apply(&working)
	if err != nil {
		return order, false, err
	}
	m.events[key] = true
	if changed {
		m.orders[order.ID] = working
	}
	return working, changed, nil
}

type recorder struct {
	mu     sync.Mutex
	events []ws.OrderEvent
}

func (r *recorder) Publish(e ws.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fakeStripe struct {
	params []*stripe.CheckoutSessionParams
}

func (f *fakeStripe) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = append(f.params, params)
	id := fmt.Sprintf("cs_test_%d", len(f.params))
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

type fakePayPal struct {
	units   []paypal.PurchaseUnitRequest
	status  string
	capture int
}

func (f *fakePayPal) CreateOrder(ctx context.Context, intent string, units []paypal.PurchaseUnitRequest,
	payer *paypal.CreateOrderPayer, app *paypal.ApplicationContext) (*paypal.Order, error) {
	f.units = units
	return &paypal.Order{
		ID:     "PP-1",
		Status: "CREATED",
		Links: []paypal.Link{
			{Href: "https://api.paypal.test/v2/checkout/orders/PP-1", Rel: "self"},
			{Href: "https://paypal.test/checkoutnow?token=PP-1", Rel: "approve"},
		},
	}, nil
}

func (f *fakePayPal) CaptureOrder(ctx context.Context, orderID string, req paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error) {
	f.capture++
	return &paypal.CaptureOrderResponse{
		ID:     orderID,
		Status: f.status,
		PurchaseUnits: []paypal.CapturedPurchaseUnit{{
			Payments: &paypal.CapturedPayments{Captures: []paypal.CaptureAmount{{ID: "CAP-1"}}},
		}},
	}, nil
}

type fakeSnap struct {
	req *snap.Request
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.req = req
	return &snap.Response{Token: "snap-token", RedirectURL: "https://app.midtrans.test/snap/v2/vtweb/snap-token"}, nil
}

type fakeCore struct {
	status coreapi.TransactionStatusResponse
}

func (f *fakeCore) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error) {
	if orderID != f.status.OrderID {
		return nil, &midtrans.Error{Message: "transaction not found", StatusCode: 404}
	}
	resp := f.status
	return &resp, nil
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// teeOrder is two 20.00 tees: subtotal 40, tax 3.20, shipping 5.99.
func teeOrder() models.Order {
	productID := int64(10)
	return models.Order{
		ID:            1,
		OrderNumber:   "ORD-LOYW3V28-ABCDEF",
		Email:         "fan@example.com",
		FirstName:     "Ada",
		Subtotal:      money("40"),
		ShippingCost:  money("5.99"),
		Tax:           money("3.2"),
		Total:         money("49.19"),
		Currency:      "usd",
		PaymentMethod: models.PaymentMethodStripe,
		PaymentStatus: models.PaymentPending,
		OrderStatus:   models.OrderPending,
		Items: []models.OrderItem{{
			ID: 100, OrderID: 1, ProductID: &productID, ProductName: "Tee",
			ProductPrice: money("20"), Quantity: 2, ProductType: models.ProductPhysical,
		}},
	}
}
