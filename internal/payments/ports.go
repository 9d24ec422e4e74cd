package payments

import (
	"context"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v82"

	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

// OrderStore is the slice of store.Orders the adapters need.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	StartPayment(ctx context.Context, orderID int64, refs map[string]any) (models.Order, error)
	ApplyPayment(ctx context.Context, event models.PaymentEvent, lookup store.OrderLookup,
		apply func(order *models.Order) (bool, error)) (models.Order, bool, error)
}

type Publisher interface {
	Publish(event ws.OrderEvent)
}

// StripeSessions is satisfied by *session.Client.
type StripeSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// PayPalOrders is satisfied by *paypal.Client.
type PayPalOrders interface {
	CreateOrder(ctx context.Context, intent string, units []paypal.PurchaseUnitRequest,
		payer *paypal.CreateOrderPayer, app *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, req paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

// SnapAPI is satisfied by *snap.Client.
type SnapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// CoreAPI is satisfied by *coreapi.Client.
type CoreAPI interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}
