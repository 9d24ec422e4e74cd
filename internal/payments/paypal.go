package payments

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

const paypalCompleted = "COMPLETED"

type PayPalCheckout struct {
	PayPalOrderID string `json:"paypal_order_id"`
	ApproveURL    string `json:"approve_url"`
}

// StartPayPal creates a PayPal order mirroring the local totals and items.
func (s *Service) StartPayPal(ctx context.Context, orderID int64) (PayPalCheckout, error) {
	if s.Providers.PayPal == nil {
		return PayPalCheckout{}, ErrProviderDisabled
	}
	order, err := s.payable(ctx, orderID)
	if err != nil {
		return PayPalCheckout{}, err
	}

	number := url.QueryEscape(order.OrderNumber)
	app := &paypal.ApplicationContext{
		BrandName: s.settings.SiteName,
		ReturnURL: s.settings.SiteURL + "/checkout/success?order=" + number,
		CancelURL: s.settings.SiteURL + "/checkout/cancel?order=" + number,
	}

	created, err := s.Providers.PayPal.CreateOrder(ctx, paypal.OrderIntentCapture,
		[]paypal.PurchaseUnitRequest{paypalPurchaseUnit(order)}, nil, app)
	if err != nil {
		return PayPalCheckout{}, fmt.Errorf("create paypal order: %w", err)
	}

	if _, err := s.startPayment(ctx, order, models.PaymentMethodPayPal, map[string]any{
		"paypal_order_id": created.ID,
	}); err != nil {
		return PayPalCheckout{}, err
	}

	s.Logger.Info("PayPal order created",
		zap.String("order_number", order.OrderNumber), zap.String("paypal_order_id", created.ID))
	return PayPalCheckout{PayPalOrderID: created.ID, ApproveURL: approveLink(created.Links)}, nil
}

func paypalPurchaseUnit(order models.Order) paypal.PurchaseUnitRequest {
	currency := strings.ToUpper(order.Currency)
	money := func(d decimal.Decimal) *paypal.Money {
		return &paypal.Money{Currency: currency, Value: d.StringFixed(2)}
	}

	items := make([]paypal.Item, 0, len(order.Items))
	for _, item := range order.Items {
		category := "PHYSICAL_GOODS"
		if item.ProductType == models.ProductDigital {
			category = "DIGITAL_GOODS"
		}
		items = append(items, paypal.Item{
			Name:       item.ProductName,
			UnitAmount: money(item.ProductPrice),
			Quantity:   strconv.Itoa(item.Quantity),
			Category:   category,
		})
	}

	return paypal.PurchaseUnitRequest{
		ReferenceID: order.OrderNumber,
		InvoiceID:   order.OrderNumber,
		CustomID:    strconv.FormatInt(order.ID, 10),
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    order.Total.StringFixed(2),
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: money(order.Subtotal),
				Shipping:  money(order.ShippingCost),
				TaxTotal:  money(order.Tax),
			},
		},
		Items: items,
	}
}

func approveLink(links []paypal.Link) string {
	for _, l := range links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// CapturePayPal captures an approved PayPal order. An order that is already
// paid is returned unchanged without calling PayPal.
func (s *Service) CapturePayPal(ctx context.Context, orderID int64, paypalOrderID string) (models.Order, error) {
	if s.Providers.PayPal == nil {
		return models.Order{}, ErrProviderDisabled
	}

	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return order, err
	}
	if order.PayPalOrderID == nil || *order.PayPalOrderID != paypalOrderID {
		return order, ErrOrderMismatch
	}
	if order.PaymentStatus == models.PaymentPaid {
		return order, nil
	}

	resp, err := s.Providers.PayPal.CaptureOrder(ctx, paypalOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return order, fmt.Errorf("capture paypal order: %w", err)
	}

	status := strings.ToUpper(resp.Status)
	captureID := captureIDOf(resp)
	record := models.PaymentEvent{
		Provider:  models.PaymentMethodPayPal,
		EventID:   paypalOrderID + ":" + status,
		EventType: "capture." + strings.ToLower(status),
	}

	updated, changed, err := s.apply(ctx, record, store.OrderLookup{Column: "paypal_order_id", Value: paypalOrderID},
		func(o *models.Order) (bool, error) {
			if status != paypalCompleted {
				return o.MarkFailed(), nil
			}
			if captureID != "" {
				o.PayPalCaptureID = &captureID
			}
			return s.markPaid(o), nil
		})
	if err != nil {
		return order, err
	}
	if !changed {
		// Redelivery: return the current row.
		updated, err = s.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return order, err
		}
	}

	s.Logger.Info("PayPal capture applied",
		zap.String("order_number", updated.OrderNumber),
		zap.String("status", status),
		zap.String("payment_status", string(updated.PaymentStatus)))
	if updated.Items == nil {
		updated.Items = order.Items
	}
	return updated, nil
}

func captureIDOf(resp *paypal.CaptureOrderResponse) string {
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			if c.ID != "" {
				return c.ID
			}
		}
	}
	return ""
}
