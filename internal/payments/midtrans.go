package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

type MidtransCheckout struct {
	RedirectURL string `json:"redirect_url"`
	Token       string `json:"token"`
}

// MidtransNotification is the part of the notification body we trust; the
// status itself is always re-read from the Core API.
type MidtransNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
}

// Midtrans takes whole currency units.
func midtransAmount(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// StartMidtrans creates a Snap transaction keyed by the order number.
func (s *Service) StartMidtrans(ctx context.Context, orderID int64) (MidtransCheckout, error) {
	if s.Providers.Snap == nil || s.Providers.Midtrans == nil {
		return MidtransCheckout{}, ErrProviderDisabled
	}
	order, err := s.payable(ctx, orderID)
	if err != nil {
		return MidtransCheckout{}, err
	}

	resp, merr := s.Providers.Snap.CreateTransaction(snapRequest(order))
	if resp == nil {
		if merr != nil {
			return MidtransCheckout{}, fmt.Errorf("create midtrans transaction: %s", merr.GetMessage())
		}
		return MidtransCheckout{}, fmt.Errorf("create midtrans transaction: empty response")
	}
	if merr != nil {
		s.Logger.Warn("Midtrans returned a response with an error", zap.String("error", merr.GetMessage()))
	}

	if _, err := s.startPayment(ctx, order, models.PaymentMethodMidtrans, map[string]any{}); err != nil {
		return MidtransCheckout{}, err
	}

	s.Logger.Info("Midtrans transaction created", zap.String("order_number", order.OrderNumber))
	return MidtransCheckout{RedirectURL: resp.RedirectURL, Token: resp.Token}, nil
}

func snapRequest(order models.Order) *snap.Request {
	gross := midtransAmount(order.Total)

	var items []midtrans.ItemDetails
	var sum int64
	add := func(id, name string, price int64, qty int) {
		if price == 0 {
			return
		}
		items = append(items, midtrans.ItemDetails{ID: id, Name: name, Price: price, Qty: int32(qty)})
		sum += price * int64(qty)
	}

	for _, item := range order.Items {
		id := "ITEM-" + strconv.FormatInt(item.ID, 10)
		add(id, item.ProductName, midtransAmount(item.ProductPrice), item.Quantity)
	}
	add("SHIPPING", "Shipping", midtransAmount(order.ShippingCost), 1)
	add("TAX", "Tax", midtransAmount(order.Tax), 1)
	// Item details must add up to the gross amount.
	add("ROUNDING", "Rounding", gross-sum, 1)

	return &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.OrderNumber,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: order.FirstName,
			LName: order.LastName,
			Email: order.Email,
			Phone: order.Phone,
		},
		Items: &items,
	}
}

// HandleMidtransNotification re-verifies the transaction with the Core API
// and applies its status.
func (s *Service) HandleMidtransNotification(ctx context.Context, n MidtransNotification) error {
	if s.Providers.Midtrans == nil {
		return ErrProviderDisabled
	}

	status, merr := s.Providers.Midtrans.CheckTransaction(n.OrderID)
	if status == nil {
		if merr != nil {
			return fmt.Errorf("check midtrans transaction: %s", merr.GetMessage())
		}
		return fmt.Errorf("check midtrans transaction: empty response")
	}

	var apply func(order *models.Order) (bool, error)
	switch status.TransactionStatus {
	case "settlement", "capture":
		if status.TransactionStatus == "capture" && status.FraudStatus == "challenge" {
			s.Logger.Info("Midtrans capture under fraud review", zap.String("order_number", status.OrderID))
			return nil
		}
		apply = func(order *models.Order) (bool, error) {
			if order.PaymentStatus == models.PaymentPaid {
				return false, nil
			}
			paid, err := decimal.NewFromString(status.GrossAmount)
			if err != nil || paid.Round(0).IntPart() != midtransAmount(order.Total) {
				return false, fmt.Errorf("%w: order %s, midtrans gross %q",
					ErrAmountMismatch, order.OrderNumber, status.GrossAmount)
			}
			order.MidtransTransactionID = &status.TransactionID
			return s.markPaid(order), nil
		}
	case "deny", "cancel", "expire", "failure":
		apply = func(order *models.Order) (bool, error) {
			return order.MarkFailed(), nil
		}
	default:
		s.Logger.Info("Midtrans status acknowledged",
			zap.String("order_number", status.OrderID), zap.String("status", status.TransactionStatus))
		return nil
	}

	record := models.PaymentEvent{
		Provider:  models.PaymentMethodMidtrans,
		EventID:   status.TransactionID + ":" + status.TransactionStatus,
		EventType: "transaction." + status.TransactionStatus,
	}
	order, changed, err := s.apply(ctx, record, store.OrderLookup{Column: "order_number", Value: status.OrderID}, apply)
	return s.logOutcome(record, order, changed, err)
}
