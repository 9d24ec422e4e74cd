// Package payments creates provider-side payments for local orders and
// applies provider confirmations back onto them.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

type Settings struct {
	SiteURL             string
	SiteName            string
	StripeWebhookSecret string
}

type Service struct {
	Orders    OrderStore
	Providers Providers
	Events    Publisher
	Logger    *zap.Logger

	settings Settings
	now      func() time.Time
}

func NewService(orders OrderStore, providers Providers, events Publisher, logger *zap.Logger, settings Settings) *Service {
	return &Service{
		Orders:    orders,
		Providers: providers,
		Events:    events,
		Logger:    logger,
		settings:  settings,
		now:       time.Now,
	}
}

// payable loads an order that may still start a payment.
func (s *Service) payable(ctx context.Context, orderID int64) (models.Order, error) {
	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return order, err
	}
	if !order.CanStartPayment() {
		return order, ErrAlreadyPaid
	}
	return order, nil
}

// startPayment records the provider reference and moves the order to
// processing.
func (s *Service) startPayment(ctx context.Context, order models.Order, method string, refs map[string]any) (models.Order, error) {
	refs["payment_method"] = method
	updated, err := s.Orders.StartPayment(ctx, order.ID, refs)
	if errors.Is(err, store.ErrStaleState) {
		return updated, ErrAlreadyPaid
	}
	if err != nil {
		return updated, fmt.Errorf("start %s payment: %w", method, err)
	}
	return updated, nil
}

// apply runs one provider notification through the store. A redelivered
// event is reported as unchanged.
func (s *Service) apply(
	ctx context.Context,
	event models.PaymentEvent,
	lookup store.OrderLookup,
	fn func(order *models.Order) (bool, error),
) (models.Order, bool, error) {
	order, changed, err := s.Orders.ApplyPayment(ctx, event, lookup, fn)
	if errors.Is(err, store.ErrDuplicateEvent) {
		s.Logger.Info("Duplicate payment event ignored",
			zap.String("provider", event.Provider), zap.String("event_id", event.EventID))
		return order, false, nil
	}
	if err != nil {
		return order, false, err
	}
	if changed {
		s.publish(order)
	}
	return order, changed, nil
}

func (s *Service) publish(order models.Order) {
	if s.Events == nil {
		return
	}
	kind := ws.EventOrderUpdated
	switch order.PaymentStatus {
	case models.PaymentPaid:
		kind = ws.EventOrderPaid
	case models.PaymentFailed:
		kind = ws.EventOrderFailed
	}
	s.Events.Publish(ws.NewOrderEvent(kind, order))
}

func (s *Service) markPaid(order *models.Order) bool {
	return order.MarkPaid(s.now().UTC())
}
