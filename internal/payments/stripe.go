package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

type StripeCheckout struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// StartStripe opens a Checkout Session for the order.
func (s *Service) StartStripe(ctx context.Context, orderID int64) (StripeCheckout, error) {
	if s.Providers.Stripe == nil {
		return StripeCheckout{}, ErrProviderDisabled
	}
	order, err := s.payable(ctx, orderID)
	if err != nil {
		return StripeCheckout{}, err
	}

	sess, err := s.Providers.Stripe.New(s.stripeSessionParams(order))
	if err != nil {
		return StripeCheckout{}, fmt.Errorf("create stripe session: %w", err)
	}

	if _, err := s.startPayment(ctx, order, models.PaymentMethodStripe, map[string]any{
		"stripe_session_id": sess.ID,
	}); err != nil {
		return StripeCheckout{}, err
	}

	s.Logger.Info("Stripe session created",
		zap.String("order_number", order.OrderNumber), zap.String("session_id", sess.ID))
	return StripeCheckout{CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}

func (s *Service) stripeSessionParams(order models.Order) *stripe.CheckoutSessionParams {
	currency := stripe.String(order.Currency)
	line := func(name string, cents, qty int64) *stripe.CheckoutSessionLineItemParams {
		return &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    currency,
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(name)},
				UnitAmount:  stripe.Int64(cents),
			},
			Quantity: stripe.Int64(qty),
		}
	}

	var items []*stripe.CheckoutSessionLineItemParams
	for _, item := range order.Items {
		name := item.ProductName
		if item.Variant != "" {
			name += " (" + item.Variant + ")"
		}
		items = append(items, line(name, models.ToCents(item.ProductPrice), int64(item.Quantity)))
	}
	if order.ShippingCost.IsPositive() {
		items = append(items, line("Shipping", models.ToCents(order.ShippingCost), 1))
	}
	if order.Tax.IsPositive() {
		items = append(items, line("Tax", models.ToCents(order.Tax), 1))
	}

	metadata := map[string]string{
		"order_id":     strconv.FormatInt(order.ID, 10),
		"order_number": order.OrderNumber,
	}
	number := url.QueryEscape(order.OrderNumber)

	return &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
		CustomerEmail:     stripe.String(order.Email),
		ClientReferenceID: stripe.String(order.OrderNumber),
		SuccessURL:        stripe.String(s.settings.SiteURL + "/checkout/success?order=" + number + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.settings.SiteURL + "/checkout/cancel?order=" + number),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: metadata},
	}
}

// HandleStripeWebhook verifies and applies one Stripe event. Event types that
// do not concern orders are acknowledged and ignored.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.parseStripeEvent(payload, signature)
	if err != nil {
		return err
	}

	record := models.PaymentEvent{
		Provider:  models.PaymentMethodStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.stripeSessionCompleted(ctx, record, sess)

	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.stripePaymentFailed(ctx, record, intent)
	}

	s.Logger.Debug("Stripe event ignored", zap.String("type", string(event.Type)))
	return nil
}

func (s *Service) parseStripeEvent(payload []byte, signature string) (stripe.Event, error) {
	var event stripe.Event
	if s.settings.StripeWebhookSecret == "" {
		if err := json.Unmarshal(payload, &event); err != nil {
			return event, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	} else {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, s.settings.StripeWebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return event, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}
	if event.ID == "" || event.Data == nil {
		return event, ErrInvalidPayload
	}
	return event, nil
}

func (s *Service) stripeSessionCompleted(ctx context.Context, record models.PaymentEvent, sess stripe.CheckoutSession) error {
	apply := func(order *models.Order) (bool, error) {
		if order.PaymentStatus == models.PaymentPaid {
			return false, nil
		}
		if sess.AmountTotal != models.ToCents(order.Total) {
			return false, fmt.Errorf("%w: order %s expects %d, session paid %d",
				ErrAmountMismatch, order.OrderNumber, models.ToCents(order.Total), sess.AmountTotal)
		}
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			order.StripePaymentIntentID = &sess.PaymentIntent.ID
		}
		return s.markPaid(order), nil
	}

	order, changed, err := s.apply(ctx, record, store.OrderLookup{Column: "stripe_session_id", Value: sess.ID}, apply)
	if errors.Is(err, store.ErrNotFound) {
		if id, ok := metadataOrderID(sess.Metadata); ok {
			order, changed, err = s.apply(ctx, record, store.OrderLookup{Column: "id", Value: id}, apply)
		}
	}
	return s.logOutcome(record, order, changed, err)
}

func (s *Service) stripePaymentFailed(ctx context.Context, record models.PaymentEvent, intent stripe.PaymentIntent) error {
	id, ok := metadataOrderID(intent.Metadata)
	if !ok {
		s.Logger.Warn("Stripe payment failure without order metadata", zap.String("payment_intent", intent.ID))
		return nil
	}

	order, changed, err := s.apply(ctx, record, store.OrderLookup{Column: "id", Value: id},
		func(order *models.Order) (bool, error) {
			return order.MarkFailed(), nil
		})
	return s.logOutcome(record, order, changed, err)
}

// logOutcome treats an event for an order we do not know as acknowledged;
// the provider account may serve other systems too.
func (s *Service) logOutcome(record models.PaymentEvent, order models.Order, changed bool, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		s.Logger.Warn("Payment event for unknown order",
			zap.String("provider", record.Provider), zap.String("event_id", record.EventID))
		return nil
	}
	if err != nil {
		return err
	}
	s.Logger.Info("Payment event applied",
		zap.String("provider", record.Provider),
		zap.String("event_type", record.EventType),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.Bool("changed", changed))
	return nil
}

func metadataOrderID(metadata map[string]string) (int64, bool) {
	id, err := strconv.ParseInt(metadata["order_id"], 10, 64)
	return id, err == nil && id > 0
}
