package payments

import (
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"label-platform/internal/config"
	"label-platform/internal/models"
)

// Providers holds the provider clients. A nil client means the provider is
// disabled.
type Providers struct {
	Stripe   StripeSessions
	PayPal   PayPalOrders
	Snap     SnapAPI
	Midtrans CoreAPI
}

// NewProviders builds a client for every provider that has credentials.
func NewProviders(cfg config.Config) (Providers, error) {
	var p Providers

	if cfg.StripeSecretKey != "" {
		p.Stripe = &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.StripeSecretKey}
	}

	if cfg.PayPalClientID != "" && cfg.PayPalClientSecret != "" {
		base := paypal.APIBaseSandBox
		if cfg.PayPalMode == "live" {
			base = paypal.APIBaseLive
		}
		client, err := paypal.NewClient(cfg.PayPalClientID, cfg.PayPalClientSecret, base)
		if err != nil {
			return p, fmt.Errorf("paypal client: %w", err)
		}
		p.PayPal = client
	}

	if cfg.MidtransServerKey != "" {
		env := midtrans.Sandbox
		if cfg.MidtransEnv == "production" {
			env = midtrans.Production
		}

		var s snap.Client
		s.New(cfg.MidtransServerKey, env)

		var c coreapi.Client
		c.New(cfg.MidtransServerKey, env)

		p.Snap = &s
		p.Midtrans = &c
	}

	return p, nil
}

// Enabled reports provider availability for the health endpoint.
func (p Providers) Enabled() map[string]bool {
	return map[string]bool{
		models.PaymentMethodStripe:   p.Stripe != nil,
		models.PaymentMethodPayPal:   p.PayPal != nil,
		models.PaymentMethodMidtrans: p.Snap != nil && p.Midtrans != nil,
	}
}
