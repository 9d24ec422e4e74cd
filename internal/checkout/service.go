// Package checkout turns a cart into a persisted order with computed totals.
// It does not talk to payment providers.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"label-platform/internal/models"
	"label-platform/internal/store"
)

const (
	MaxQuantity         = 100
	orderNumberAttempts = 3
)

// Request is one checkout attempt. Items wins over Cart when both are set.
type Request struct {
	Items           []models.CartLine
	Cart            store.CartKey
	UserID          *int64
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	ShippingAddress models.Address
	BillingAddress  *models.Address
	PaymentMethod   string
	Notes           string
}

type Options struct {
	Currency string
	// TrustClientSnapshots accepts the client's name and price for lines the
	// catalog does not know.
	TrustClientSnapshots bool
	MaxConcurrent        int
}

type Service struct {
	Products ProductReader
	Carts    CartStore
	Orders   OrderWriter
	Logger   *zap.Logger

	currency      string
	trustClient   bool
	maxConcurrent int
	now           func() time.Time
}

func NewService(products ProductReader, carts CartStore, orders OrderWriter, logger *zap.Logger, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &Service{
		Products:      products,
		Carts:         carts,
		Orders:        orders,
		Logger:        logger,
		currency:      opts.Currency,
		trustClient:   opts.TrustClientSnapshots,
		maxConcurrent: opts.MaxConcurrent,
		now:           time.Now,
	}
}

func validPaymentMethod(m string) bool {
	switch m {
	case models.PaymentMethodStripe, models.PaymentMethodPayPal, models.PaymentMethodMidtrans:
		return true
	}
	return false
}

// PlaceOrder validates the cart, computes totals and persists the order with
// its items and stock decrements in one transaction. Nothing is written when
// any line is rejected.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (models.Order, error) {
	if !validPaymentMethod(req.PaymentMethod) {
		return models.Order{}, ErrInvalidPaymentMethod
	}

	lines, fromCart, err := s.cartLines(ctx, req)
	if err != nil {
		return models.Order{}, err
	}
	if len(lines) == 0 {
		return models.Order{}, ErrEmptyCart
	}

	items, decrements, err := s.resolve(ctx, lines)
	if err != nil {
		return models.Order{}, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	totals := ComputeTotals(subtotal)

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	order := models.Order{
		UserID:          req.UserID,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Subtotal:        totals.Subtotal,
		ShippingCost:    totals.Shipping,
		Tax:             totals.Tax,
		Total:           totals.Total,
		Currency:        s.currency,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		OrderStatus:     models.OrderPending,
		Notes:           req.Notes,
		Items:           items,
	}

	for attempt := 1; ; attempt++ {
		order.OrderNumber = NewOrderNumber(s.now())
		err = s.Orders.CreateOrder(ctx, &order, decrements)
		if !errors.Is(err, store.ErrConflict) || attempt == orderNumberAttempts {
			break
		}
		s.Logger.Warn("Order number collision, retrying", zap.String("order_number", order.OrderNumber))
	}
	if err != nil {
		if errors.Is(err, store.ErrInsufficientInventory) {
			// Lost a race for the last units after validation passed.
			return models.Order{}, &InventoryError{Shortages: []Shortage{{Name: "an item in your cart"}}}
		}
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}

	if fromCart {
		if err := s.Carts.DeleteCart(ctx, req.Cart); err != nil {
			s.Logger.Warn("Failed to clear cart after checkout",
				zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	}

	s.Logger.Info("Order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	return order, nil
}

func (s *Service) cartLines(ctx context.Context, req Request) ([]models.CartLine, bool, error) {
	if len(req.Items) > 0 {
		return req.Items, false, nil
	}
	if req.Cart.Empty() {
		return nil, false, nil
	}

	cart, err := s.Carts.GetCart(ctx, req.Cart)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load cart: %w", err)
	}
	return cart.CartData, true, nil
}

// resolve turns cart lines into order item snapshots. Catalog data is
// authoritative; products are looked up concurrently.
func (s *Service) resolve(ctx context.Context, lines []models.CartLine) ([]models.OrderItem, map[int64]int, error) {
	for i, line := range lines {
		if line.Quantity <= 0 || line.Quantity > MaxQuantity {
			return nil, nil, &LineError{Line: i, Reason: fmt.Sprintf("quantity must be between 1 and %d", MaxQuantity)}
		}
	}

	products := make([]*models.Product, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i := range lines {
		if lines[i].ProductID == nil {
			continue
		}
		g.Go(func() error {
			p, err := s.Products.GetProduct(gctx, *lines[i].ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("get product %d: %w", *lines[i].ProductID, err)
			}
			products[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	wanted := make(map[int64]int)
	byID := make(map[int64]*models.Product)

	for i, line := range lines {
		p := products[i]
		if p == nil {
			item, err := s.snapshot(i, line)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, item)
			continue
		}

		if !p.Active {
			return nil, nil, &LineError{Line: i, ProductID: p.ID, Reason: "product is not available"}
		}

		items = append(items, models.OrderItem{
			ProductID:    &p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     line.Quantity,
			Variant:      line.Variant,
			ProductType:  p.ProductType,
		})
		if p.TracksInventory() {
			wanted[p.ID] += line.Quantity
			byID[p.ID] = p
		}
	}

	var shortages []Shortage
	for id, qty := range wanted {
		p := byID[id]
		if qty > *p.InventoryCount {
			shortages = append(shortages, Shortage{
				ProductID: id, Name: p.Name, Requested: qty, Available: *p.InventoryCount,
			})
		}
	}
	if len(shortages) > 0 {
		sort.Slice(shortages, func(i, j int) bool { return shortages[i].ProductID < shortages[j].ProductID })
		return nil, nil, &InventoryError{Shortages: shortages}
	}

	return items, wanted, nil
}

// snapshot builds an item from the client's own line data, which is only
// accepted when the service is configured to trust it.
func (s *Service) snapshot(i int, line models.CartLine) (models.OrderItem, error) {
	var productID int64
	if line.ProductID != nil {
		productID = *line.ProductID
	}

	if !s.trustClient {
		if line.ProductID == nil {
			return models.OrderItem{}, &LineError{Line: i, Reason: "product_id is required"}
		}
		return models.OrderItem{}, &LineError{Line: i, ProductID: productID, Reason: "product not found"}
	}
	if strings.TrimSpace(line.ProductName) == "" || !line.ProductPrice.IsPositive() {
		return models.OrderItem{}, &LineError{Line: i, ProductID: productID, Reason: "product_name and product_price are required"}
	}

	return models.OrderItem{
		ProductName:  line.ProductName,
		ProductPrice: line.ProductPrice.Round(2),
		Quantity:     line.Quantity,
		Variant:      line.Variant,
		ProductType:  models.ProductPhysical,
	}, nil
}
