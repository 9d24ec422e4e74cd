//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"label-platform/internal/database"
	"label-platform/internal/models"
	"label-platform/internal/store"
)

// setupStore boots postgres:alpine, applies the migrations and returns a store.
func setupStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("label"),
		postgres.WithUsername("label"),
		postgres.WithPassword("label"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx, zap.NewNop()))
	return store.New(db)
}

func createProduct(t *testing.T, s *store.Store, slug string, price string, stock *int) models.Product {
	t.Helper()
	p, err := s.Products.Insert(context.Background(), map[string]any{
		"name":            slug,
		"slug":            slug,
		"price":           decimal.RequireFromString(price),
		"product_type":    models.ProductPhysical,
		"inventory_count": stock,
	})
	require.NoError(t, err)
	return p
}

func newOrder(number string, product models.Product, qty int) *models.Order {
	return &models.Order{
		OrderNumber:     number,
		Email:           "fan@example.com",
		ShippingAddress: models.Address{Line1: "1 Main", City: "Austin", PostalCode: "78701", Country: "US"},
		Subtotal:        product.Price.Mul(decimal.NewFromInt(int64(qty))),
		ShippingCost:    decimal.RequireFromString("5.99"),
		Tax:             decimal.Zero,
		Total:           product.Price.Mul(decimal.NewFromInt(int64(qty))).Add(decimal.RequireFromString("5.99")),
		Currency:        "usd",
		PaymentMethod:   models.PaymentMethodStripe,
		PaymentStatus:   models.PaymentPending,
		OrderStatus:     models.OrderPending,
		Items: []models.OrderItem{{
			ProductID:    &product.ID,
			ProductName:  product.Name,
			ProductPrice: product.Price,
			Quantity:     qty,
			ProductType:  product.ProductType,
		}},
	}
}

func TestStore_Integration(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	t.Run("CreateOrder decrements stock atomically", func(t *testing.T) {
		stock := 3
		tee := createProduct(t, s, "tee", "20.00", &stock)

		order := newOrder("ORD-A", tee, 2)
		require.NoError(t, s.Orders.CreateOrder(ctx, order, map[int64]int{tee.ID: 2}))
		assert.NotZero(t, order.ID)
		assert.NotZero(t, order.Items[0].ID)

		got, err := s.Products.Get(ctx, tee.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, *got.InventoryCount)

		err = s.Orders.CreateOrder(ctx, newOrder("ORD-B", tee, 2), map[int64]int{tee.ID: 2})
		assert.ErrorIs(t, err, store.ErrInsufficientInventory)

		got, err = s.Products.Get(ctx, tee.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, *got.InventoryCount)

		_, err = s.Orders.GetOrderByNumber(ctx, "ORD-B")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ApplyPayment dedupes provider events", func(t *testing.T) {
		lp := createProduct(t, s, "lp", "30.00", nil)
		order := newOrder("ORD-C", lp, 1)
		require.NoError(t, s.Orders.CreateOrder(ctx, order, nil))

		_, err := s.Orders.StartPayment(ctx, order.ID, map[string]any{"stripe_session_id": "cs_1"})
		require.NoError(t, err)

		markPaid := func(o *models.Order) (bool, error) { return o.MarkPaid(time.Now()), nil }
		event := models.PaymentEvent{Provider: "stripe", EventID: "evt_1", EventType: "checkout.session.completed"}
		lookup := store.OrderLookup{Column: "stripe_session_id", Value: "cs_1"}

		paid, changed, err := s.Orders.ApplyPayment(ctx, event, lookup, markPaid)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
		assert.Equal(t, models.OrderProcessing, paid.OrderStatus)

		_, _, err = s.Orders.ApplyPayment(ctx, event, lookup, markPaid)
		assert.ErrorIs(t, err, store.ErrDuplicateEvent)

		_, err = s.Orders.StartPayment(ctx, order.ID, map[string]any{"stripe_session_id": "cs_2"})
		assert.ErrorIs(t, err, store.ErrStaleState)
	})

	t.Run("ApplyPayment rolls back on apply error", func(t *testing.T) {
		ep := createProduct(t, s, "ep", "10.00", nil)
		order := newOrder("ORD-D", ep, 1)
		require.NoError(t, s.Orders.CreateOrder(ctx, order, nil))

		boom := errors.New("amount mismatch")
		event := models.PaymentEvent{Provider: "stripe", EventID: "evt_2"}
		_, _, err := s.Orders.ApplyPayment(ctx, event, store.OrderLookup{Column: "id", Value: order.ID},
			func(o *models.Order) (bool, error) { return false, boom })
		assert.ErrorIs(t, err, boom)

		// The event was not recorded, so a retry is still applied.
		_, changed, err := s.Orders.ApplyPayment(ctx, event, store.OrderLookup{Column: "id", Value: order.ID},
			func(o *models.Order) (bool, error) { return o.MarkPaid(time.Now()), nil })
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("Downloads stop at the limit", func(t *testing.T) {
		single := createProduct(t, s, "single", "1.00", nil)
		order := newOrder("ORD-E", single, 1)
		require.NoError(t, s.Orders.CreateOrder(ctx, order, nil))

		limit := 1
		dl, err := s.Downloads.CreateDownload(ctx, models.DigitalDownload{
			OrderItemID: order.Items[0].ID, Token: "tok-1", MaxDownloads: &limit,
		})
		require.NoError(t, err)

		again, err := s.Downloads.CreateDownload(ctx, models.DigitalDownload{
			OrderItemID: order.Items[0].ID, Token: "tok-2",
		})
		require.NoError(t, err)
		assert.Equal(t, dl.ID, again.ID)
		assert.Equal(t, "tok-1", again.Token)

		dl, err = s.Downloads.Consume(ctx, dl.ID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, dl.DownloadCount)

		_, err = s.Downloads.Consume(ctx, dl.ID, time.Now())
		assert.ErrorIs(t, err, store.ErrStaleState)

		dl, err = s.Downloads.GetByToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, 1, dl.DownloadCount)
	})

	t.Run("Carts upsert and expire", func(t *testing.T) {
		key := store.CartKey{SessionID: "sess-1"}
		price := decimal.RequireFromString("12.50")
		lines := models.CartLines{{ProductName: "Poster", ProductPrice: price, Quantity: 1}}

		_, err := s.Carts.SaveCart(ctx, key, lines)
		require.NoError(t, err)

		lines[0].Quantity = 3
		saved, err := s.Carts.SaveCart(ctx, key, lines)
		require.NoError(t, err)
		assert.Equal(t, 3, saved.CartData[0].Quantity)
		assert.WithinDuration(t, time.Now().Add(models.CartTTL), saved.ExpiresAt, time.Minute)

		got, err := s.Carts.GetCart(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, saved.ID, got.ID)

		require.NoError(t, s.Carts.DeleteCart(ctx, key))
		_, err = s.Carts.GetCart(ctx, key)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Ratings upsert per user", func(t *testing.T) {
		user, err := s.Users.Create(ctx, "Rater@Example.com", "hash", "Rater", models.RoleCustomer)
		require.NoError(t, err)
		assert.Equal(t, "rater@example.com", user.Email)

		_, err = s.Ratings.Rate(ctx, user.ID, "artist", 1, 2)
		require.NoError(t, err)
		_, err = s.Ratings.Rate(ctx, user.ID, "artist", 1, 4)
		require.NoError(t, err)

		summary, err := s.Ratings.Summary(ctx, "artist", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), summary.Count)
		assert.Equal(t, 4.0, summary.Average)

		_, err = s.Users.Create(ctx, "rater@example.com", "hash", "Again", models.RoleCustomer)
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("Stats counts paid revenue only", func(t *testing.T) {
		stats, err := s.Orders.Stats(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.Orders, stats.Paid+stats.Open)
		assert.GreaterOrEqual(t, stats.Paid, int64(2))
		assert.True(t, stats.Revenue.IsPositive())
	})
}
