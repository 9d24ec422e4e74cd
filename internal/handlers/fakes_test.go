package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"label-platform/internal/middleware"
	"label-platform/internal/models"
	"label-platform/internal/store"
	ws "label-platform/internal/websocket"
)

const secret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func bearer(t *testing.T, id int64, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, models.User{ID: id, Email: "u@example.com", Role: role}, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok
}

// call sends body as JSON (when not nil) with the given Authorization.
func call(r http.Handler, method, path string, body any, auth string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

// events records published order events.
type events struct {
	mu  sync.Mutex
	got []ws.OrderEvent
}

func (e *events) Publish(ev ws.OrderEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, ev)
}

func (e *events) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.got))
	for _, ev := range e.got {
		out = append(out, ev.Type)
	}
	return out
}

// memShop keeps products, carts and orders in memory and behaves like the
// store: stock is decremented with the order, payment events are recorded
// with the order update.
type memShop struct {
	mu       sync.Mutex
	products map[int64]models.Product
	carts    map[string]models.CartSession
	orders   map[int64]models.Order
	events   map[string]bool
	nextID   int64
}

func newMemShop(products ...models.Product) *memShop {
	m := &memShop{
		products: map[int64]models.Product{},
		carts:    map[string]models.CartSession{},
		orders:   map[int64]models.Order{},
		events:   map[string]bool{},
		nextID:   100,
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memShop) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return p, store.ErrNotFound
	}
	return p, nil
}

func cartID(key store.CartKey) string {
	if key.UserID != nil {
		return "user:" + strconv.FormatInt(*key.UserID, 10)
	}
	return "session:" + key.SessionID
}

func (m *memShop) GetCart(ctx context.Context, key store.CartKey) (models.CartSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[cartID(key)]
	if !ok || cart.Expired(time.Now()) {
		return models.CartSession{}, store.ErrNotFound
	}
	return cart, nil
}

func (m *memShop) SaveCart(ctx context.Context, key store.CartKey, lines models.CartLines) (models.CartSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := models.CartSession{UserID: key.UserID, CartData: lines, ExpiresAt: time.Now().Add(models.CartTTL)}
	if key.UserID == nil {
		sid := key.SessionID
		cart.SessionID = &sid
	}
	m.carts[cartID(key)] = cart
	return cart, nil
}

func (m *memShop) DeleteCart(ctx context.Context, key store.CartKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, cartID(key))
	return nil
}

func (m *memShop) CreateOrder(ctx context.Context, order *models.Order, decrements map[int64]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, qty := range decrements {
		p := m.products[id]
		if p.InventoryCount == nil || *p.InventoryCount < qty {
			return store.ErrInsufficientInventory
		}
	}
	for id, qty := range decrements {
		p := m.products[id]
		left := *p.InventoryCount - qty
		p.InventoryCount = &left
		m.products[id] = p
	}

	m.nextID++
	order.ID = m.nextID
	order.CreatedAt = time.Now()
	for i := range order.Items {
		m.nextID++
		order.Items[i].ID = m.nextID
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *memShop) List(ctx context.Context, q store.ListQuery) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if v, ok := q.Filters["user_id"]; ok && (o.UserID == nil || strconv.FormatInt(*o.UserID, 10) != v) {
			continue
		}
		if v, ok := q.Filters["payment_status"]; ok && string(o.PaymentStatus) != v {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memShop) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return o, store.ErrNotFound
	}
	return o, nil
}

func (m *memShop) GetOrderByNumber(ctx context.Context, number string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return models.Order{}, store.ErrNotFound
}

func (m *memShop) UpdateFulfilment(ctx context.Context, id int64, fields map[string]any) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return o, store.ErrNotFound
	}
	if len(fields) == 0 {
		return o, store.ErrNoFields
	}
	if v, ok := fields["order_status"].(string); ok {
		o.OrderStatus = models.OrderStatus(v)
	}
	if v, ok := fields["tracking_number"].(string); ok {
		o.TrackingNumber = v
	}
	if v, ok := fields["notes"].(string); ok {
		o.Notes = v
	}
	m.orders[id] = o
	return o, nil
}

func (m *memShop) StartPayment(ctx context.Context, id int64, refs map[string]any) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return o, store.ErrNotFound
	}
	if !o.CanStartPayment() {
		return o, store.ErrStaleState
	}
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

func (m *memShop) ApplyPayment(
	ctx context.Context,
	event models.PaymentEvent,
	lookup store.OrderLookup,
	apply func(order *models.Order) (bool, error),
) (models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		order models.Order
		found bool
	)
	for _, o := range m.orders {
		switch lookup.Column {
		case "id":
			found = o.ID == lookup.Value.(int64)
		case "stripe_session_id":
			found = o.StripeSessionID != nil && *o.StripeSessionID == lookup.Value.(string)
		case "order_number":
			found = o.OrderNumber == lookup.Value.(string)
		}
		if found {
			order = o
			break
		}
	}
	if !found {
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

// stock reads a product's inventory.
func (m *memShop) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id].InventoryCount
}

func (m *memShop) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func catalog() []models.Product {
	return []models.Product{
		{ID: 1, Name: "Tee", Slug: "tee", Price: money("20"), ProductType: models.ProductPhysical, InventoryCount: intPtr(5), Active: true},
		{ID: 2, Name: "Album (digital)", Slug: "album", Price: money("9.99"), ProductType: models.ProductDigital, Active: true, DownloadURL: "https://cdn.test/album.zip"},
	}
}
